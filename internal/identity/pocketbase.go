package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-authgate/agentgate/internal/metrics"

	retry "github.com/appleboy/go-httpretry"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	adminAuthPath      = "/api/collections/_superusers/auth-with-password"
	impersonatePathFmt = "/api/collections/users/impersonate/%s"

	// adminTokenTTL is shorter than any PocketBase superuser token lifetime.
	adminTokenTTL     = 5 * time.Minute
	defaultTimeout    = 5 * time.Second
	defaultRetryDelay = 200 * time.Millisecond
	maxResponseBytes  = 1 << 20
)

// PocketBaseOptions configures a PocketBaseBridge.
type PocketBaseOptions struct {
	BaseURL             string
	AdminEmail          string
	AdminPassword       string
	Timeout             time.Duration // bounds one Impersonate call, retries included
	ImpersonateDuration time.Duration
	Client              *retry.Client
}

// PocketBaseBridge impersonates users through the PocketBase superuser API.
// The superuser token is cached and shared by all requests.
type PocketBaseBridge struct {
	opts    PocketBaseOptions
	client  *retry.Client
	metrics metrics.Recorder
	now     func() time.Time

	mu          sync.Mutex
	adminToken  string
	adminAuthAt time.Time
	authGroup   singleflight.Group
}

// APIError is a non-2xx PocketBase response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pocketbase: HTTP %d", e.Status)
	}
	return fmt.Sprintf("pocketbase: HTTP %d - %s", e.Status, e.Message)
}

type adminAuthRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type impersonateRequest struct {
	Duration int64 `json:"duration"`
}

// authResponse is the shape of both the superuser auth and the
// impersonate responses.
type authResponse struct {
	Token  string         `json:"token"`
	Record map[string]any `json:"record"`
}

func NewPocketBaseBridge(opts PocketBaseOptions, m metrics.Recorder) (*PocketBaseBridge, error) {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		return nil, errors.New("pocketbase base URL is required")
	}
	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		return nil, errors.New("pocketbase admin credentials are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ImpersonateDuration <= 0 {
		opts.ImpersonateDuration = defaultSessionDuration
	}
	client := opts.Client
	if client == nil {
		var err error
		client, err = NewRetryClient(opts.Timeout, 0, defaultRetryDelay)
		if err != nil {
			return nil, err
		}
	}
	if m == nil {
		m = metrics.NewNoopMetrics()
	}

	return &PocketBaseBridge{
		opts:    opts,
		client:  client,
		metrics: m,
		now:     time.Now,
	}, nil
}

// Impersonate returns a PocketBase session for subject. When the first
// attempt fails the cached superuser token is dropped and the call is
// repeated once with a fresh one. Any remaining failure is
// ErrImpersonationFailed.
func (b *PocketBaseBridge) Impersonate(ctx context.Context, subject string) (*Session, error) {
	start := time.Now()
	session, err := b.impersonate(ctx, subject)
	b.metrics.RecordImpersonation(err == nil, time.Since(start))
	if err != nil {
		log.WithError(err).WithField("subject", subject).Warn("Failed to impersonate user")
		return nil, fmt.Errorf("%w: %v", ErrImpersonationFailed, err)
	}

	log.WithField("subject", subject).Debug("Impersonated user")
	return session, nil
}

func (b *PocketBaseBridge) impersonate(ctx context.Context, subject string) (*Session, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("empty subject")
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	session, err := b.tryImpersonate(ctx, subject)
	if err == nil {
		return session, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	log.WithError(err).Debug("Impersonation failed, refreshing superuser token")
	b.clearAdminToken()
	return b.tryImpersonate(ctx, subject)
}

func (b *PocketBaseBridge) tryImpersonate(ctx context.Context, subject string) (*Session, error) {
	adminToken, err := b.getAdminToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp authResponse
	path := fmt.Sprintf(impersonatePathFmt, url.PathEscape(subject))
	body := impersonateRequest{Duration: int64(b.opts.ImpersonateDuration / time.Second)}
	if err := b.post(ctx, path, adminToken, body, &resp); err != nil {
		return nil, fmt.Errorf("impersonate: %w", err)
	}
	if resp.Token == "" {
		return nil, errors.New("impersonate: response has no token")
	}

	sessionSubject := subject
	if id, ok := resp.Record["id"].(string); ok && id != "" {
		sessionSubject = id
	}
	return &Session{
		Subject:   sessionSubject,
		Token:     resp.Token,
		Record:    resp.Record,
		ExpiresAt: b.now().Add(b.opts.ImpersonateDuration),
	}, nil
}

func (b *PocketBaseBridge) cachedAdminToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.adminToken != "" && b.now().Sub(b.adminAuthAt) < adminTokenTTL {
		return b.adminToken
	}
	return ""
}

func (b *PocketBaseBridge) getAdminToken(ctx context.Context) (string, error) {
	if token := b.cachedAdminToken(); token != "" {
		return token, nil
	}

	v, err, _ := b.authGroup.Do("admin", func() (any, error) {
		if token := b.cachedAdminToken(); token != "" {
			return token, nil
		}

		var resp authResponse
		req := adminAuthRequest{Identity: b.opts.AdminEmail, Password: b.opts.AdminPassword}
		if err := b.post(ctx, adminAuthPath, "", req, &resp); err != nil {
			return "", fmt.Errorf("superuser auth: %w", err)
		}
		if resp.Token == "" {
			return "", errors.New("superuser auth: response has no token")
		}

		b.mu.Lock()
		b.adminToken = resp.Token
		b.adminAuthAt = b.now()
		b.mu.Unlock()

		log.Info("Authenticated PocketBase superuser")
		return resp.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *PocketBaseBridge) clearAdminToken() {
	b.mu.Lock()
	b.adminToken = ""
	b.adminAuthAt = time.Time{}
	b.mu.Unlock()
}

func (b *PocketBaseBridge) post(ctx context.Context, path, authToken string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqOpts := []retry.RequestOption{
		retry.WithBody("application/json", bytes.NewReader(payload)),
	}
	if authToken != "" {
		reqOpts = append(reqOpts, retry.WithHeader("Authorization", authToken))
	}

	resp, err := b.client.Post(ctx, b.opts.BaseURL+path, reqOpts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}
