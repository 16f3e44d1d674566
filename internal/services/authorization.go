package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/pkce"
	"github.com/go-authgate/agentgate/internal/store"

	log "github.com/sirupsen/logrus"
)

// AuthorizeRequest is what the consent UI sends once the user approved
// the client. Subject is the end user's identity in the record store.
type AuthorizeRequest struct {
	ClientID            string `json:"client_id" form:"client_id"`
	RedirectURI         string `json:"redirect_uri" form:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge" form:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method" form:"code_challenge_method"`
	Subject             string `json:"subject" form:"subject"`
	UserID              string `json:"user_id" form:"user_id"` // older consent UIs
	State               string `json:"state" form:"state"`
}

// AuthorizeResult carries the issued code and the redirect the UI should follow.
type AuthorizeResult struct {
	Code        string `json:"code"`
	RedirectURL string `json:"redirect_url"`
}

// AuthorizationService issues authorization codes (RFC 6749 section 4.1)
// after consent was granted elsewhere.
type AuthorizationService struct {
	store   *store.Store
	config  *config.Config
	metrics metrics.Recorder
}

func NewAuthorizationService(
	s *store.Store,
	cfg *config.Config,
	m metrics.Recorder,
) *AuthorizationService {
	return &AuthorizationService{
		store:   s,
		config:  cfg,
		metrics: m,
	}
}

// Authorize validates the request and issues a single-use code bound to the
// client, subject, redirect URI and PKCE challenge.
func (s *AuthorizationService) Authorize(
	ctx context.Context,
	req AuthorizeRequest,
) (*AuthorizeResult, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = strings.TrimSpace(req.UserID)
	}

	// 1. Required parameters
	switch {
	case req.ClientID == "":
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	case req.RedirectURI == "":
		return nil, fmt.Errorf("%w: redirect_uri is required", ErrInvalidRequest)
	case req.CodeChallenge == "":
		return nil, fmt.Errorf("%w: code_challenge is required", ErrInvalidRequest)
	case subject == "":
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}

	// 2. PKCE: S256 only
	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != pkce.MethodS256 {
		return nil, fmt.Errorf("%w: code_challenge_method must be S256", ErrInvalidRequest)
	}
	if !pkce.ValidChallengeFormat(req.CodeChallenge) {
		return nil, fmt.Errorf(
			"%w: code_challenge must be 43-128 base64url characters",
			ErrInvalidRequest,
		)
	}

	// 3. Client must exist
	client, err := s.store.GetClient(ctx, req.ClientID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: client not found", ErrInvalidClient)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	// 4. Redirect URI must be registered verbatim
	if !client.HasRedirectURI(req.RedirectURI) {
		return nil, fmt.Errorf(
			"%w: redirect_uri is not registered for this client",
			ErrInvalidRequest,
		)
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed redirect_uri", ErrInvalidRequest)
	}

	// 5. Issue the code
	code, err := s.store.SaveAuthCode(
		ctx,
		client.ClientID,
		subject,
		req.RedirectURI,
		req.CodeChallenge,
		s.config.AuthCodeExpiration,
	)
	if err != nil {
		s.metrics.RecordAuthCodeIssued(false)
		return nil, err
	}
	s.metrics.RecordAuthCodeIssued(true)

	query := redirect.Query()
	query.Set("code", code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	redirect.RawQuery = query.Encode()

	log.WithFields(log.Fields{
		"client_id":  client.ClientID,
		"subject":    subject,
		"expires_in": int(s.codeTTL().Seconds()),
	}).Info("Issued authorization code")

	return &AuthorizeResult{
		Code:        code,
		RedirectURL: redirect.String(),
	}, nil
}

func (s *AuthorizationService) codeTTL() time.Duration {
	if s.config.AuthCodeExpiration > 0 {
		return s.config.AuthCodeExpiration
	}
	return store.DefaultAuthCodeTTL
}
