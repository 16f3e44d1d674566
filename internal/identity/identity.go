package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// ErrImpersonationFailed is returned for every failure to resolve a subject
// into a record-store session. Callers must treat it as an authentication
// failure.
var ErrImpersonationFailed = errors.New("identity: impersonation failed")

// Session is the end user's record-store session obtained by impersonation.
type Session struct {
	Subject   string
	Token     string // record-store auth token, empty for StaticBridge
	Record    map[string]any
	ExpiresAt time.Time
}

// Bridge turns a verified access-token subject into a session on the
// record store.
type Bridge interface {
	Impersonate(ctx context.Context, subject string) (*Session, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// New picks the bridge for cfg: PocketBase when POCKETBASE_URL is set,
// otherwise the static development bridge. Production requires PocketBase.
func New(cfg *config.Config, m metrics.Recorder) (Bridge, error) {
	if cfg.PocketBaseURL == "" {
		if cfg.IsProduction {
			return nil, errors.New("identity: POCKETBASE_URL is required in production")
		}
		log.Warn("POCKETBASE_URL not set: using the static identity bridge (development only)")
		return NewStaticBridge(cfg.ImpersonateDuration), nil
	}

	client, err := NewRetryClient(cfg.IdentityTimeout, cfg.IdentityMaxRetries, cfg.IdentityRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	bridge, err := NewPocketBaseBridge(PocketBaseOptions{
		BaseURL:             cfg.PocketBaseURL,
		AdminEmail:          cfg.PocketBaseAdminEmail,
		AdminPassword:       cfg.PocketBaseAdminPassword,
		Timeout:             cfg.IdentityTimeout,
		ImpersonateDuration: cfg.ImpersonateDuration,
		Client:              client,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	return bridge, nil
}
