package identity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultSessionDuration = time.Hour

// StaticBridge accepts every non-empty subject without contacting a record
// store. Development only.
type StaticBridge struct {
	duration time.Duration
	now      func() time.Time
}

func NewStaticBridge(duration time.Duration) *StaticBridge {
	if duration <= 0 {
		duration = defaultSessionDuration
	}
	return &StaticBridge{duration: duration, now: time.Now}
}

func (b *StaticBridge) Impersonate(_ context.Context, subject string) (*Session, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrImpersonationFailed)
	}
	return &Session{
		Subject:   subject,
		Record:    map[string]any{"id": subject},
		ExpiresAt: b.now().Add(b.duration),
	}, nil
}
