package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/models"

	"gorm.io/gorm"
)

// DefaultClientInactiveDays applies when CleanupInactiveClients is given a
// non-positive number of days.
const DefaultClientInactiveDays = 30

// CleanupInactiveClients deletes clients, with their codes and tokens, that
// were created more than inactiveDays ago, have not been issued tokens in
// that window and hold no active refresh token.
func (s *Store) CleanupInactiveClients(ctx context.Context, inactiveDays int) (int64, error) {
	if inactiveDays <= 0 {
		inactiveDays = DefaultClientInactiveDays
	}

	now := s.now()
	cutoff := now.Add(-time.Duration(inactiveDays) * 24 * time.Hour)

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activeTokens := tx.Model(&models.RefreshToken{}).
			Select("1").
			Where("oauth_refresh_tokens.client_id = oauth_clients.client_id").
			Where("oauth_refresh_tokens.revoked_at IS NULL AND oauth_refresh_tokens.expires_at > ?", now)

		var clientIDs []string
		if err := tx.Model(&models.OAuthClient{}).
			Where("created_at < ?", cutoff).
			Where("(last_used_at IS NULL OR last_used_at < ?)", cutoff).
			Where("NOT EXISTS (?)", activeTokens).
			Pluck("client_id", &clientIDs).Error; err != nil {
			return err
		}

		n, err := deleteClientsCascade(tx, clientIDs)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up inactive clients: %w", err)
	}

	return deleted, nil
}
