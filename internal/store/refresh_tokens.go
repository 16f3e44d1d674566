package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/models"
	"github.com/go-authgate/agentgate/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultRefreshTokenTTL applies when SaveRefreshToken is given a non-positive TTL.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// RevokedRefreshTokenRetention is how long revoked rows are kept before cleanup.
	RevokedRefreshTokenRetention = 24 * time.Hour

	refreshTokenLookupLen = 8
)

// SaveRefreshToken issues a refresh token and returns its plaintext. Only a
// salted PBKDF2 hash is persisted.
func (s *Store) SaveRefreshToken(
	ctx context.Context,
	clientID, subject string,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}

	token, err := util.CryptoRandomURLSafe(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	salt, err := util.CryptoRandomString(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh token salt: %w", err)
	}

	now := s.now()
	record := &models.RefreshToken{
		ID:          uuid.New().String(),
		TokenHash:   util.HashToken(token, salt),
		TokenSalt:   salt,
		TokenLookup: token[len(token)-refreshTokenLookupLen:],
		ClientID:    clientID,
		Subject:     subject,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	return token, nil
}

// ConsumeRefreshToken revokes the matching active token and returns it, or
// returns nil if no active token matches. The revoke is conditional on
// revoked_at still being NULL, so a token is handed out at most once even
// when callers race.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if len(token) < refreshTokenLookupLen {
		return nil, nil
	}

	now := s.now()
	lookup := token[len(token)-refreshTokenLookupLen:]

	var consumed *models.RefreshToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.RefreshToken
		if err := tx.
			Where("token_lookup = ? AND revoked_at IS NULL AND expires_at > ?", lookup, now).
			Find(&candidates).Error; err != nil {
			return err
		}

		for i := range candidates {
			candidate := &candidates[i]
			if !util.TokenHashEqual(token, candidate.TokenSalt, candidate.TokenHash) {
				continue
			}

			res := tx.Model(&models.RefreshToken{}).
				Where("id = ? AND revoked_at IS NULL", candidate.ID).
				Update("revoked_at", now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			candidate.RevokedAt = &now
			candidate.RawToken = token
			consumed = candidate
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	return consumed, nil
}

// RevokeRefreshTokensForClient revokes every active refresh token of the client.
func (s *Store) RevokeRefreshTokensForClient(ctx context.Context, clientID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("client_id = ? AND revoked_at IS NULL", clientID).
		Update("revoked_at", s.now())
	return res.RowsAffected, res.Error
}

// CleanupExpiredRefreshTokens deletes expired tokens and tokens revoked more
// than RevokedRefreshTokenRetention ago.
func (s *Store) CleanupExpiredRefreshTokens(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)",
			now, now.Add(-RevokedRefreshTokenRetention)).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
