package store

import (
	"context"

	"github.com/go-authgate/agentgate/internal/models"
)

func (s *Store) CountClients(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.OAuthClient{}).Count(&count).Error
	return count, err
}

// CountActiveAuthCodes counts unused, unexpired authorization codes.
func (s *Store) CountActiveAuthCodes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.AuthorizationCode{}).
		Where("used_at IS NULL AND expires_at > ?", s.now()).
		Count(&count).Error
	return count, err
}

// CountActiveRefreshTokens counts unrevoked, unexpired refresh tokens.
func (s *Store) CountActiveRefreshTokens(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("revoked_at IS NULL AND expires_at > ?", s.now()).
		Count(&count).Error
	return count, err
}
