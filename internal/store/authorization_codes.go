package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/models"
	"github.com/go-authgate/agentgate/internal/util"

	"gorm.io/gorm"
)

// DefaultAuthCodeTTL applies when SaveAuthCode is given a non-positive TTL.
const DefaultAuthCodeTTL = 10 * time.Minute

// SaveAuthCode issues a single-use authorization code bound to the client,
// subject, redirect URI and PKCE challenge. The code carries 256 bits of
// entropy; only its SHA-256 is stored.
func (s *Store) SaveAuthCode(
	ctx context.Context,
	clientID, subject, redirectURI, codeChallenge string,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		ttl = DefaultAuthCodeTTL
	}

	code, err := util.CryptoRandomURLSafe(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := s.now()
	record := &models.AuthorizationCode{
		CodeHash:      util.SHA256Hex(code),
		ClientID:      clientID,
		Subject:       subject,
		RedirectURI:   redirectURI,
		CodeChallenge: codeChallenge,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	return code, nil
}

// ConsumeAuthCode marks the code used and returns it, or returns nil when the
// code is unknown, expired or already used. The conditional update makes the
// check and the mark one step: of any number of concurrent callers exactly
// one sees RowsAffected == 1.
func (s *Store) ConsumeAuthCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	if code == "" {
		return nil, nil
	}

	hash := util.SHA256Hex(code)
	now := s.now()

	var consumed *models.AuthorizationCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AuthorizationCode{}).
			Where("code_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var record models.AuthorizationCode
		if err := tx.Where("code_hash = ?", hash).First(&record).Error; err != nil {
			return err
		}
		record.Code = code
		consumed = &record
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	return consumed, nil
}

// CleanupExpiredCodes deletes codes whose expiry has passed, used or not.
func (s *Store) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.AuthorizationCode{})
	return res.RowsAffected, res.Error
}
