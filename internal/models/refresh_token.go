package models

import "time"

// RefreshToken is a rotating, single-use refresh credential.
//
// Only a salted PBKDF2 hash of the token is stored, so lookups scan the
// rows sharing TokenLookup inside the validity window
// (revoked_at IS NULL AND expires_at > now) and compare hashes. The
// composite index idx_refresh_validity keeps that scan bounded.
type RefreshToken struct {
	ID          string `gorm:"primaryKey;size:36"`
	TokenHash   string `gorm:"not null"`
	TokenSalt   string `gorm:"not null;size:32"`
	TokenLookup string `gorm:"not null;size:8;index:idx_refresh_validity,priority:1"`
	RawToken    string `gorm:"-"` // In-memory only; never persisted to DB

	ClientID string `gorm:"not null;index;size:36"`
	Subject  string `gorm:"not null"`

	ExpiresAt time.Time  `gorm:"not null;index:idx_refresh_validity,priority:3"`
	RevokedAt *time.Time `gorm:"index:idx_refresh_validity,priority:2"`
	CreatedAt time.Time
}

// IsActiveAt reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) IsActiveAt(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

func (RefreshToken) TableName() string {
	return "oauth_refresh_tokens"
}
