package models

import "time"

// AuthorizationCode stores OAuth 2.0 authorization codes (RFC 6749).
// Codes are short-lived (default 10 minutes) and single-use.
type AuthorizationCode struct {
	// SHA256(plainCode); the plaintext is only ever held in memory
	CodeHash string `gorm:"primaryKey;size:64"`
	Code     string `gorm:"-"`

	ClientID    string `gorm:"not null;index;size:36"`
	Subject     string `gorm:"not null"`
	RedirectURI string `gorm:"not null"`

	// PKCE (RFC 7636), S256 only
	CodeChallenge string `gorm:"not null"`

	ExpiresAt time.Time  `gorm:"not null;index"`
	UsedAt    *time.Time // Set by the single successful exchange
	CreatedAt time.Time
}

// IsExpiredAt reports whether the code is expired at now. A code is valid
// strictly before ExpiresAt.
func (a *AuthorizationCode) IsExpiredAt(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

func (a *AuthorizationCode) IsUsed() bool {
	return a.UsedAt != nil
}

func (AuthorizationCode) TableName() string {
	return "oauth_authorization_codes"
}
