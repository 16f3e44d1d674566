package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OAuthClient is a dynamically registered OAuth 2.0 client (RFC 7591).
type OAuthClient struct {
	ClientID         string      `gorm:"primaryKey;size:36" json:"client_id"`
	ClientSecretHash string      `gorm:"not null" json:"-"` // bcrypt hash, never serialized
	ClientName       string      `gorm:"size:256" json:"client_name,omitempty"`
	RedirectURIs     StringArray `gorm:"type:text;not null" json:"redirect_uris"`
	LastUsedAt       *time.Time  `gorm:"index" json:"-"`
	CreatedAt        time.Time   `gorm:"not null;index" json:"created_at"`
}

// ValidateClientSecret compares secret against the stored hash in constant time.
func (c *OAuthClient) ValidateClientSecret(secret []byte) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.ClientSecretHash), secret) == nil
}

// HasRedirectURI reports whether uri exactly matches one of the registered redirect URIs.
func (c *OAuthClient) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// TableName overrides the table name used by OAuthClient to `oauth_clients`
func (OAuthClient) TableName() string {
	return "oauth_clients"
}
