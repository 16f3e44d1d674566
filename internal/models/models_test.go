package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStringArray_ScanAcceptsTextAndBytes(t *testing.T) {
	var fromBytes StringArray
	require.NoError(t, fromBytes.Scan([]byte(`["https://app.example.com/cb"]`)))
	assert.Equal(t, StringArray{"https://app.example.com/cb"}, fromBytes)

	var fromString StringArray
	require.NoError(t, fromString.Scan(`["a","b"]`))
	assert.Equal(t, StringArray{"a", "b"}, fromString)

	var fromNil StringArray
	require.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)

	var bad StringArray
	assert.Error(t, bad.Scan(42))
}

func TestStringArray_ValueKeepsOrder(t *testing.T) {
	v, err := StringArray{"https://b.example.com", "https://a.example.com"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["https://b.example.com","https://a.example.com"]`, v)

	empty, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestOAuthClient_HasRedirectURIIsExact(t *testing.T) {
	c := &OAuthClient{RedirectURIs: StringArray{"https://app.example.com/cb"}}

	assert.True(t, c.HasRedirectURI("https://app.example.com/cb"))
	assert.False(t, c.HasRedirectURI("https://app.example.com/cb/"))
	assert.False(t, c.HasRedirectURI("https://app.example.com/cb?x=1"))
	assert.False(t, c.HasRedirectURI("HTTPS://app.example.com/cb"))
}

func TestOAuthClient_ValidateClientSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	c := &OAuthClient{ClientSecretHash: string(hash)}

	assert.True(t, c.ValidateClientSecret([]byte("s3cret")))
	assert.False(t, c.ValidateClientSecret([]byte("s3cret ")))
	assert.False(t, c.ValidateClientSecret(nil))
}

func TestExpiryBoundaryIsStrict(t *testing.T) {
	expiresAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	code := &AuthorizationCode{ExpiresAt: expiresAt}
	token := &RefreshToken{ExpiresAt: expiresAt}

	before := expiresAt.Add(-time.Nanosecond)
	assert.False(t, code.IsExpiredAt(before))
	assert.True(t, token.IsActiveAt(before))

	assert.True(t, code.IsExpiredAt(expiresAt))
	assert.False(t, token.IsActiveAt(expiresAt))

	revokedAt := before
	token.RevokedAt = &revokedAt
	assert.False(t, token.IsActiveAt(before))
}
