package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

// DefaultAccessTokenTTL applies when SignAccessToken is given a non-positive TTL.
const DefaultAccessTokenTTL = time.Hour

// AccessTokenPayload carries the caller-chosen claims of an access token.
type AccessTokenPayload struct {
	Subject  string
	ClientID string
	Scope    string
}

// AccessTokenClaims are the claims of a verified access token.
type AccessTokenClaims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// SignAccessToken issues an RS256 access token. Calling it before Init
// succeeded is a programming error and panics with ErrKeysNotInitialized.
func (m *KeyManager) SignAccessToken(
	payload AccessTokenPayload,
	issuer, audience string,
	ttl time.Duration,
) (string, error) {
	if m.privateKey == nil {
		panic(ErrKeysNotInitialized)
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := m.now()
	claims := AccessTokenClaims{
		ClientID: payload.ClientID,
		Scope:    payload.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = m.keyID

	signed, err := t.SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// VerifyAccessToken returns the claims of a token signed by this manager
// for exactly issuer and audience, or nil for anything else: malformed
// input, wrong algorithm or key, issuer or audience mismatch, missing or
// passed expiry. It never panics.
func (m *KeyManager) VerifyAccessToken(tokenString, issuer, audience string) (claims *AccessTokenClaims) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("access token verification panicked")
			claims = nil
		}
	}()

	if m.publicKey == nil || tokenString == "" || issuer == "" || audience == "" {
		return nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	parsed := &AccessTokenClaims{}
	t, err := parser.ParseWithClaims(tokenString, parsed, func(t *jwt.Token) (any, error) {
		if kid, ok := t.Header["kid"].(string); ok && kid != m.keyID {
			return nil, errors.New("unknown key id")
		}
		return m.publicKey, nil
	})
	if err != nil || !t.Valid {
		return nil
	}
	if parsed.Subject == "" {
		return nil
	}

	return parsed
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying verified access token claims.
func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*AccessTokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*AccessTokenClaims)
	return claims, ok && claims != nil
}
