package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/models"
	"github.com/go-authgate/agentgate/internal/pkce"
	"github.com/go-authgate/agentgate/internal/store"
	"github.com/go-authgate/agentgate/internal/token"

	log "github.com/sirupsen/logrus"
)

// TokenResponse is the successful token endpoint response (RFC 6749 section 5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// TokenService runs the token endpoint grants.
type TokenService struct {
	store   *store.Store
	keys    *token.KeyManager
	config  *config.Config
	metrics metrics.Recorder
}

func NewTokenService(
	s *store.Store,
	keys *token.KeyManager,
	cfg *config.Config,
	m metrics.Recorder,
) *TokenService {
	return &TokenService{
		store:   s,
		keys:    keys,
		config:  cfg,
		metrics: m,
	}
}

// AuthenticateClient checks the client credentials. Every failure is
// ErrInvalidClient; the cause is only logged.
func (s *TokenService) AuthenticateClient(
	ctx context.Context,
	clientID, clientSecret string,
) (*models.OAuthClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client authentication required", ErrInvalidClient)
	}
	client := s.store.ValidateClient(ctx, clientID, clientSecret)
	if client == nil {
		log.WithField("client_id", clientID).Warn("Client authentication failed")
		return nil, fmt.Errorf("%w: client authentication failed", ErrInvalidClient)
	}
	return client, nil
}

// ExchangeAuthorizationCode redeems a code for a token pair. The code is
// consumed before any other check, so a failed exchange still spends it.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	client *models.OAuthClient,
	code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	switch {
	case code == "":
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	case redirectURI == "":
		return nil, fmt.Errorf("%w: redirect_uri is required", ErrInvalidRequest)
	case codeVerifier == "":
		return nil, fmt.Errorf("%w: code_verifier is required", ErrInvalidRequest)
	}

	record, err := s.store.ConsumeAuthCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.metrics.RecordAuthCodeExchange("invalid_code")
		return nil, fmt.Errorf(
			"%w: authorization code is invalid, expired or already used",
			ErrInvalidGrant,
		)
	}

	fields := log.Fields{"client_id": client.ClientID, "code_client_id": record.ClientID}
	if record.ClientID != client.ClientID {
		s.metrics.RecordAuthCodeExchange("client_mismatch")
		log.WithFields(fields).Warn("Authorization code presented by another client")
		return nil, fmt.Errorf("%w: authorization code was issued to another client", ErrInvalidGrant)
	}
	if record.RedirectURI != redirectURI {
		s.metrics.RecordAuthCodeExchange("redirect_mismatch")
		return nil, fmt.Errorf("%w: redirect_uri does not match the authorization request", ErrInvalidGrant)
	}
	if !pkce.VerifyChallenge(codeVerifier, record.CodeChallenge) {
		s.metrics.RecordAuthCodeExchange("pkce_failed")
		log.WithFields(fields).Warn("PKCE verification failed")
		return nil, fmt.Errorf("%w: code_verifier does not match code_challenge", ErrInvalidGrant)
	}
	s.metrics.RecordAuthCodeExchange("success")

	return s.issueTokens(ctx, client.ClientID, record.Subject, GrantTypeAuthorizationCode)
}

// RefreshAccessToken rotates a refresh token: the presented token is revoked
// and a new access and refresh token are issued.
func (s *TokenService) RefreshAccessToken(
	ctx context.Context,
	client *models.OAuthClient,
	refreshToken string,
) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	record, err := s.store.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}
	if record == nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("%w: refresh token is invalid, expired or revoked", ErrInvalidGrant)
	}
	if record.ClientID != client.ClientID {
		s.metrics.RecordTokenRefresh(false)
		log.WithFields(log.Fields{
			"client_id":       client.ClientID,
			"token_client_id": record.ClientID,
		}).Warn("Refresh token presented by another client")
		return nil, fmt.Errorf("%w: refresh token was issued to another client", ErrInvalidGrant)
	}

	resp, err := s.issueTokens(ctx, client.ClientID, record.Subject, GrantTypeRefreshToken)
	s.metrics.RecordTokenRefresh(err == nil)
	return resp, err
}

func (s *TokenService) issueTokens(
	ctx context.Context,
	clientID, subject, grantType string,
) (*TokenResponse, error) {
	start := time.Now()

	accessTTL := s.config.AccessTokenExpiration
	if accessTTL <= 0 {
		accessTTL = token.DefaultAccessTokenTTL
	}

	accessToken, err := s.keys.SignAccessToken(
		token.AccessTokenPayload{Subject: subject, ClientID: clientID, Scope: config.Scope},
		s.config.Issuer,
		s.config.Audience,
		accessTTL,
	)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued("access", grantType, time.Since(start))

	refreshStart := time.Now()
	refreshToken, err := s.store.SaveRefreshToken(ctx, clientID, subject, s.config.RefreshTokenExpiration)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued("refresh", grantType, time.Since(refreshStart))

	if err := s.store.TouchClient(ctx, clientID); err != nil {
		// Tokens are issued; the new refresh token keeps the client out of cleanup.
		log.WithError(err).WithField("client_id", clientID).Warn("Failed to record client activity")
	}

	log.WithFields(log.Fields{
		"client_id":  clientID,
		"subject":    subject,
		"grant_type": grantType,
	}).Info("Issued tokens")

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(accessTTL.Seconds()),
		Scope:        config.Scope,
	}, nil
}
