package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/models"
	"github.com/go-authgate/agentgate/internal/store"
	"github.com/go-authgate/agentgate/internal/util"

	log "github.com/sirupsen/logrus"
)

const (
	maxRedirectURIs  = 10
	maxClientNameLen = 256
	responseTypeCode = "code"
)

// DefaultGrantTypes is applied when a registration omits grant_types.
var DefaultGrantTypes = []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken}

// RegisterClientRequest is the client metadata of a Dynamic Client
// Registration request (RFC 7591 section 2).
type RegisterClientRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegisteredClient is the RFC 7591 registration response.
type RegisteredClient struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// ClientService owns the client registry rules.
type ClientService struct {
	store   *store.Store
	metrics metrics.Recorder
}

func NewClientService(s *store.Store, m metrics.Recorder) *ClientService {
	return &ClientService{store: s, metrics: m}
}

// Register validates the metadata and creates a confidential client.
// Validation failures wrap ErrInvalidClientMetadata.
func (s *ClientService) Register(
	ctx context.Context,
	req RegisterClientRequest,
) (*RegisteredClient, error) {
	grantTypes, authMethod, err := validateClientMetadata(&req)
	if err != nil {
		s.metrics.RecordClientRegistered(false)
		return nil, err
	}

	client, secret, err := s.store.CreateClient(ctx, req.ClientName, req.RedirectURIs)
	if err != nil {
		s.metrics.RecordClientRegistered(false)
		if errors.Is(err, store.ErrValidation) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidClientMetadata, err)
		}
		return nil, err
	}
	s.metrics.RecordClientRegistered(true)

	log.WithFields(log.Fields{
		"client_id":     client.ClientID,
		"client_name":   client.ClientName,
		"redirect_uris": len(client.RedirectURIs),
	}).Info("Registered OAuth client")

	return &RegisteredClient{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientSecretExpiresAt:   0,
		ClientName:              client.ClientName,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           []string{responseTypeCode},
		TokenEndpointAuthMethod: authMethod,
	}, nil
}

func validateClientMetadata(req *RegisterClientRequest) ([]string, string, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, "", fmt.Errorf("%w: redirect_uris is required", ErrInvalidClientMetadata)
	}
	if len(req.RedirectURIs) > maxRedirectURIs {
		return nil, "", fmt.Errorf(
			"%w: at most %d redirect_uris are allowed",
			ErrInvalidClientMetadata, maxRedirectURIs,
		)
	}
	for _, uri := range req.RedirectURIs {
		if !util.IsValidRedirectURI(uri) {
			return nil, "", fmt.Errorf("%w: invalid redirect_uri %q", ErrInvalidClientMetadata, uri)
		}
	}

	req.ClientName = strings.TrimSpace(req.ClientName)
	if len([]rune(req.ClientName)) > maxClientNameLen {
		return nil, "", fmt.Errorf(
			"%w: client_name must be at most %d characters",
			ErrInvalidClientMetadata, maxClientNameLen,
		)
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = DefaultGrantTypes
	}
	for _, gt := range grantTypes {
		if gt != GrantTypeAuthorizationCode && gt != GrantTypeRefreshToken {
			return nil, "", fmt.Errorf("%w: unsupported grant_type %q", ErrInvalidClientMetadata, gt)
		}
	}
	if !slices.Contains(grantTypes, GrantTypeAuthorizationCode) {
		return nil, "", fmt.Errorf(
			"%w: grant_types must include %s",
			ErrInvalidClientMetadata, GrantTypeAuthorizationCode,
		)
	}

	for _, rt := range req.ResponseTypes {
		if rt != responseTypeCode {
			return nil, "", fmt.Errorf("%w: unsupported response_type %q", ErrInvalidClientMetadata, rt)
		}
	}

	authMethod := req.TokenEndpointAuthMethod
	switch authMethod {
	case "":
		authMethod = AuthMethodClientSecretBasic
	case AuthMethodClientSecretBasic, AuthMethodClientSecretPost:
	default:
		return nil, "", fmt.Errorf(
			"%w: unsupported token_endpoint_auth_method %q",
			ErrInvalidClientMetadata, authMethod,
		)
	}

	return slices.Clone(grantTypes), authMethod, nil
}

// GetClientInfo returns the public view of a client, or ErrInvalidClient
// when it does not exist.
func (s *ClientService) GetClientInfo(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	return client, nil
}

// DeleteClient removes a client with its codes and refresh tokens.
func (s *ClientService) DeleteClient(ctx context.Context, clientID string) error {
	deleted, err := s.store.DeleteClient(ctx, clientID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	log.WithField("client_id", clientID).Info("Deleted OAuth client")
	return nil
}

// RevokeTokens revokes every active refresh token of a client and returns
// how many were revoked. Access tokens already issued stay valid until they
// expire.
func (s *ClientService) RevokeTokens(ctx context.Context, clientID string) (int64, error) {
	if _, err := s.GetClientInfo(ctx, clientID); err != nil {
		return 0, err
	}

	revoked, err := s.store.RevokeRefreshTokensForClient(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	log.WithFields(log.Fields{
		"client_id": clientID,
		"revoked":   revoked,
	}).Info("Revoked refresh tokens")
	return revoked, nil
}
