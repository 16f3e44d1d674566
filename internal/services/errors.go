package services

import "errors"

// Protocol errors. The text of each is the RFC 6749 / RFC 7591 error code;
// services wrap them with a description, handlers map them to responses.
var (
	ErrInvalidRequest        = errors.New("invalid_request")
	ErrInvalidClient         = errors.New("invalid_client")
	ErrInvalidGrant          = errors.New("invalid_grant")
	ErrInvalidClientMetadata = errors.New("invalid_client_metadata")
	ErrUnsupportedGrantType  = errors.New("unsupported_grant_type")
)

// Grant types supported by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Token endpoint client authentication methods.
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)
