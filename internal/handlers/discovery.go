package handlers

import (
	"net/http"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/pkce"
	"github.com/go-authgate/agentgate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"
)

const discoveryCacheControl = "public, max-age=3600"

// JWKSProvider exposes the public signing keys.
type JWKSProvider interface {
	PublicJWKS() jose.JSONWebKeySet
}

// DiscoveryHandler serves the metadata documents and the JWKS.
type DiscoveryHandler struct {
	config *config.Config
	keys   JWKSProvider
}

func NewDiscoveryHandler(cfg *config.Config, keys JWKSProvider) *DiscoveryHandler {
	return &DiscoveryHandler{config: cfg, keys: keys}
}

// authorizationServerMetadata is the RFC 8414 document.
type authorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}

// protectedResourceMetadata is the RFC 9728 document.
type protectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// Metadata godoc
//
//	@Summary		Authorization server metadata
//	@Description	OAuth 2.0 Authorization Server Metadata (RFC 8414)
//	@Tags			Discovery
//	@Produce		json
//	@Success		200	{object}	authorizationServerMetadata
//	@Router			/.well-known/oauth-authorization-server [get]
func (h *DiscoveryHandler) Metadata(c *gin.Context) {
	issuer := h.config.Issuer
	c.Header("Cache-Control", discoveryCacheControl)
	c.JSON(http.StatusOK, authorizationServerMetadata{
		Issuer:                        issuer,
		AuthorizationEndpoint:         h.config.FrontendURL + "/oauth/authorize",
		TokenEndpoint:                 issuer + "/oauth/token",
		RegistrationEndpoint:          issuer + "/oauth/register",
		JWKSURI:                       issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           services.DefaultGrantTypes,
		CodeChallengeMethodsSupported: []string{pkce.MethodS256},
		TokenEndpointAuthMethodsSupported: []string{
			services.AuthMethodClientSecretBasic,
			services.AuthMethodClientSecretPost,
		},
		ScopesSupported: []string{config.Scope},
	})
}

// ProtectedResource godoc
//
//	@Summary		Protected resource metadata
//	@Description	OAuth 2.0 Protected Resource Metadata for the MCP endpoint (RFC 9728)
//	@Tags			Discovery
//	@Produce		json
//	@Success		200	{object}	protectedResourceMetadata
//	@Router			/.well-known/oauth-protected-resource [get]
func (h *DiscoveryHandler) ProtectedResource(c *gin.Context) {
	c.Header("Cache-Control", discoveryCacheControl)
	c.JSON(http.StatusOK, protectedResourceMetadata{
		Resource:               h.config.ResourceURL(),
		AuthorizationServers:   []string{h.config.Issuer},
		ScopesSupported:        []string{config.Scope},
		BearerMethodsSupported: []string{"header"},
	})
}

// JWKS godoc
//
//	@Summary		JSON Web Key Set
//	@Description	Public RSA keys for verifying access token signatures (RFC 7517)
//	@Tags			Discovery
//	@Produce		json
//	@Success		200	{object}	object{keys=[]object}
//	@Router			/.well-known/jwks.json [get]
func (h *DiscoveryHandler) JWKS(c *gin.Context) {
	c.Header("Cache-Control", discoveryCacheControl)
	c.JSON(http.StatusOK, h.keys.PublicJWKS())
}
