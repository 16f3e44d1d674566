package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-authgate/agentgate/internal/services"

	"github.com/gin-gonic/gin"
)

// tokenRequest accepts both application/x-www-form-urlencoded (RFC 6749)
// and JSON bodies.
type tokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	Code         string `json:"code" form:"code"`
	RedirectURI  string `json:"redirect_uri" form:"redirect_uri"`
	CodeVerifier string `json:"code_verifier" form:"code_verifier"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

type TokenHandler struct {
	tokenService *services.TokenService
}

func NewTokenHandler(ts *services.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: ts}
}

// Token godoc
//
//	@Summary		Request access token
//	@Description	Exchange an authorization code or rotate a refresh token (RFC 6749 sections 4.1.3 and 6)
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			grant_type		formData	string	true	"authorization_code or refresh_token"
//	@Param			code			formData	string	false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string	false	"Redirect URI used in the authorization request"
//	@Param			code_verifier	formData	string	false	"PKCE verifier"
//	@Param			refresh_token	formData	string	false	"Refresh token (refresh_token grant)"
//	@Success		200				{object}	services.TokenResponse
//	@Failure		400				{object}	object{error=string,error_description=string}	"invalid_request, invalid_grant, unsupported_grant_type"
//	@Failure		401				{object}	object{error=string,error_description=string}	"invalid_client"
//	@Failure		429				{object}	object{error=string,error_description=string}	"Rate limit exceeded"
//	@Router			/oauth/token [post]
func (h *TokenHandler) Token(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_request", "Malformed token request")
		return
	}

	switch req.GrantType {
	case "":
		oauthError(c, http.StatusBadRequest, "invalid_request", "grant_type is required")
		return
	case services.GrantTypeAuthorizationCode, services.GrantTypeRefreshToken:
	default:
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type",
			"Supported grant types: authorization_code, refresh_token")
		return
	}

	clientID, clientSecret := clientCredentials(c, req)
	if clientID == "" || clientSecret == "" {
		invalidClient(c, "Client authentication required: use HTTP Basic or client_id and client_secret in the body")
		return
	}

	ctx := c.Request.Context()
	client, err := h.tokenService.AuthenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		invalidClient(c, "Client authentication failed")
		return
	}

	var resp *services.TokenResponse
	if req.GrantType == services.GrantTypeAuthorizationCode {
		resp, err = h.tokenService.ExchangeAuthorizationCode(ctx, client, req.Code, req.RedirectURI, req.CodeVerifier)
	} else {
		resp, err = h.tokenService.RefreshAccessToken(ctx, client, req.RefreshToken)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// clientCredentials prefers HTTP Basic (RFC 6749 section 2.3.1) when it
// carries both an id and a secret, and falls back to the body otherwise.
func clientCredentials(c *gin.Context, req tokenRequest) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok && id != "" && secret != "" {
		// Basic credentials are form-urlencoded before base64 encoding.
		if decoded, err := url.QueryUnescape(id); err == nil {
			id = decoded
		}
		if decoded, err := url.QueryUnescape(secret); err == nil {
			secret = decoded
		}
		return id, secret
	}
	return req.ClientID, req.ClientSecret
}
