package handlers

import (
	"net/http"

	"github.com/go-authgate/agentgate/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizeHandler issues authorization codes for the consent UI.
type AuthorizeHandler struct {
	authorizationService *services.AuthorizationService
}

func NewAuthorizeHandler(as *services.AuthorizationService) *AuthorizeHandler {
	return &AuthorizeHandler{authorizationService: as}
}

// Authorize godoc
//
//	@Summary		Issue an authorization code
//	@Description	Called by the consent UI after the user approved the client (RFC 6749 section 4.1, PKCE S256 required)
//	@Tags			OAuth
//	@Accept			json
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		services.AuthorizeRequest	true	"Authorization request"
//	@Success		200		{object}	services.AuthorizeResult
//	@Failure		400		{object}	object{error=string,error_description=string}	"invalid_request or invalid_client"
//	@Router			/oauth/authorize [post]
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	var req services.AuthorizeRequest
	if err := c.ShouldBind(&req); err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_request", "Malformed authorization request")
		return
	}

	result, err := h.authorizationService.Authorize(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result)
}
