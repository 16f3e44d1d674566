package handlers

import (
	"errors"
	"net/http"

	"github.com/go-authgate/agentgate/internal/services"

	"github.com/gin-gonic/gin"
)

// ClientHandler serves Dynamic Client Registration and public client info.
type ClientHandler struct {
	clientService *services.ClientService
}

func NewClientHandler(cs *services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: cs}
}

// Register godoc
//
//	@Summary		Register a client
//	@Description	Dynamic Client Registration (RFC 7591)
//	@Tags			OAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		services.RegisterClientRequest	true	"Client metadata"
//	@Success		201		{object}	services.RegisteredClient
//	@Failure		400		{object}	object{error=string,error_description=string}	"invalid_client_metadata"
//	@Failure		429		{object}	object{error=string,error_description=string}	"Rate limit exceeded"
//	@Router			/oauth/register [post]
func (h *ClientHandler) Register(c *gin.Context) {
	var req services.RegisterClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_client_metadata", "Request body must be a JSON client metadata document")
		return
	}

	client, err := h.clientService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, client)
}

// ClientInfo godoc
//
//	@Summary		Get public client info
//	@Description	Public view of a registered client for the consent screen. Secrets are never returned.
//	@Tags			OAuth
//	@Produce		json
//	@Param			id	path		string	true	"Client ID"
//	@Success		200	{object}	object{client_id=string,client_name=string,redirect_uris=[]string}
//	@Failure		404	{object}	object{error=string,error_description=string}	"invalid_client"
//	@Router			/oauth/client/{id} [get]
func (h *ClientHandler) ClientInfo(c *gin.Context) {
	client, err := h.clientService.GetClientInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidClient) {
			oauthError(c, http.StatusNotFound, "invalid_client", "Unknown client")
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id":     client.ClientID,
		"client_name":   client.ClientName,
		"redirect_uris": client.RedirectURIs,
	})
}
