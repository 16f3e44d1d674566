package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-authgate/agentgate/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// basicRealm is the realm of the token endpoint's Basic challenge.
const basicRealm = `Basic realm="agentgate"`

// protocolErrors maps service sentinels to their HTTP status.
var protocolErrors = []struct {
	err    error
	status int
}{
	{services.ErrInvalidRequest, http.StatusBadRequest},
	{services.ErrInvalidClient, http.StatusBadRequest},
	{services.ErrInvalidGrant, http.StatusBadRequest},
	{services.ErrInvalidClientMetadata, http.StatusBadRequest},
	{services.ErrUnsupportedGrantType, http.StatusBadRequest},
}

// oauthError writes an RFC 6749 section 5.2 error body.
func oauthError(c *gin.Context, status int, code, description string) {
	body := gin.H{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	c.JSON(status, body)
}

// respondError answers a service error. Protocol errors keep their code and
// description; anything else is logged and hidden behind server_error.
func respondError(c *gin.Context, err error) {
	for _, pe := range protocolErrors {
		if errors.Is(err, pe.err) {
			oauthError(c, pe.status, pe.err.Error(), describe(err, pe.err))
			return
		}
	}

	log.WithError(err).WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Internal error while handling OAuth request")
	oauthError(c, http.StatusInternalServerError, "server_error", "An internal error occurred")
}

// describe strips the sentinel's code from the wrapped message.
func describe(err, sentinel error) string {
	msg := err.Error()
	return strings.TrimPrefix(strings.TrimPrefix(msg, sentinel.Error()), ": ")
}

// invalidClient answers a failed token endpoint client authentication
// (RFC 6749 section 5.2: 401 with a challenge).
func invalidClient(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", basicRealm)
	oauthError(c, http.StatusUnauthorized, "invalid_client", description)
}
