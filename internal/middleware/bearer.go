package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-authgate/agentgate/internal/identity"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/token"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// JSON-RPC "Invalid Request"; MCP clients expect JSON-RPC shaped errors.
const jsonRPCInvalidRequest = -32600

const (
	msgMissingToken   = "missing bearer token"
	msgInvalidToken   = "invalid or expired token"
	msgIdentityFailed = "identity resolution failed"
)

// Gin context keys set by BearerAuth.
const (
	ContextKeyClaims  = "access_token_claims"
	ContextKeySession = "identity_session"
)

// TokenVerifier verifies access tokens issued by this server.
type TokenVerifier interface {
	VerifyAccessToken(tokenString, issuer, audience string) *token.AccessTokenClaims
}

// BearerConfig configures BearerAuth.
type BearerConfig struct {
	Verifier TokenVerifier
	Bridge   identity.Bridge
	Issuer   string
	Audience string

	// ResourceMetadataURL is advertised in WWW-Authenticate (RFC 9728 section 5.1).
	ResourceMetadataURL string
	Metrics             metrics.Recorder
}

// BearerAuth guards the protected resource. The access token must verify
// for exactly the configured issuer and audience and its subject must
// impersonate successfully; every failure is a 401. On success the claims
// and the session are available from the gin context and from the request
// context (token.ClaimsFromContext, identity.SessionFromContext).
func BearerAuth(cfg BearerConfig) gin.HandlerFunc {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	challenge := fmt.Sprintf(`Bearer resource_metadata=%q`, cfg.ResourceMetadataURL)
	invalidChallenge := fmt.Sprintf(
		`Bearer error="invalid_token", resource_metadata=%q`,
		cfg.ResourceMetadataURL,
	)

	return func(c *gin.Context) {
		start := time.Now()

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			recorder.RecordTokenValidation("missing", time.Since(start))
			abortJSONRPCUnauthorized(c, challenge, msgMissingToken)
			return
		}

		claims := cfg.Verifier.VerifyAccessToken(raw, cfg.Issuer, cfg.Audience)
		if claims == nil {
			recorder.RecordTokenValidation("invalid", time.Since(start))
			log.WithField("client_ip", c.ClientIP()).Debug("Rejected access token")
			abortJSONRPCUnauthorized(c, invalidChallenge, msgInvalidToken)
			return
		}
		recorder.RecordTokenValidation("valid", time.Since(start))

		session, err := cfg.Bridge.Impersonate(c.Request.Context(), claims.Subject)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"subject":   claims.Subject,
				"client_id": claims.ClientID,
			}).Error("Failed to resolve identity for access token")
			abortJSONRPCUnauthorized(c, challenge, msgIdentityFailed)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeySession, session)
		ctx := token.WithClaims(c.Request.Context(), claims)
		ctx = identity.WithSession(ctx, session)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortJSONRPCUnauthorized(c *gin.Context, challenge, message string) {
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"jsonrpc": "2.0",
		"error": gin.H{
			"code":    jsonRPCInvalidRequest,
			"message": message,
		},
	})
}
