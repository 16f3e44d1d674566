package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-authgate/agentgate/internal/identity"
	"github.com/go-authgate/agentgate/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer      = "https://auth.example.com"
	testAudience    = "family-todo-mcp"
	testMetadataURL = "https://auth.example.com/.well-known/oauth-protected-resource"
)

type fakeVerifier struct {
	valid map[string]string // token -> subject
}

func (f fakeVerifier) VerifyAccessToken(tokenString, issuer, audience string) *token.AccessTokenClaims {
	subject, ok := f.valid[tokenString]
	if !ok || issuer != testIssuer || audience != testAudience {
		return nil
	}
	return &token.AccessTokenClaims{
		ClientID:         "client-1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
}

type fakeBridge struct {
	fail bool
}

func (f fakeBridge) Impersonate(_ context.Context, subject string) (*identity.Session, error) {
	if f.fail {
		return nil, identity.ErrImpersonationFailed
	}
	return &identity.Session{Subject: subject, Token: "pb-" + subject}, nil
}

func bearerRouter(bridge identity.Bridge) *gin.Engine {
	r := gin.New()
	r.POST("/mcp", BearerAuth(BearerConfig{
		Verifier:            fakeVerifier{valid: map[string]string{"good-token": "user_4f2c"}},
		Bridge:              bridge,
		Issuer:              testIssuer,
		Audience:            testAudience,
		ResourceMetadataURL: testMetadataURL,
	}), func(c *gin.Context) {
		claims, ok := token.ClaimsFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		session, ok := identity.SessionFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		_, hasClaims := c.Get(ContextKeyClaims)
		c.JSON(http.StatusOK, gin.H{
			"subject":    claims.Subject,
			"client_id":  claims.ClientID,
			"pb_token":   session.Token,
			"gin_claims": hasClaims,
		})
	})
	return r
}

type jsonRPCError struct {
	JSONRPC string `json:"jsonrpc"`
	Error   struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestBearerAuth_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		bridge        identity.Bridge
		wantMessage   string
		wantChallenge string
	}{
		{
			name:          "missing header",
			bridge:        fakeBridge{},
			wantMessage:   msgMissingToken,
			wantChallenge: `Bearer resource_metadata="` + testMetadataURL + `"`,
		},
		{
			name:          "wrong scheme",
			header:        "Basic Z29vZC10b2tlbg==",
			bridge:        fakeBridge{},
			wantMessage:   msgMissingToken,
			wantChallenge: `Bearer resource_metadata="` + testMetadataURL + `"`,
		},
		{
			name:          "unknown token",
			header:        "Bearer forged-token",
			bridge:        fakeBridge{},
			wantMessage:   msgInvalidToken,
			wantChallenge: `Bearer error="invalid_token", resource_metadata="` + testMetadataURL + `"`,
		},
		{
			name:          "impersonation fails closed",
			header:        "Bearer good-token",
			bridge:        fakeBridge{fail: true},
			wantMessage:   msgIdentityFailed,
			wantChallenge: `Bearer resource_metadata="` + testMetadataURL + `"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			bearerRouter(tt.bridge).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.wantChallenge, w.Header().Get("WWW-Authenticate"))

			var body jsonRPCError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "2.0", body.JSONRPC)
			assert.Equal(t, -32600, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
		})
	}
}

func TestBearerAuth_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	bearerRouter(fakeBridge{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user_4f2c", body["subject"])
	assert.Equal(t, "client-1", body["client_id"])
	assert.Equal(t, "pb-user_4f2c", body["pb_token"])
	assert.Equal(t, true, body["gin_claims"])
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
