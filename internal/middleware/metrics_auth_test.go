package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const testMetricsToken = "test-secret-token-123"

func metricsRouter(token string) *gin.Engine {
	r := gin.New()
	r.GET("/metrics", MetricsAuthMiddleware(token), func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})
	return r
}

func TestMetricsAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"open when no token configured", "", "", http.StatusOK},
		{"valid token", testMetricsToken, "Bearer " + testMetricsToken, http.StatusOK},
		{"lowercase scheme", testMetricsToken, "bearer " + testMetricsToken, http.StatusOK},
		{"invalid token", testMetricsToken, "Bearer wrong", http.StatusUnauthorized},
		{"missing header", testMetricsToken, "", http.StatusUnauthorized},
		{"basic scheme", testMetricsToken, "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty bearer", testMetricsToken, "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			metricsRouter(tt.configured).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Bearer realm="Metrics"`, w.Header().Get("WWW-Authenticate"))
				assert.Contains(t, w.Body.String(), "unauthorized")
			} else {
				assert.Equal(t, "metrics", w.Body.String())
			}
		})
	}
}
