package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(required bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(NewHMACVerifier("k"), required))
	r.GET("/who", func(c *gin.Context) {
		name, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": name, "ok": ok})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := GenerateToken("k", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		required bool
		header   string
		status   int
		body     string
	}{
		{"optional without header", false, "", http.StatusOK, `{"ok":false,"user":""}`},
		{"optional with valid token", false, "Bearer " + valid, http.StatusOK, `{"ok":true,"user":"alice"}`},
		{"optional with bad token", false, "Bearer nope", http.StatusUnauthorized, ""},
		{"required without header", true, "", http.StatusUnauthorized, ""},
		{"required malformed header", true, "Token " + valid, http.StatusUnauthorized, ""},
		{"required with valid token", true, "Bearer " + valid, http.StatusOK, `{"ok":true,"user":"alice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			newAuthRouter(tt.required).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, w.Body.String())
			}
		})
	}
}
