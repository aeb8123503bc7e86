package utils

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ctxUsername = "username"

// AuthMiddleware resolves the bearer token to a username. A missing header is only
// rejected when required is set; a present but invalid token is always rejected.
func AuthMiddleware(verifier IdentityVerifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				Fail(c, http.StatusUnauthorized, "missing or invalid token")
				return
			}
			c.Next()
			return
		}
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			Fail(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		username, err := verifier.Verify(c.Request.Context(), tokenParts[1])
		if err != nil {
			Log.Debug("token rejected", zap.Error(err))
			Fail(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		c.Set(ctxUsername, username)
		c.Next()
	}
}

// CurrentUser returns the authenticated username, if any.
func CurrentUser(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUsername)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok && name != ""
}

// RequestID tags every request and response with X-Request-Id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = GetToken()
		}
		c.Set("request_id", rid)
		c.Header("X-Request-Id", rid)
		c.Next()
	}
}

// GinZapLogger writes one access log line per request.
func GinZapLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			fields = append(fields, zap.String("error", errorMessage))
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			Log.Error("request", fields...)
		case statusCode >= http.StatusBadRequest:
			Log.Warn("request", fields...)
		default:
			Log.Info("request", fields...)
		}
	}
}
