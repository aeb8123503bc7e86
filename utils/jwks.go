package utils

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// JWKSVerifier checks RS256 tokens against a remote key set. An unknown key id
// triggers a refetch, at most once a minute.
type JWKSVerifier struct {
	jwks *keyfunc.JWKS
}

// NewJWKSVerifier fetches the key set once and fails if it is unreachable.
func NewJWKSVerifier(url string, client *http.Client) (*JWKSVerifier, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Client:            client,
		RefreshUnknownKID: true,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    client.Timeout,
		RefreshErrorHandler: func(err error) {
			Log.Warn("jwks refresh failed", zap.String("url", url), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	return &JWKSVerifier{jwks: jwks}, nil
}

func (v *JWKSVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.jwks.Keyfunc(token)
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return usernameFromClaims(claims)
}

// Close stops the background refresh goroutine.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}
