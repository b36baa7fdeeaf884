package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/learnlog/internal/models"
	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing token claims in context
	UserContextKey contextKey = "user"
	// TokenContextKey is the key for storing the raw bearer token in context
	TokenContextKey contextKey = "token"
)

// VerifyMode selects which token states the middleware lets through
type VerifyMode int

const (
	// RequireValid admits only unexpired tokens
	RequireValid VerifyMode = iota
	// AllowExpired also admits authentic tokens past their expiry.
	// Used by the refresh endpoint only.
	AllowExpired
)

// TokenVerifier is the part of TokenManager the middleware depends on
type TokenVerifier interface {
	Verify(tokenString string) VerifyResult
}

// AuthMiddleware validates bearer tokens and injects claims into context
func AuthMiddleware(tv TokenVerifier, mode VerifyMode) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			result := tv.Verify(tokenString)
			switch {
			case result.Status == TokenValid:
			case result.Status == TokenExpired && mode == AllowExpired:
			default:
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, result.Claims)
			ctx = context.WithValue(ctx, TokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUserFromContext extracts token claims from the request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetTokenFromContext returns the raw bearer token placed by AuthMiddleware
func GetTokenFromContext(r *http.Request) string {
	token, _ := r.Context().Value(TokenContextKey).(string)
	return token
}
