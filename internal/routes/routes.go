package routes

import (
	"net/http"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/handlers"
	"github.com/BradenHooton/learnlog/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenVerifier auth.TokenVerifier,
	health http.HandlerFunc,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Get("/health", health)

	router.Route("/auth", func(r chi.Router) {
		// One bucket per client address shared by every auth endpoint
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/session", authHandler.Session)

		// Refresh is the one place an expired access token is accepted
		r.With(auth.AuthMiddleware(tokenVerifier, auth.AllowExpired)).
			Post("/refresh-token", authHandler.RefreshToken)
	})
}
