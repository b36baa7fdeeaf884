package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds per-address request limiting for the auth routes.
// It sits in front of the login throttle and only blunts request floods.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	IPConfig *pkghttp.IPConfig
}

// DefaultAuthRateLimit allows 20 auth requests per minute per client address
func DefaultAuthRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{
		Requests: 20,
		Window:   time.Minute,
		IPConfig: ipConfig,
	}
}

// RateLimitByIP limits requests by client address. The address is resolved
// the same way the login ledger resolves it, so forwarded headers are only
// honored from trusted proxies.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		config.Requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
