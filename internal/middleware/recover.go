package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global Sentry client. An empty DSN disables it.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry waits for buffered events to be delivered
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// Recover turns a handler panic into a 500, logs it and reports it to Sentry.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("method", r.Method)
					scope.SetTag("path", r.URL.Path)
					scope.SetExtra("stack", stack)
					sentry.CaptureMessage(fmt.Sprintf("panic in request: %v", rec))
				})

				logger.ErrorContext(r.Context(), "panic_recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)

				pkghttp.WriteInternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
