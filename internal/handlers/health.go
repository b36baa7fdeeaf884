package handlers

import (
	"context"
	"net/http"

	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
)

// HealthChecker is satisfied by *database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health reports whether the database is reachable
func Health(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteServiceUnavailable(w, "database unreachable")
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
