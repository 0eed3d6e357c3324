package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/tally/pkg/http"
)

// HealthChecker pings a dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports database reachability
func Health(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy", Database: "down", Timestamp: time.Now().UTC(),
			})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy", Database: "up", Timestamp: time.Now().UTC(),
		})
	}
}
