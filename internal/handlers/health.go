package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kotoba-voice/kotoba/internal/database"
	"github.com/kotoba-voice/kotoba/internal/middleware"
)

// HealthChecker handles health check requests
type HealthChecker struct {
	db    *database.DB
	redis *middleware.RedisClient
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *database.DB, redis *middleware.RedisClient) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK

	if mode == "extended" {
		checks := make(map[string]string)

		if err := h.checkDatabase(r.Context()); err != nil {
			response.Status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}

		if h.redis != nil {
			if err := h.redis.Ping(r.Context()); err != nil {
				response.Status = "unhealthy"
				checks["redis"] = "unhealthy: " + err.Error()
			} else {
				checks["redis"] = "healthy"
			}
		}

		response.Checks = checks

		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.PingContext(ctx)
}
