package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranshivaraju/sceneswitch/internal/api/response"
	"github.com/kiranshivaraju/sceneswitch/internal/provider"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

const healthProbeTimeout = 3 * time.Second

// Pinger is anything with a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns GET /api/v1/health. It reports database, cache and
// provider readiness and answers 503 when any of them is degraded.
func NewHealthHandler(db, cache Pinger, p models.TransformationProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"provider": "ok",
		}
		if err := db.Ping(ctx); err != nil {
			checks["database"] = "degraded"
		}
		if err := cache.Ping(ctx); err != nil {
			checks["cache"] = "degraded"
		}
		if err := provider.Ready(ctx, p); err != nil {
			checks["provider"] = "degraded"
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"provider": p.Name(),
			"services": checks,
		})
	}
}
