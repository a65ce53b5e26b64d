package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/tranvu/mercato/internal/handler"
	"github.com/tranvu/mercato/internal/router"
)

// RegisterSystemRoutes registers the operational endpoints: liveness,
// readiness and Prometheus metrics.
func RegisterSystemRoutes(r *router.Router, deps SystemDeps) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if deps.PingDB != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := deps.PingDB(ctx); err != nil {
				handler.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"reason": "database unreachable",
				})
				return
			}
		}
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
}
