package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/GoDocRAG/internal/api"
)

// PingFunc reports whether one dependency is reachable.
type PingFunc func(ctx context.Context) error

var healthChecks map[string]PingFunc

func InitHealthHandler(checks map[string]PingFunc) {
	healthChecks = checks
}

// HealthHandler godoc
// @Summary      Health check
// @Description  Pings Postgres and Redis.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Failure      503  {object}  api.HealthResponse
// @Router       /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	res := api.HealthResponse{Status: "ok", Checks: make(map[string]string, len(healthChecks))}
	status := http.StatusOK
	for name, ping := range healthChecks {
		if err := ping(ctx); err != nil {
			logRH.Warn("Health check failed", "dependency", name, "error", err)
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	writeJsonResponse(w, status, res)
}
