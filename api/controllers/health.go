package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/benchfab/circuitstock/api/responses"
	"github.com/benchfab/circuitstock/pkg/config"
	"github.com/benchfab/circuitstock/pkg/logger"
)

const readinessTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CircuitStock-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every backing service. A nil pinger is treated as
// not configured and skipped, which keeps the worker-less API deploys
// green.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis, pubsub pinger) http.HandlerFunc {
	probes := []struct {
		name   string
		pinger pinger
	}{
		{"database", db},
		{"redis", redis},
		{"pubsub", pubsub},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CircuitStock-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for _, probe := range probes {
			if probe.pinger == nil {
				status[probe.name] = "skipped"
				continue
			}
			if err := probe.pinger.Ping(ctx); err != nil {
				if logg != nil {
					logg.Error(logg.WithField(ctx, "probe", probe.name), "readiness probe failed", err)
				}
				status[probe.name] = "down"
				healthy = false
				continue
			}
			status[probe.name] = "ok"
		}

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, status)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
