package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/benchfab/circuitstock/api/controllers"
	"github.com/benchfab/circuitstock/api/middleware"
	"github.com/benchfab/circuitstock/internal/bom"
	"github.com/benchfab/circuitstock/internal/builds"
	"github.com/benchfab/circuitstock/pkg/config"
	"github.com/benchfab/circuitstock/pkg/db"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/pubsub"
	"github.com/benchfab/circuitstock/pkg/redis"
)

// NewRouter assembles the HTTP surface: health probes, job triggers and
// read endpoints. Mutations are one-way job publishes; reads hit the
// database directly.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	jobs pubsub.JobPublisher,
	buildService builds.Service,
	bomRepo bom.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, pubsubClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/projects/{projectID}/versions", controllers.VersionCreate(bomRepo, logg))
		r.Route("/projects/versions/{id}", func(r chi.Router) {
			r.Get("/", controllers.VersionGet(bomRepo, logg))
			r.Post("/sync", controllers.VersionSync(jobs, logg))
		})

		r.Route("/builds/{id}", func(r chi.Router) {
			r.Get("/", controllers.BuildGet(buildService, logg))
			r.Post("/clear", controllers.BuildClear(jobs, logg))
			r.Post("/complete", controllers.BuildComplete(jobs, logg))
			r.Post("/cancel", controllers.BuildCancel(jobs, logg))
		})

		r.Post("/orders/{id}/complete", controllers.OrderComplete(jobs, logg))
	})

	return r
}
