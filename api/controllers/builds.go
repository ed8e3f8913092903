package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/benchfab/circuitstock/api/responses"
	"github.com/benchfab/circuitstock/internal/builds"
	"github.com/benchfab/circuitstock/pkg/enums"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/pubsub"
)

// triggerResponse acknowledges that a job was scheduled; outcomes land
// asynchronously on the build record.
type triggerResponse struct {
	Status string    `json:"status"`
	Job    string    `json:"job"`
	ID     uuid.UUID `json:"id"`
}

func scheduleJob(jobs pubsub.JobPublisher, job enums.JobType, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid id"))
			return
		}
		if err := jobs.PublishJob(r.Context(), job, id); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish job"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, triggerResponse{
			Status: "scheduled",
			Job:    string(job),
			ID:     id,
		})
	}
}

func BuildClear(jobs pubsub.JobPublisher, logg *logger.Logger) http.HandlerFunc {
	return scheduleJob(jobs, enums.JobClearBuild, logg)
}

func BuildComplete(jobs pubsub.JobPublisher, logg *logger.Logger) http.HandlerFunc {
	return scheduleJob(jobs, enums.JobCompleteBuild, logg)
}

func BuildCancel(jobs pubsub.JobPublisher, logg *logger.Logger) http.HandlerFunc {
	return scheduleJob(jobs, enums.JobCancelBuild, logg)
}

// BuildGet returns the build with its reservations and the shortage
// snapshots of failed clearance attempts.
func BuildGet(service builds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid build id"))
			return
		}
		build, err := service.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, build)
	}
}
