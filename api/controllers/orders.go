package controllers

import (
	"net/http"

	"github.com/benchfab/circuitstock/pkg/enums"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/pubsub"
)

// OrderComplete schedules receiving of a vendor order into inventory.
func OrderComplete(jobs pubsub.JobPublisher, logg *logger.Logger) http.HandlerFunc {
	return scheduleJob(jobs, enums.JobCompleteOrder, logg)
}
