package jobs

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/benchfab/circuitstock/internal/bom"
	"github.com/benchfab/circuitstock/pkg/db/models"
	"github.com/benchfab/circuitstock/pkg/enums"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/metrics"
	"github.com/benchfab/circuitstock/pkg/pubsub"
	"github.com/benchfab/circuitstock/pkg/redis"
)

// idempotencyTTL bounds how long a processed job fences its duplicates.
// Pub/Sub redelivery windows are far shorter than a day.
const idempotencyTTL = 24 * time.Hour

type buildService interface {
	Clear(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error)
	Complete(ctx context.Context, buildID uuid.UUID) error
	Cancel(ctx context.Context, buildID uuid.UUID) error
}

type orderService interface {
	Complete(ctx context.Context, orderID uuid.UUID) error
}

type syncService interface {
	Sync(ctx context.Context, versionID uuid.UUID) (*bom.SyncResult, error)
}

type enrichService interface {
	Enrich(ctx context.Context, vendorPartID uuid.UUID) error
}

type subscription interface {
	Receive(ctx context.Context, f func(ctx context.Context, msg *gcppubsub.Message)) error
}

// Consumer dispatches job messages to the owning service, fencing
// duplicate deliveries through Redis.
type Consumer struct {
	subscription subscription
	idempotency  redis.IdempotencyStore
	metrics      *metrics.JobMetrics
	logg         *logger.Logger
	handlers     map[enums.JobType]func(ctx context.Context, id uuid.UUID) error
}

// NewConsumer wires every job type to its handler. The metrics argument
// may be nil when no registry is running.
func NewConsumer(
	sub subscription,
	idempotency redis.IdempotencyStore,
	builds buildService,
	orders orderService,
	sync syncService,
	enrich enrichService,
	jobMetrics *metrics.JobMetrics,
	logg *logger.Logger,
) (*Consumer, error) {
	if sub == nil {
		return nil, errors.New("jobs subscription is required")
	}
	if idempotency == nil {
		return nil, errors.New("idempotency store is required")
	}
	if builds == nil || orders == nil || sync == nil || enrich == nil {
		return nil, errors.New("all job services are required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	c := &Consumer{
		subscription: sub,
		idempotency:  idempotency,
		metrics:      jobMetrics,
		logg:         logg,
	}
	c.handlers = map[enums.JobType]func(ctx context.Context, id uuid.UUID) error{
		enums.JobSyncVersion: func(ctx context.Context, id uuid.UUID) error {
			_, err := sync.Sync(ctx, id)
			return err
		},
		enums.JobClearBuild: func(ctx context.Context, id uuid.UUID) error {
			_, err := builds.Clear(ctx, id)
			return err
		},
		enums.JobCompleteBuild:    builds.Complete,
		enums.JobCancelBuild:      builds.Cancel,
		enums.JobCompleteOrder:    orders.Complete,
		enums.JobEnrichVendorPart: enrich.Enrich,
	}
	return c, nil
}

// Run processes messages until the context is canceled or the
// subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	job, err := pubsub.DecodeJobMessage(msg.Data)
	if err != nil {
		// Malformed payloads never become valid on retry.
		c.logg.Error(logCtx, "dropping undecodable job message", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"job": string(job.Job),
		"id":  job.ID.String(),
	})

	key := c.idempotency.IdempotencyKey(string(job.Job), job.ID.String())
	fresh, err := c.idempotency.SetNX(logCtx, key, time.Now().UTC().Format(time.RFC3339), idempotencyTTL)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.metrics.IncDuplicate(string(job.Job))
		c.logg.Info(logCtx, "skipping duplicate job delivery")
		return processResult{ack: true}
	}

	handler, ok := c.handlers[job.Job]
	if !ok {
		c.logg.Warn(logCtx, "no handler registered for job")
		return processResult{ack: true}
	}

	start := time.Now()
	err = handler(logCtx, job.ID)
	c.metrics.ObserveDuration(string(job.Job), time.Since(start))

	if err == nil {
		c.metrics.IncSuccess(string(job.Job))
		c.logg.Info(logCtx, "job processed")
		return processResult{ack: true}
	}

	c.metrics.IncFailure(string(job.Job))
	if pkgerrors.Retryable(err) {
		// Release the fence so the redelivery can run the job again.
		if delErr := c.idempotency.Del(logCtx, key); delErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency key", delErr)
		}
		c.logg.Error(logCtx, "job failed, requesting redelivery", err)
		return processResult{nack: true}
	}

	// Business outcomes such as inventory shortages are final for this
	// delivery. The shortage snapshot is already persisted.
	c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "job rejected")
	return processResult{ack: true}
}
