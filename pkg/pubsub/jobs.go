package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/benchfab/circuitstock/pkg/enums"
)

// JobMessage is the envelope carried on the jobs topic. Every job names the
// operation to run and the single entity it operates on.
type JobMessage struct {
	Job enums.JobType `json:"job"`
	ID  uuid.UUID     `json:"id"`
}

// Validate reports whether the message names a known job and a non-nil target.
func (m JobMessage) Validate() error {
	if !m.Job.IsValid() {
		return fmt.Errorf("unknown job type %q", m.Job)
	}
	if m.ID == uuid.Nil {
		return fmt.Errorf("job %q requires a target id", m.Job)
	}
	return nil
}

// DecodeJobMessage parses a jobs topic payload.
func DecodeJobMessage(data []byte) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return JobMessage{}, fmt.Errorf("decoding job message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return JobMessage{}, err
	}
	return msg, nil
}

// JobPublisher enqueues jobs for the worker. Services depend on this
// interface rather than the concrete client so tests can capture publishes.
type JobPublisher interface {
	PublishJob(ctx context.Context, job enums.JobType, id uuid.UUID) error
}

// PublishJob publishes a job envelope to the jobs topic and waits for the
// server acknowledgement.
func (c *Client) PublishJob(ctx context.Context, job enums.JobType, id uuid.UUID) error {
	msg := JobMessage{Job: job, ID: id}
	if err := msg.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding job message: %w", err)
	}

	publisher := c.JobsPublisher()
	if publisher == nil {
		return fmt.Errorf("jobs topic not configured")
	}

	result := publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"job": string(job)},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing %s job: %w", job, err)
	}
	return nil
}
