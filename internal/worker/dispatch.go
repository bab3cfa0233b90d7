package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Job types accepted on the worker subscription.
const (
	JobRegionalRefresh = "regional_refresh"
	JobHealthCheck     = "health_check"
)

var (
	ErrUnknownJobType = errors.New("unknown job type")
	ErrMalformedJob   = errors.New("malformed job message")
)

// Permanent reports whether redelivering the message could not help.
func Permanent(err error) bool {
	return errors.Is(err, ErrUnknownJobType) || errors.Is(err, ErrMalformedJob)
}

// JobMessage is the payload of a worker trigger message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs the job named by a message payload.
type Dispatcher struct {
	jobs   map[string]func(context.Context) error
	logger zerolog.Logger
}

func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{logger: logger}
	d.jobs = map[string]func(context.Context) error{
		JobRegionalRefresh: func(ctx context.Context) error {
			// A refresh that lost most regions is retried; a few misses are not.
			res := job.Run(ctx)
			if res.Failed > res.Successful {
				return fmt.Errorf("regional refresh failed for %d of %d regions", res.Failed, res.TotalTargets)
			}
			return nil
		},
		JobHealthCheck: func(ctx context.Context) error {
			if err := job.Check(ctx); err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			d.logger.Debug().Msg("health check passed")
			return nil
		},
	}
	return d
}

// Dispatch decodes data and runs the job it names.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}
	run, ok := d.jobs[msg.JobType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
	return run(ctx)
}
