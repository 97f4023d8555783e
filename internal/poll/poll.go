// Package poll implements the readiness gate for provider-side media
// processing. Instagram media containers process asynchronously after
// creation; a container cannot be published until the provider reports it
// FINISHED. AwaitReady polls a set of container IDs until every one is
// ready, a container fails on the provider's side, or the attempt budget
// runs out.
package poll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the normalized processing state of one remote container.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// StatusFunc reports the current processing status of one container ID.
// Transport errors are retried on the next round; only StatusError is
// terminal for the whole poll.
type StatusFunc func(ctx context.Context, id string) (Status, error)

// Options controls the polling cadence. The interval is fixed between
// rounds; MaxAttempts bounds the total budget.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultOptions matches Instagram's documented processing latency:
// up to 5 minutes at a 5-second cadence.
var DefaultOptions = Options{
	Interval:    5 * time.Second,
	MaxAttempts: 60,
}

// RemoteError indicates the provider reported a terminal error status for
// a container. Polling stops immediately, even if other containers in the
// set are still pending.
type RemoteError struct {
	ID string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("container %s: processing failed on the provider's side", e.ID)
}

// TimeoutError indicates the attempt budget ran out with containers still
// pending.
type TimeoutError struct {
	Attempts int
	Pending  []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %d poll rounds, still pending: %s",
		e.Attempts, strings.Join(e.Pending, ", "))
}

// AwaitReady polls all container IDs until every one reports ready.
// Returns nil on success, *RemoteError the moment any container reports an
// error status, and *TimeoutError once MaxAttempts rounds have elapsed
// with containers still pending. An empty ID set is trivially ready.
func AwaitReady(ctx context.Context, ids []string, status StatusFunc, opts Options) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions.Interval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions.MaxAttempts
	}

	pending := append([]string(nil), ids...)

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		remaining := pending[:0]
		for _, id := range pending {
			st, err := status(ctx, id)
			if err != nil {
				// Transient transport error: keep the ID pending and retry.
				log.Warn().Err(err).Str("containerId", id).Msg("Status poll error, retrying")
				remaining = append(remaining, id)
				continue
			}
			switch st {
			case StatusReady:
			case StatusError:
				return &RemoteError{ID: id}
			default:
				remaining = append(remaining, id)
			}
		}
		pending = remaining

		if len(pending) == 0 {
			return nil
		}

		log.Debug().
			Int("attempt", attempt).
			Int("pending", len(pending)).
			Dur("nextPoll", opts.Interval).
			Msg("Containers still processing")

		if attempt == opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}

	return &TimeoutError{Attempts: opts.MaxAttempts, Pending: append([]string(nil), pending...)}
}
