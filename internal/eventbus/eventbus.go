// Package eventbus is a best-effort, non-authoritative pub/sub layer
// over Redis (SPEC_FULL §1): orcaopsd's job-completion hook publishes a
// job_events message each time a job reaches a terminal state when a
// Redis URL is configured, letting an out-of-process log-tailer subscribe instead of
// polling the filesystem. Redis is optional everywhere it's used —
// its absence degrades to filesystem-only polling, never a hard
// failure. Grounded on pkg/blackboard.Client's Publish-after-write
// idiom, stripped down to a single channel with no read-side API (the
// Job Manager already serves reads from memory/disk).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobEventsChannel = "orcaops:job_events"

// Bus wraps a Redis client for fire-and-forget event publication.
type Bus struct {
	rdb *redis.Client
}

// Connect parses redisURL and verifies connectivity with a short
// timeout. Callers should treat a non-nil error as "run without the
// bus", not as fatal.
func Connect(ctx context.Context, redisURL string) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis not accessible: %w", err)
	}

	return &Bus{rdb: rdb}, nil
}

// JobEvent is the payload published when a job reaches a terminal state.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	At         time.Time `json:"at"`
}

// PublishJobEvent publishes event to the job_events channel. Publish
// errors are logged by the caller, never fatal — this bus is an
// optimization, not a source of truth (§6: run.json is authoritative).
func (b *Bus) PublishJobEvent(ctx context.Context, event JobEvent) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	return b.rdb.Publish(ctx, jobEventsChannel, data).Err()
}

// Close releases the underlying Redis connection. Safe to call on a
// nil Bus.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	return b.rdb.Close()
}
