package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// mirrorTTL bounds how long a run's live stream stays in Redis.
const mirrorTTL = 7 * 24 * time.Hour

// RedisRecorder mirrors the event stream into a Redis list so dashboards can
// tail a run while it executes. It is a best-effort sink; the file journal
// remains the source of truth.
type RedisRecorder struct {
	client  redis.UniversalClient
	key     string
	metaKey string
	timeout time.Duration
}

// NewRedisRecorder mirrors events for runID on client.
func NewRedisRecorder(client redis.UniversalClient, runID string) *RedisRecorder {
	return &RedisRecorder{
		client:  client,
		key:     "weaver:run:" + runID + ":events",
		metaKey: "weaver:run:" + runID + ":meta",
		timeout: 5 * time.Second,
	}
}

func (r *RedisRecorder) Record(ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, r.key, data)
	pipe.Expire(ctx, r.key, mirrorTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("events: redis mirror: %w", err)
	}
	return nil
}

// SetMeta stores run metadata (query, status, timestamps) alongside the
// stream.
func (r *RedisRecorder) SetMeta(ctx context.Context, fields map[string]string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.metaKey, fields)
	pipe.Expire(ctx, r.metaKey, mirrorTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("events: redis meta: %w", err)
	}
	return nil
}

// Events reads the mirrored stream back, in order.
func (r *RedisRecorder) Events(ctx context.Context) ([]RunEvent, error) {
	lines, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("events: redis read: %w", err)
	}
	out := make([]RunEvent, 0, len(lines))
	for _, line := range lines {
		var ev RunEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("events: malformed mirror entry: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *RedisRecorder) Close() error { return nil }
