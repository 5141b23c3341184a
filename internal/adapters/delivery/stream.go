package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/okian/airrisk/internal/domain/model"
)

// DefaultStreamMaxLen caps the Redis stream length (approximate trimming).
const DefaultStreamMaxLen = 10_000

// streamAdder is the subset of the Redis client used by Stream.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Stream publishes alerts to a Redis stream with XADD. Each entry carries
// the alert id, type, severity, sensor id and the JSON payload.
type Stream struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewStream creates a stream publisher.
func NewStream(client streamAdder, stream string) *Stream {
	return &Stream{client: client, stream: stream, maxLen: DefaultStreamMaxLen}
}

// NewRedisStream connects to addr and returns a publisher with the client
// so the caller can close it.
func NewRedisStream(ctx context.Context, addr, stream string) (*Stream, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewStream(client, stream), client, nil
}

// Name implements Notifier.
func (s *Stream) Name() string { return ChannelRedis }

// Notify implements Notifier.
func (s *Stream) Notify(ctx context.Context, a model.AlertEvent) error {
	payload, err := json.Marshal(a.Payload())
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrNotDelivered, a.ID, err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":        a.ID,
			"type":      string(a.Type),
			"severity":  string(a.Severity),
			"sensor_id": a.SensorID,
			"data":      string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: xadd %s: %w", ErrNotDelivered, a.ID, err)
	}
	return nil
}
