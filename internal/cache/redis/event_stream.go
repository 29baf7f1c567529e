package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// streamMaxLen is the approximate maximum stream length, enforced via
// XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// EventStream implements domain.EventStream on Redis Streams. The risk
// pipeline appends rejection and state-change events here for external
// consumers.
type EventStream struct {
	rdb *redis.Client
}

// NewEventStream creates an EventStream backed by the given Client.
func NewEventStream(c *Client) *EventStream {
	return &EventStream{rdb: c.Underlying()}
}

// Append adds a payload to the stream with automatic approximate trimming.
func (es *EventStream) Append(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := es.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventStream = (*EventStream)(nil)
