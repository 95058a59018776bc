package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen bounds stream growth with an approximate XADD MAXLEN trim.
// The streams feed derived telemetry views, never the books, so shedding
// the oldest entries is acceptable.
const streamMaxLen = 1 << 16

// Publisher appends ledger events to Redis streams. Each entry carries a
// single "event" field holding the JSON envelope, so consumers decode one
// shape regardless of event type.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish wraps data in an envelope stamped with the event type and the
// current UTC time, then appends it to stream.
func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	envelope, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"event": envelope},
	}).Err()
	if err != nil {
		return fmt.Errorf("append %s event to %s: %w", eventType, stream, err)
	}
	return nil
}
