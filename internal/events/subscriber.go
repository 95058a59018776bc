package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mokanichokani/ledger-service/internal/logger"
)

// Handler processes one decoded event. Returning an error leaves the entry
// unacknowledged so the consumer group redelivers it.
type Handler func(ctx context.Context, event Event) error

// Subscriber reads a stream through a consumer group and feeds each decoded
// event to a handler. Entries are acknowledged only after the handler
// succeeds, so a consumer that fails or crashes mid-batch sees them again.
type Subscriber struct {
	client *redis.Client
	log    *logger.Logger

	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	retryDelay    time.Duration
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	RetryDelay    time.Duration
}

func NewSubscriber(client *redis.Client, log *logger.Logger, config SubscriberConfig) *Subscriber {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration <= 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Subscriber{
		client:        client,
		log:           log,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		retryDelay:    config.RetryDelay,
	}
}

// Start creates the consumer group if it does not exist yet, then reads the
// stream until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}

	s.log.Info("stream consumer started",
		"stream", s.stream, "group", s.group, "consumer", s.consumer)

	for {
		err := s.drain(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			s.log.Info("stream consumer stopping", "stream", s.stream)
			return ctx.Err()
		}

		s.log.Warn("stream read failed, backing off",
			"stream", s.stream, "error", err)
		select {
		case <-ctx.Done():
			s.log.Info("stream consumer stopping", "stream", s.stream)
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", s.group, s.stream, err)
	}
	return nil
}

// drain reads one batch of new entries and works through them in order.
func (s *Subscriber) drain(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read group %s from %s: %w", s.group, s.stream, err)
	}

	for _, str := range streams {
		for _, msg := range str.Messages {
			event, err := decodeEntry(msg)
			if err != nil {
				// An undecodable entry can never succeed. ACK it away
				// rather than redeliver it forever.
				s.log.Warn("dropping undecodable stream entry", "id", msg.ID, "error", err)
				s.ack(ctx, msg.ID)
				continue
			}
			if err := s.handler(ctx, event); err != nil {
				// No ACK: the group keeps the entry pending for redelivery.
				s.log.Warn("event handler failed",
					"id", msg.ID, "type", event.Type, "error", err)
				continue
			}
			s.ack(ctx, msg.ID)
		}
	}
	return nil
}

func (s *Subscriber) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		s.log.Warn("ack failed", "id", id, "stream", s.stream, "error", err)
	}
}

func decodeEntry(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return Event{}, fmt.Errorf("entry %s carries no event field", msg.ID)
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal entry %s: %w", msg.ID, err)
	}
	return event, nil
}
