package events

import (
	"context"
	"time"

	"github.com/mokanichokani/ledger-service/internal/ledger"
	"github.com/mokanichokani/ledger-service/internal/logger"
)

// StreamPublisher is the transport the emitter drains onto.
type StreamPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// EmitterMetrics counts the emitter's accepted, dropped and failed events.
type EmitterMetrics interface {
	IncEventEmitted()
	IncEventDropped()
	IncEventPublishFailed()
}

type noopEmitterMetrics struct{}

func (noopEmitterMetrics) IncEventEmitted()       {}
func (noopEmitterMetrics) IncEventDropped()       {}
func (noopEmitterMetrics) IncEventPublishFailed() {}

type queuedEvent struct {
	eventType string
	data      any
}

// Emitter buffers domain events between the engine and the stream. The
// engine calls it while holding account locks, so enqueueing never blocks:
// when the buffer is full the event is counted as dropped and the ledger
// operation proceeds untouched. A background loop drains the buffer onto the
// publisher.
type Emitter struct {
	publisher StreamPublisher
	log       *logger.Logger
	metrics   EmitterMetrics

	stream         string
	publishTimeout time.Duration
	queue          chan queuedEvent
}

type EmitterConfig struct {
	Stream         string
	QueueSize      int
	PublishTimeout time.Duration
}

func NewEmitter(publisher StreamPublisher, log *logger.Logger, metrics EmitterMetrics, config EmitterConfig) *Emitter {
	if config.Stream == "" {
		config.Stream = LedgerEventsStream
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 3 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = noopEmitterMetrics{}
	}
	return &Emitter{
		publisher:      publisher,
		log:            log,
		metrics:        metrics,
		stream:         config.Stream,
		publishTimeout: config.PublishTimeout,
		queue:          make(chan queuedEvent, config.QueueSize),
	}
}

// TransactionSettled enqueues one event for a transaction that reached a
// terminal status, completed or failed alike.
func (e *Emitter) TransactionSettled(tx ledger.Transaction) {
	e.enqueue(TransactionSettled, TransactionSettledEvent{
		TransactionID:            tx.ID,
		Type:                     tx.Type,
		AccountNumber:            tx.AccountNumber,
		DestinationAccountNumber: tx.DestinationAccountNumber,
		Amount:                   tx.Amount,
		Status:                   tx.Status,
		FailureReason:            tx.FailureReason,
	})
}

// InvariantViolated enqueues the quarantine event raised when a compensating
// action could not be applied.
func (e *Emitter) InvariantViolated(tx ledger.Transaction, accountNumbers []string) {
	e.enqueue(InvariantViolated, InvariantViolatedEvent{
		TransactionID:  tx.ID,
		AccountNumbers: accountNumbers,
	})
}

// QuarantineCleared enqueues the event lifting an account's quarantine.
func (e *Emitter) QuarantineCleared(accountNumber string) {
	e.enqueue(QuarantineCleared, QuarantineClearedEvent{AccountNumber: accountNumber})
}

// Run drains the buffer until ctx is cancelled, then flushes whatever is
// still queued. Publish failures are logged and counted, never propagated:
// settlement already happened by the time an event exists.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.flush()
			return
		case ev := <-e.queue:
			e.publish(ev)
		}
	}
}

func (e *Emitter) enqueue(eventType string, data any) {
	select {
	case e.queue <- queuedEvent{eventType: eventType, data: data}:
		e.metrics.IncEventEmitted()
	default:
		e.metrics.IncEventDropped()
		e.log.Warn("event queue full, dropping event", "type", eventType)
	}
}

func (e *Emitter) publish(ev queuedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, e.stream, ev.eventType, ev.data); err != nil {
		e.metrics.IncEventPublishFailed()
		e.log.Warn("failed to publish event", "type", ev.eventType, "stream", e.stream, "error", err)
	}
}

func (e *Emitter) flush() {
	for {
		select {
		case ev := <-e.queue:
			e.publish(ev)
		default:
			return
		}
	}
}
