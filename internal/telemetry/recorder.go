package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/mokanichokani/ledger-service/internal/events"
	"github.com/mokanichokani/ledger-service/internal/ledger"
	"github.com/mokanichokani/ledger-service/internal/logger"
)

// Dedupe namespaces for the processed-event index.
const (
	nsSettled   = "settled"
	nsViolation = "violation"
)

// ViewStore persists the recorder's derived state between deliveries.
type ViewStore interface {
	GetActivity(ctx context.Context, accountNumber string) (*AccountActivity, bool)
	SaveActivity(ctx context.Context, activity *AccountActivity)
	IsEventProcessed(ctx context.Context, namespace, eventID string) bool
	MarkEventProcessed(ctx context.Context, namespace, eventID string)
}

// RecorderMetrics receives the measurements the recorder derives from the
// event stream.
type RecorderMetrics interface {
	ObserveSettlement(opType, status string, amount float64)
	IncInvariantViolation()
	SetSuspectAccounts(n int)
}

// Recorder consumes the ledger event stream and turns it into telemetry:
// settlement metrics, the suspect-accounts gauge and per-account activity
// views. It runs on the read side only. Nothing here feeds back into the
// books, so falling behind or losing Redis degrades visibility, not money.
type Recorder struct {
	views   ViewStore
	metrics RecorderMetrics
	log     *logger.Logger

	mu      sync.Mutex
	suspect map[string]bool
}

func NewRecorder(views ViewStore, metrics RecorderMetrics, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Recorder{
		views:   views,
		metrics: metrics,
		log:     log,
		suspect: make(map[string]bool),
	}
}

// HandleEvent processes one delivery from the stream. Duplicate deliveries
// of settlement and violation events are detected via the processed-event
// index and skipped; quarantine clears are naturally idempotent. Returning
// an error leaves the message unacknowledged for redelivery.
func (r *Recorder) HandleEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.TransactionSettled:
		return r.handleSettled(ctx, event)
	case events.InvariantViolated:
		return r.handleViolation(ctx, event)
	case events.QuarantineCleared:
		return r.handleCleared(ctx, event)
	default:
		return nil
	}
}

func (r *Recorder) handleSettled(ctx context.Context, event events.Event) error {
	var data events.TransactionSettledEvent
	if err := events.DecodeData(event, &data); err != nil {
		return err
	}
	if r.views.IsEventProcessed(ctx, nsSettled, data.TransactionID) {
		r.log.Debug("duplicate settlement delivery skipped", "transactionId", data.TransactionID)
		return nil
	}

	r.metrics.ObserveSettlement(data.Type, data.Status, data.Amount.InexactFloat64())
	r.updateActivity(ctx, data.AccountNumber, data)
	if data.DestinationAccountNumber != "" && data.DestinationAccountNumber != data.AccountNumber {
		r.updateActivity(ctx, data.DestinationAccountNumber, data)
	}

	r.views.MarkEventProcessed(ctx, nsSettled, data.TransactionID)
	return nil
}

func (r *Recorder) handleViolation(ctx context.Context, event events.Event) error {
	var data events.InvariantViolatedEvent
	if err := events.DecodeData(event, &data); err != nil {
		return err
	}
	if r.views.IsEventProcessed(ctx, nsViolation, data.TransactionID) {
		return nil
	}

	r.metrics.IncInvariantViolation()
	r.mu.Lock()
	for _, accountNumber := range data.AccountNumbers {
		r.suspect[accountNumber] = true
	}
	n := len(r.suspect)
	r.mu.Unlock()
	r.metrics.SetSuspectAccounts(n)
	r.log.Error("invariant violation recorded",
		"transactionId", data.TransactionID, "accountNumbers", data.AccountNumbers)

	r.views.MarkEventProcessed(ctx, nsViolation, data.TransactionID)
	return nil
}

func (r *Recorder) handleCleared(ctx context.Context, event events.Event) error {
	var data events.QuarantineClearedEvent
	if err := events.DecodeData(event, &data); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.suspect, data.AccountNumber)
	n := len(r.suspect)
	r.mu.Unlock()
	r.metrics.SetSuspectAccounts(n)
	r.log.Info("quarantine clear recorded", "accountNumber", data.AccountNumber)
	return nil
}

// updateActivity folds one settlement into an account's activity view.
func (r *Recorder) updateActivity(ctx context.Context, accountNumber string, data events.TransactionSettledEvent) {
	activity, ok := r.views.GetActivity(ctx, accountNumber)
	if !ok {
		activity = &AccountActivity{AccountNumber: accountNumber}
	}
	activity.TransactionCount++
	switch data.Status {
	case ledger.StatusCompleted:
		activity.CompletedCount++
	case ledger.StatusFailed:
		activity.FailedCount++
	}
	activity.LastTransactionID = data.TransactionID
	activity.LastType = data.Type
	activity.LastStatus = data.Status
	activity.LastAmount = data.Amount
	activity.UpdatedAt = time.Now().UTC()
	r.views.SaveActivity(ctx, activity)
}
