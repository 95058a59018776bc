package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	TransactionSettled = "ledger.transaction.settled"
	InvariantViolated  = "ledger.invariant.violated"
	QuarantineCleared  = "ledger.quarantine.cleared"
)

// Stream names
const (
	LedgerEventsStream = "ledger.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// TransactionSettledEvent is emitted once per transaction reaching a
// terminal status, completed or failed alike.
type TransactionSettledEvent struct {
	TransactionID            string          `json:"transactionId"`
	Type                     string          `json:"type"`
	AccountNumber            string          `json:"accountNumber"`
	DestinationAccountNumber string          `json:"destinationAccountNumber,omitempty"`
	Amount                   decimal.Decimal `json:"amount"`
	Status                   string          `json:"status"`
	FailureReason            string          `json:"failureReason,omitempty"`
}

// InvariantViolatedEvent is emitted when a compensating action could not be
// applied and accounts were quarantined.
type InvariantViolatedEvent struct {
	TransactionID  string   `json:"transactionId"`
	AccountNumbers []string `json:"accountNumbers"`
}

// QuarantineClearedEvent is emitted when external remediation lifts the
// write quarantine from an account.
type QuarantineClearedEvent struct {
	AccountNumber string `json:"accountNumber"`
}

// DecodeData unmarshals an event's Data payload into v. Payloads arrive from
// the stream as generic JSON, so consumers round-trip them into their typed
// form.
func DecodeData(event Event, v any) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("re-marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s event data: %w", event.Type, err)
	}
	return nil
}
