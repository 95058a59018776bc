package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypeTransfer   = "transfer"
)

// Transaction statuses. A transaction is created pending and moves exactly
// once to completed or failed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Failure reasons recorded on failed transactions.
const (
	ReasonAccountNotFound     = "account not found"
	ReasonInsufficientFunds   = "insufficient funds"
	ReasonDestinationNotFound = "destination account not found"
	ReasonInvariantViolation  = "ledger invariant violation"
)

type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	SortCode      string          `json:"sortCode"`
	Name          string          `json:"name"`
	Contact       string          `json:"contact"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

type Transaction struct {
	ID                       string          `json:"id"`
	Type                     string          `json:"type"`
	AccountNumber            string          `json:"accountNumber"`
	DestinationAccountNumber string          `json:"destinationAccountNumber,omitempty"`
	Amount                   decimal.Decimal `json:"amount"`
	Status                   string          `json:"status"`
	FailureReason            string          `json:"failureReason,omitempty"`
	CreatedAt                time.Time       `json:"createdTimestamp"`
}

// NewTransaction builds the intent record for one ledger operation. Identity,
// status and timestamp are assigned by the transaction log on append.
func NewTransaction(txType, accountNumber, destinationAccountNumber string, amount decimal.Decimal) Transaction {
	return Transaction{
		Type:                     txType,
		AccountNumber:            accountNumber,
		DestinationAccountNumber: destinationAccountNumber,
		Amount:                   amount,
		Status:                   StatusPending,
	}
}
