package ledger

import "errors"

// Sentinel errors surfaced by ledger operations. Business-rule failures
// (ErrAccountNotFound, ErrInsufficientFunds, ErrDestinationNotFound) come
// back together with the failed transaction that records them; validation
// errors come back alone because nothing was recorded.
var (
	ErrInvalidAmount            = errors.New("amount must be greater than zero")
	ErrAccountNotFound          = errors.New("account not found")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrDestinationNotFound      = errors.New("destination account not found")
	ErrAccountSuspect           = errors.New("account is suspect, writes refused")
	ErrLedgerInvariantViolation = errors.New("ledger invariant violation")
	ErrStatusFinal              = errors.New("transaction status already final")
	ErrTransactionNotFound      = errors.New("transaction not found")
)
