package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/mokanichokani/ledger-service/internal/utils"
)

// TransactionLog is the append-only record of every transaction attempt,
// including the ones that failed. The engine is its only writer.
type TransactionLog struct {
	mu      sync.RWMutex
	entries []Transaction
	index   map[string]int
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{index: make(map[string]int)}
}

// Append stores tx with a generated ID, pending status and the current
// timestamp and returns the stored record.
func (l *TransactionLog) Append(tx Transaction) Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx.ID = utils.GenerateID("tan")
	tx.Status = StatusPending
	tx.FailureReason = ""
	tx.CreatedAt = time.Now().UTC()
	l.index[tx.ID] = len(l.entries)
	l.entries = append(l.entries, tx)
	return tx
}

// SetStatus moves a pending transaction to a terminal status. Terminal
// records are immutable; a second transition attempt returns ErrStatusFinal
// and marks a defect in the caller, not a recoverable condition.
func (l *TransactionLog) SetStatus(id, status, reason string) (Transaction, error) {
	if status != StatusCompleted && status != StatusFailed {
		return Transaction{}, fmt.Errorf("invalid terminal status %q", status)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if l.entries[i].Status != StatusPending {
		return l.entries[i], ErrStatusFinal
	}
	l.entries[i].Status = status
	l.entries[i].FailureReason = reason
	return l.entries[i], nil
}

// List returns every transaction in insertion order.
func (l *TransactionLog) List() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

// ListByAccount returns, in insertion order, the transactions in which the
// account appears as source or as transfer destination.
func (l *TransactionLog) ListByAccount(accountNumber string) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Transaction{}
	for _, tx := range l.entries {
		if tx.AccountNumber == accountNumber || tx.DestinationAccountNumber == accountNumber {
			out = append(out, tx)
		}
	}
	return out
}

// Get returns the transaction with the given ID.
func (l *TransactionLog) Get(id string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return l.entries[i], nil
}

// Len reports the number of recorded transactions.
func (l *TransactionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
