package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mokanichokani/ledger-service/internal/logger"
)

// AccountStore is the balance state the engine settles against.
type AccountStore interface {
	Lookup(accountNumber string) (Account, error)
	AdjustBalance(accountNumber string, delta decimal.Decimal) (decimal.Decimal, error)
	List() []Account
}

// EventSink receives one event per state transition: terminal transactions,
// invariant violations and quarantine lifts. Implementations must not block:
// the engine calls the sink while holding account locks.
type EventSink interface {
	TransactionSettled(tx Transaction)
	InvariantViolated(tx Transaction, accountNumbers []string)
	QuarantineCleared(accountNumber string)
}

type noopSink struct{}

func (noopSink) TransactionSettled(Transaction)          {}
func (noopSink) InvariantViolated(Transaction, []string) {}
func (noopSink) QuarantineCleared(string)                {}

// Engine orchestrates deposits, withdrawals and transfers. Every operation
// follows the same protocol: record the intent, validate, mutate balances,
// finalize the transaction. Per-account locks serialize operations touching
// the same account so the sufficiency check cannot be invalidated between
// validation and mutation; operations on disjoint accounts run in parallel.
type Engine struct {
	store AccountStore
	txlog *TransactionLog
	sink  EventSink
	log   *logger.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	suspect map[string]bool
}

// NewEngine wires the engine to its store and transaction log. A nil sink
// or logger is replaced with a no-op.
func NewEngine(store AccountStore, txlog *TransactionLog, sink EventSink, log *logger.Logger) *Engine {
	if sink == nil {
		sink = noopSink{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		store:   store,
		txlog:   txlog,
		sink:    sink,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
		suspect: make(map[string]bool),
	}
}

// Deposit credits amount to the account. The pending record is written
// before the balance is touched so that attempts against unknown accounts
// still land on the audit trail.
func (e *Engine) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (Transaction, decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return Transaction{}, decimal.Zero, ErrInvalidAmount
	}
	unlock := e.lockAccounts(accountNumber)
	defer unlock()
	if err := e.refuseSuspect(accountNumber); err != nil {
		return Transaction{}, decimal.Zero, err
	}

	tx := e.txlog.Append(NewTransaction(TypeDeposit, accountNumber, "", amount))
	balance, err := e.store.AdjustBalance(accountNumber, amount)
	if err != nil {
		failed, ferr := e.finalize(tx.ID, StatusFailed, ReasonAccountNotFound, accountNumber)
		if ferr != nil {
			return failed, decimal.Zero, ferr
		}
		return failed, decimal.Zero, ErrAccountNotFound
	}
	completed, ferr := e.finalize(tx.ID, StatusCompleted, "", accountNumber)
	if ferr != nil {
		return completed, decimal.Zero, ferr
	}
	return completed, balance, nil
}

// Withdraw debits amount from the account. Sufficiency is checked under the
// account lock before any mutation, so this path never needs a rollback. An
// insufficient or unknown account still produces a failed record: the audit
// trail keeps every rejected attempt.
func (e *Engine) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (Transaction, decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return Transaction{}, decimal.Zero, ErrInvalidAmount
	}
	unlock := e.lockAccounts(accountNumber)
	defer unlock()
	if err := e.refuseSuspect(accountNumber); err != nil {
		return Transaction{}, decimal.Zero, err
	}

	account, err := e.store.Lookup(accountNumber)
	if err != nil || account.Balance.LessThan(amount) {
		failed, ferr := e.recordRejected(TypeWithdrawal, accountNumber, "", amount, ReasonInsufficientFunds)
		if ferr != nil {
			return failed, decimal.Zero, ferr
		}
		return failed, decimal.Zero, ErrInsufficientFunds
	}

	tx := e.txlog.Append(NewTransaction(TypeWithdrawal, accountNumber, "", amount))
	balance, err := e.store.AdjustBalance(accountNumber, amount.Neg())
	if err != nil {
		// Accounts are never deleted, so a miss after the sufficiency check
		// means the store no longer matches the engine's view of it.
		failed, ferr := e.finalize(tx.ID, StatusFailed, ReasonAccountNotFound, accountNumber)
		if ferr != nil {
			return failed, decimal.Zero, ferr
		}
		return failed, decimal.Zero, ErrAccountNotFound
	}
	completed, ferr := e.finalize(tx.ID, StatusCompleted, "", accountNumber)
	if ferr != nil {
		return completed, decimal.Zero, ferr
	}
	return completed, balance, nil
}

// Transfer moves amount from source to destination. Both account locks are
// held for the whole validate-mutate-finalize sequence, so the books cannot
// change between the sufficiency check and the debit. If the credit still
// fails after a successful debit, the source is re-credited before the
// transaction is failed; a re-credit that cannot be applied quarantines both
// accounts, because at that point money has left the books.
func (e *Engine) Transfer(ctx context.Context, source, destination string, amount decimal.Decimal) (Transaction, error) {
	if amount.Sign() <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	unlock := e.lockAccounts(source, destination)
	defer unlock()
	if err := e.refuseSuspect(source, destination); err != nil {
		return Transaction{}, err
	}

	sourceAccount, err := e.store.Lookup(source)
	if err != nil || sourceAccount.Balance.LessThan(amount) {
		failed, ferr := e.recordRejected(TypeTransfer, source, destination, amount, ReasonInsufficientFunds)
		if ferr != nil {
			return failed, ferr
		}
		return failed, ErrInsufficientFunds
	}
	if _, err := e.store.Lookup(destination); err != nil {
		failed, ferr := e.recordRejected(TypeTransfer, source, destination, amount, ReasonDestinationNotFound)
		if ferr != nil {
			return failed, ferr
		}
		return failed, ErrDestinationNotFound
	}

	tx := e.txlog.Append(NewTransaction(TypeTransfer, source, destination, amount))
	if _, err := e.store.AdjustBalance(source, amount.Neg()); err != nil {
		failed, ferr := e.finalize(tx.ID, StatusFailed, ReasonAccountNotFound, source, destination)
		if ferr != nil {
			return failed, ferr
		}
		return failed, ErrAccountNotFound
	}
	if _, err := e.store.AdjustBalance(destination, amount); err != nil {
		if _, rerr := e.store.AdjustBalance(source, amount); rerr != nil {
			failed, serr := e.txlog.SetStatus(tx.ID, StatusFailed, ReasonInvariantViolation)
			if serr == nil {
				e.sink.TransactionSettled(failed)
			}
			e.quarantine(failed, []string{source, destination}, "re-credit source after failed transfer credit", rerr)
			return failed, ErrLedgerInvariantViolation
		}
		failed, ferr := e.finalize(tx.ID, StatusFailed, ReasonDestinationNotFound, source, destination)
		if ferr != nil {
			return failed, ferr
		}
		return failed, ErrDestinationNotFound
	}
	completed, ferr := e.finalize(tx.ID, StatusCompleted, "", source, destination)
	if ferr != nil {
		return completed, ferr
	}
	return completed, nil
}

// ClearSuspect lifts the write quarantine from an account after external
// remediation.
func (e *Engine) ClearSuspect(accountNumber string) {
	e.mu.Lock()
	cleared := e.suspect[accountNumber]
	delete(e.suspect, accountNumber)
	e.mu.Unlock()
	if !cleared {
		return
	}
	e.log.Warn("suspect quarantine cleared", "accountNumber", accountNumber)
	e.sink.QuarantineCleared(accountNumber)
}

// SuspectAccounts lists the accounts currently refusing writes, sorted.
func (e *Engine) SuspectAccounts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.suspect))
	for accountNumber := range e.suspect {
		out = append(out, accountNumber)
	}
	sort.Strings(out)
	return out
}

// recordRejected writes an already-decided failure to the log, so rejected
// attempts are auditable even though no balance changed.
func (e *Engine) recordRejected(txType, accountNumber, destination string, amount decimal.Decimal, reason string) (Transaction, error) {
	tx := e.txlog.Append(NewTransaction(txType, accountNumber, destination, amount))
	touched := []string{accountNumber}
	if destination != "" {
		touched = append(touched, destination)
	}
	return e.finalize(tx.ID, StatusFailed, reason, touched...)
}

// finalize moves tx to a terminal status and emits the settlement event. A
// finalization the log refuses means the log and the engine have diverged;
// the touched accounts are quarantined and the caller gets the fatal error.
func (e *Engine) finalize(txID, status, reason string, accountNumbers ...string) (Transaction, error) {
	tx, err := e.txlog.SetStatus(txID, status, reason)
	if err != nil {
		e.quarantine(tx, accountNumbers, "finalize transaction "+txID, err)
		return tx, ErrLedgerInvariantViolation
	}
	e.sink.TransactionSettled(tx)
	return tx, nil
}

// quarantine marks the accounts suspect, logs at error severity and emits
// the invariant event. Reads stay available; writes are refused until
// ClearSuspect.
func (e *Engine) quarantine(tx Transaction, accountNumbers []string, op string, cause error) {
	e.markSuspect(accountNumbers...)
	e.log.Error("ledger invariant violation, accounts quarantined",
		"operation", op,
		"accounts", accountNumbers,
		"transactionId", tx.ID,
		"error", cause,
	)
	e.sink.InvariantViolated(tx, accountNumbers)
}

func (e *Engine) markSuspect(accountNumbers ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, accountNumber := range accountNumbers {
		e.suspect[accountNumber] = true
	}
}

func (e *Engine) refuseSuspect(accountNumbers ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, accountNumber := range accountNumbers {
		if e.suspect[accountNumber] {
			return ErrAccountSuspect
		}
	}
	return nil
}

// lockAccounts acquires the per-account locks for the given account numbers
// in lexicographic order and returns the unlock function. The fixed global
// order prevents deadlock between transfers running in opposite directions;
// deduplication keeps a self-transfer from self-deadlocking.
func (e *Engine) lockAccounts(accountNumbers ...string) func() {
	unique := make([]string, 0, len(accountNumbers))
	seen := make(map[string]bool, len(accountNumbers))
	for _, accountNumber := range accountNumbers {
		if !seen[accountNumber] {
			seen[accountNumber] = true
			unique = append(unique, accountNumber)
		}
	}
	sort.Strings(unique)

	locks := make([]*sync.Mutex, len(unique))
	for i, accountNumber := range unique {
		locks[i] = e.lockFor(accountNumber)
	}
	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (e *Engine) lockFor(accountNumber string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[accountNumber]
	if !ok {
		l = &sync.Mutex{}
		e.locks[accountNumber] = l
	}
	return l
}
