package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestEngine(balances map[string]int64) (*Engine, *Store, *TransactionLog) {
	store := seedStore(balances)
	txlog := NewTransactionLog()
	return NewEngine(store, txlog, nil, nil), store, txlog
}

func totalBalance(store AccountStore) decimal.Decimal {
	total := decimal.Zero
	for _, account := range store.List() {
		total = total.Add(account.Balance)
	}
	return total
}

func balanceOf(t *testing.T, store AccountStore, accountNumber string) decimal.Decimal {
	t.Helper()
	account, err := store.Lookup(accountNumber)
	if err != nil {
		t.Fatalf("Lookup(%s) returned error: %v", accountNumber, err)
	}
	return account.Balance
}

// captureSink records every event the engine hands to it.
type captureSink struct {
	mu       sync.Mutex
	settled  []Transaction
	violated [][]string
	cleared  []string
}

func (s *captureSink) TransactionSettled(tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = append(s.settled, tx)
}

func (s *captureSink) InvariantViolated(_ Transaction, accountNumbers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violated = append(s.violated, accountNumbers)
}

func (s *captureSink) QuarantineCleared(accountNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, accountNumber)
}

func TestDepositCompleted(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{"01000001": 5000})

	tx, balance, err := engine.Deposit(context.Background(), "01000001", decimal.NewFromInt(250))
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if tx.Status != StatusCompleted || tx.Type != TypeDeposit {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if !balance.Equal(decimal.NewFromInt(5250)) {
		t.Errorf("returned balance = %s, want 5250", balance)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(5250)) {
		t.Errorf("stored balance = %s, want 5250", got)
	}
	if txlog.Len() != 1 {
		t.Errorf("log has %d entries, want 1", txlog.Len())
	}
}

func TestDepositAccountNotFound(t *testing.T) {
	engine, _, txlog := newTestEngine(map[string]int64{"01000001": 5000})

	tx, _, err := engine.Deposit(context.Background(), "09999999", decimal.NewFromInt(250))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("Deposit(unknown) error = %v, want ErrAccountNotFound", err)
	}
	if tx.Status != StatusFailed || tx.FailureReason != ReasonAccountNotFound {
		t.Errorf("unexpected failed transaction: %+v", tx)
	}
	if txlog.Len() != 1 {
		t.Errorf("failed attempt not recorded, log has %d entries", txlog.Len())
	}
}

func TestWithdrawCompleted(t *testing.T) {
	engine, store, _ := newTestEngine(map[string]int64{"01000001": 5000})

	tx, balance, err := engine.Withdraw(context.Background(), "01000001", decimal.NewFromInt(1200))
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if tx.Status != StatusCompleted || tx.Type != TypeWithdrawal {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if !balance.Equal(decimal.NewFromInt(3800)) {
		t.Errorf("returned balance = %s, want 3800", balance)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(3800)) {
		t.Errorf("stored balance = %s, want 3800", got)
	}
}

func TestWithdrawExactBalance(t *testing.T) {
	engine, store, _ := newTestEngine(map[string]int64{"01000001": 100})

	_, balance, err := engine.Withdraw(context.Background(), "01000001", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("returned balance = %s, want 0", balance)
	}
	if got := balanceOf(t, store, "01000001"); got.Sign() < 0 {
		t.Errorf("balance went negative: %s", got)
	}
}

// Account A holds 100; withdrawing 500 must fail with "insufficient funds",
// leave the balance untouched and still land on the audit trail.
func TestWithdrawInsufficientFunds(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{"01000001": 100})

	tx, _, err := engine.Withdraw(context.Background(), "01000001", decimal.NewFromInt(500))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Withdraw error = %v, want ErrInsufficientFunds", err)
	}
	if tx.Status != StatusFailed || tx.FailureReason != ReasonInsufficientFunds {
		t.Errorf("unexpected failed transaction: %+v", tx)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance changed on failed withdrawal: %s", got)
	}
	entries := txlog.List()
	if len(entries) != 1 || entries[0].Type != TypeWithdrawal || entries[0].Status != StatusFailed {
		t.Errorf("expected exactly one failed withdrawal record, got %+v", entries)
	}
}

// A withdrawal against an unknown account fails the same sufficiency check
// and is recorded with the same reason.
func TestWithdrawUnknownAccount(t *testing.T) {
	engine, _, txlog := newTestEngine(map[string]int64{"01000001": 100})

	tx, _, err := engine.Withdraw(context.Background(), "09999999", decimal.NewFromInt(10))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Withdraw(unknown) error = %v, want ErrInsufficientFunds", err)
	}
	if tx.FailureReason != ReasonInsufficientFunds {
		t.Errorf("failure reason = %q, want %q", tx.FailureReason, ReasonInsufficientFunds)
	}
	if txlog.Len() != 1 {
		t.Errorf("failed attempt not recorded, log has %d entries", txlog.Len())
	}
}

// Accounts A=5000 and B=7500; transfer of 750 settles at A=4250, B=8250 with
// one completed transfer on the log and the total book unchanged.
func TestTransferCompleted(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{
		"01000001": 5000,
		"01000002": 7500,
	})
	before := totalBalance(store)

	tx, err := engine.Transfer(context.Background(), "01000001", "01000002", decimal.NewFromInt(750))
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if tx.Status != StatusCompleted || tx.Type != TypeTransfer {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(4250)) {
		t.Errorf("source balance = %s, want 4250", got)
	}
	if got := balanceOf(t, store, "01000002"); !got.Equal(decimal.NewFromInt(8250)) {
		t.Errorf("destination balance = %s, want 8250", got)
	}
	if !totalBalance(store).Equal(before) {
		t.Errorf("transfer changed the total book: %s -> %s", before, totalBalance(store))
	}
	if txlog.Len() != 1 {
		t.Errorf("log has %d entries, want 1", txlog.Len())
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{
		"01000001": 100,
		"01000002": 7500,
	})

	tx, err := engine.Transfer(context.Background(), "01000001", "01000002", decimal.NewFromInt(750))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Transfer error = %v, want ErrInsufficientFunds", err)
	}
	if tx.Status != StatusFailed || tx.FailureReason != ReasonInsufficientFunds {
		t.Errorf("unexpected failed transaction: %+v", tx)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("source balance changed on failed transfer: %s", got)
	}
	if txlog.Len() != 1 {
		t.Errorf("log has %d entries, want 1", txlog.Len())
	}
}

// Transfer to a nonexistent destination fails with "destination account not
// found", leaves the source untouched and records one failed transfer.
func TestTransferDestinationNotFound(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{"01000001": 5000})

	tx, err := engine.Transfer(context.Background(), "01000001", "09999999", decimal.NewFromInt(100))
	if !errors.Is(err, ErrDestinationNotFound) {
		t.Fatalf("Transfer error = %v, want ErrDestinationNotFound", err)
	}
	if tx.Status != StatusFailed || tx.FailureReason != ReasonDestinationNotFound {
		t.Errorf("unexpected failed transaction: %+v", tx)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("source balance changed: %s", got)
	}
	entries := txlog.List()
	if len(entries) != 1 || entries[0].Status != StatusFailed {
		t.Errorf("expected one failed transfer record, got %+v", entries)
	}
}

func TestTransferToSelf(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{"01000001": 500})

	tx, err := engine.Transfer(context.Background(), "01000001", "01000001", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("self transfer returned error: %v", err)
	}
	if tx.Status != StatusCompleted {
		t.Errorf("self transfer status = %q, want completed", tx.Status)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("self transfer changed the balance: %s", got)
	}
	if txlog.Len() != 1 {
		t.Errorf("log has %d entries, want 1", txlog.Len())
	}
}

// Non-positive amounts are rejected before any state is touched: no record,
// no balance change, for every operation.
func TestNonPositiveAmountsRejected(t *testing.T) {
	amounts := []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(-10),
		decimal.RequireFromString("-0.01"),
	}

	for _, amount := range amounts {
		engine, store, txlog := newTestEngine(map[string]int64{
			"01000001": 5000,
			"01000002": 7500,
		})
		before := totalBalance(store)

		if _, _, err := engine.Deposit(context.Background(), "01000001", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Deposit(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
		if _, _, err := engine.Withdraw(context.Background(), "01000001", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Withdraw(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := engine.Transfer(context.Background(), "01000001", "01000002", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Transfer(%s) error = %v, want ErrInvalidAmount", amount, err)
		}

		if txlog.Len() != 0 {
			t.Errorf("amount %s created %d records, want 0", amount, txlog.Len())
		}
		if !totalBalance(store).Equal(before) {
			t.Errorf("amount %s changed balances", amount)
		}
	}
}

// Every positive-amount call lands exactly one record on the log and that
// record always reaches a terminal status.
func TestAuditCompleteness(t *testing.T) {
	engine, _, txlog := newTestEngine(map[string]int64{
		"01000001": 5000,
		"01000002": 7500,
	})
	ctx := context.Background()

	calls := 0
	engine.Deposit(ctx, "01000001", decimal.NewFromInt(10))
	calls++
	engine.Deposit(ctx, "09999999", decimal.NewFromInt(10))
	calls++
	engine.Withdraw(ctx, "01000001", decimal.NewFromInt(20))
	calls++
	engine.Withdraw(ctx, "01000002", decimal.NewFromInt(999999))
	calls++
	engine.Transfer(ctx, "01000001", "01000002", decimal.NewFromInt(30))
	calls++
	engine.Transfer(ctx, "01000001", "09999999", decimal.NewFromInt(30))
	calls++
	engine.Transfer(ctx, "01000002", "01000001", decimal.NewFromInt(999999))
	calls++

	entries := txlog.List()
	if len(entries) != calls {
		t.Fatalf("log has %d entries, want %d", len(entries), calls)
	}
	for _, tx := range entries {
		if tx.Status != StatusCompleted && tx.Status != StatusFailed {
			t.Errorf("transaction %s left in status %q", tx.ID, tx.Status)
		}
	}
}

// Opposite-direction transfer storms must neither deadlock nor create or
// destroy money.
func TestConcurrentTransfersConserveTotal(t *testing.T) {
	engine, store, txlog := newTestEngine(map[string]int64{
		"01000001": 1000,
		"01000002": 1000,
	})
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := engine.Transfer(ctx, "01000001", "01000002", decimal.NewFromInt(1)); err != nil {
				t.Errorf("transfer A->B: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := engine.Transfer(ctx, "01000002", "01000001", decimal.NewFromInt(1)); err != nil {
				t.Errorf("transfer B->A: %v", err)
			}
		}()
	}
	wg.Wait()

	if total := totalBalance(store); !total.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("total book = %s, want 2000", total)
	}
	for _, account := range store.List() {
		if account.Balance.Sign() < 0 {
			t.Fatalf("account %s went negative: %s", account.AccountNumber, account.Balance)
		}
	}
	if txlog.Len() != 2*n {
		t.Errorf("log has %d entries, want %d", txlog.Len(), 2*n)
	}
}

func TestConcurrentDepositsAccumulate(t *testing.T) {
	engine, store, _ := newTestEngine(map[string]int64{"01000001": 0})
	ctx := context.Background()

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := engine.Deposit(ctx, "01000001", decimal.NewFromInt(1)); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(workers)) {
		t.Errorf("balance = %s, want %d", got, workers)
	}
}

// Concurrent withdrawals against a small balance: the sufficiency check is
// serialized per account, so exactly balance/amount of them may succeed and
// the balance never goes negative.
func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	engine, store, _ := newTestEngine(map[string]int64{"01000001": 100})
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var succeeded sync.Map
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			if _, _, err := engine.Withdraw(ctx, "01000001", decimal.NewFromInt(10)); err == nil {
				succeeded.Store(i, true)
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("withdraw: %v", err)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	succeeded.Range(func(_, _ any) bool { count++; return true })
	if count != 10 {
		t.Errorf("%d withdrawals succeeded, want 10", count)
	}
	if got := balanceOf(t, store, "01000001"); !got.IsZero() {
		t.Errorf("balance = %s, want 0", got)
	}
}

func TestEngineEmitsSettlementEvents(t *testing.T) {
	store := seedStore(map[string]int64{"01000001": 100})
	txlog := NewTransactionLog()
	sink := &captureSink{}
	engine := NewEngine(store, txlog, sink, nil)
	ctx := context.Background()

	engine.Deposit(ctx, "01000001", decimal.NewFromInt(50))
	engine.Withdraw(ctx, "01000001", decimal.NewFromInt(500))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.settled) != 2 {
		t.Fatalf("sink saw %d settlements, want 2", len(sink.settled))
	}
	if sink.settled[0].Status != StatusCompleted || sink.settled[1].Status != StatusFailed {
		t.Errorf("unexpected settlement sequence: %+v", sink.settled)
	}
	if len(sink.violated) != 0 {
		t.Errorf("sink saw %d violations, want 0", len(sink.violated))
	}
}

// faultStore injects AdjustBalance failures for chosen accounts so the
// compensation paths can be exercised; the fixed lock order makes them
// unreachable otherwise.
type faultStore struct {
	*Store
	failCredit map[string]bool
}

func (f *faultStore) AdjustBalance(accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.Sign() > 0 && f.failCredit[accountNumber] {
		return decimal.Zero, ErrAccountNotFound
	}
	return f.Store.AdjustBalance(accountNumber, delta)
}

// A credit that fails after the debit applied must re-credit the source: the
// transaction fails but no money leaves the books.
func TestTransferCompensatesFailedCredit(t *testing.T) {
	store := seedStore(map[string]int64{
		"01000001": 1000,
		"01000002": 1000,
	})
	faulty := &faultStore{Store: store, failCredit: map[string]bool{"01000002": true}}
	txlog := NewTransactionLog()
	engine := NewEngine(faulty, txlog, nil, nil)

	tx, err := engine.Transfer(context.Background(), "01000001", "01000002", decimal.NewFromInt(100))
	if !errors.Is(err, ErrDestinationNotFound) {
		t.Fatalf("Transfer error = %v, want ErrDestinationNotFound", err)
	}
	if tx.Status != StatusFailed {
		t.Errorf("transaction status = %q, want failed", tx.Status)
	}
	if got := balanceOf(t, store, "01000001"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("source not re-credited: %s", got)
	}
	if total := totalBalance(store); !total.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("total book = %s, want 2000", total)
	}
	if suspects := engine.SuspectAccounts(); len(suspects) != 0 {
		t.Errorf("compensated failure quarantined accounts: %v", suspects)
	}
}

// When even the re-credit fails, the engine must quarantine both accounts:
// reads stay available, writes are refused until ClearSuspect.
func TestTransferQuarantinesWhenCompensationFails(t *testing.T) {
	store := seedStore(map[string]int64{
		"01000001": 1000,
		"01000002": 1000,
	})
	faulty := &faultStore{Store: store, failCredit: map[string]bool{
		"01000001": true,
		"01000002": true,
	}}
	txlog := NewTransactionLog()
	sink := &captureSink{}
	engine := NewEngine(faulty, txlog, sink, nil)
	ctx := context.Background()

	tx, err := engine.Transfer(ctx, "01000001", "01000002", decimal.NewFromInt(100))
	if !errors.Is(err, ErrLedgerInvariantViolation) {
		t.Fatalf("Transfer error = %v, want ErrLedgerInvariantViolation", err)
	}
	if tx.Status != StatusFailed || tx.FailureReason != ReasonInvariantViolation {
		t.Errorf("unexpected transaction: %+v", tx)
	}

	suspects := engine.SuspectAccounts()
	if len(suspects) != 2 {
		t.Fatalf("suspect accounts = %v, want both parties", suspects)
	}

	// Writes on quarantined accounts are refused without touching the log.
	before := txlog.Len()
	if _, _, err := engine.Deposit(ctx, "01000001", decimal.NewFromInt(1)); !errors.Is(err, ErrAccountSuspect) {
		t.Errorf("Deposit on suspect account error = %v, want ErrAccountSuspect", err)
	}
	if _, err := engine.Transfer(ctx, "01000002", "01000001", decimal.NewFromInt(1)); !errors.Is(err, ErrAccountSuspect) {
		t.Errorf("Transfer on suspect account error = %v, want ErrAccountSuspect", err)
	}
	if txlog.Len() != before {
		t.Errorf("refused writes still appended to the log")
	}

	// Reads stay available while quarantined.
	if _, err := store.Lookup("01000001"); err != nil {
		t.Errorf("read on suspect account failed: %v", err)
	}

	sink.mu.Lock()
	violations := len(sink.violated)
	sink.mu.Unlock()
	if violations != 1 {
		t.Errorf("sink saw %d violations, want 1", violations)
	}

	// External remediation repairs the store and lifts the quarantine.
	faulty.failCredit = map[string]bool{}
	engine.ClearSuspect("01000001")
	engine.ClearSuspect("01000002")
	engine.ClearSuspect("01000002") // second clear of the same account is silent
	if _, _, err := engine.Deposit(ctx, "01000001", decimal.NewFromInt(1)); err != nil {
		t.Errorf("Deposit after ClearSuspect returned error: %v", err)
	}

	sink.mu.Lock()
	cleared := len(sink.cleared)
	sink.mu.Unlock()
	if cleared != 2 {
		t.Errorf("sink saw %d quarantine clears, want 2", cleared)
	}
}
