package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Summary is the aggregate view of the transaction log. It is derived, not
// authoritative: recomputable at any time from the log contents.
type Summary struct {
	ActiveSessions  int             `json:"activeSessions"`
	TotalCount      int             `json:"totalCount"`
	CompletedCount  int             `json:"completedCount"`
	PendingCount    int             `json:"pendingCount"`
	FailedCount     int             `json:"failedCount"`
	DepositTotal    decimal.Decimal `json:"depositTotal"`
	WithdrawalTotal decimal.Decimal `json:"withdrawalTotal"`
	TransferTotal   decimal.Decimal `json:"transferTotal"`
}

// TypeBreakdown groups the transaction log by operation type, each group in
// log order.
type TypeBreakdown struct {
	Deposits    []Transaction `json:"deposits"`
	Withdrawals []Transaction `json:"withdrawals"`
	Transfers   []Transaction `json:"transfers"`
}

// Analytics derives summary statistics from the transaction log on demand
// and tracks active sessions for gauge reporting.
type Analytics struct {
	txlog *TransactionLog

	mu       sync.Mutex
	sessions map[string]bool
}

func NewAnalytics(txlog *TransactionLog) *Analytics {
	return &Analytics{txlog: txlog, sessions: make(map[string]bool)}
}

// Summary scans the transaction log. The per-type totals sum completed
// transactions only: failed and pending attempts count toward the status
// counters but never toward moved money.
func (a *Analytics) Summary() Summary {
	s := Summary{ActiveSessions: a.ActiveSessions()}
	for _, tx := range a.txlog.List() {
		s.TotalCount++
		switch tx.Status {
		case StatusCompleted:
			s.CompletedCount++
			switch tx.Type {
			case TypeDeposit:
				s.DepositTotal = s.DepositTotal.Add(tx.Amount)
			case TypeWithdrawal:
				s.WithdrawalTotal = s.WithdrawalTotal.Add(tx.Amount)
			case TypeTransfer:
				s.TransferTotal = s.TransferTotal.Add(tx.Amount)
			}
		case StatusPending:
			s.PendingCount++
		case StatusFailed:
			s.FailedCount++
		}
	}
	return s
}

// ByType splits the transaction log by operation type.
func (a *Analytics) ByType() TypeBreakdown {
	b := TypeBreakdown{
		Deposits:    []Transaction{},
		Withdrawals: []Transaction{},
		Transfers:   []Transaction{},
	}
	for _, tx := range a.txlog.List() {
		switch tx.Type {
		case TypeDeposit:
			b.Deposits = append(b.Deposits, tx)
		case TypeWithdrawal:
			b.Withdrawals = append(b.Withdrawals, tx)
		case TypeTransfer:
			b.Transfers = append(b.Transfers, tx)
		}
	}
	return b
}

// TrackSession marks a session active or inactive. Both directions are
// idempotent; an empty session ID is ignored.
func (a *Analytics) TrackSession(sessionID string, active bool) {
	if sessionID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if active {
		a.sessions[sessionID] = true
		return
	}
	delete(a.sessions, sessionID)
}

// ActiveSessions reports the number of currently active sessions.
func (a *Analytics) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
