package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mokanichokani/ledger-service/internal/utils"
)

// Store holds the in-memory account book. It is seeded once at startup;
// afterwards balances are mutated only by the engine during settlement and
// accounts are never created or deleted.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*Account)}
}

// Seed installs the opening book, replacing any previous contents. Missing
// IDs and timestamps are filled in.
func (s *Store) Seed(accounts []Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*Account, len(accounts))
	for _, account := range accounts {
		a := account
		if a.ID == "" {
			a.ID = utils.GenerateID("acc")
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
		s.accounts[a.AccountNumber] = &a
	}
}

// Lookup returns a snapshot copy of the account.
func (s *Store) Lookup(accountNumber string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *account, nil
}

// AdjustBalance applies balance += delta and returns the new balance. It is
// a mechanical mutation primitive: sufficiency for negative deltas is the
// engine's responsibility, not the store's.
func (s *Store) AdjustBalance(accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(delta)
	account.UpdatedAt = time.Now().UTC()
	return account.Balance, nil
}

// List returns snapshot copies of every account ordered by account number.
func (s *Store) List() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out
}
