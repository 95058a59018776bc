package loadgen

import (
	"math/rand"
	"net/http"
)

// Request is one concrete HTTP call within a journey execution.
type Request struct {
	Step   string
	Method string
	Path   string
	Body   map[string]any
}

// Journey is a weighted multi-step client flow. Plan builds the concrete
// request list for one execution, fixing accounts and amounts up front so
// the steps agree with each other.
type Journey struct {
	Name   string
	Weight float64
	Plan   func(sc Scenario) []Request
}

// Journeys returns the traffic mix the simulator plays against the service.
// Weights sum to 1.0; balance checks dominate the way reads dominate real
// banking traffic. Withdrawal amounts are drawn blind, so accounts with thin
// balances produce rejected transactions as a natural part of the mix.
func Journeys() []Journey {
	return []Journey{
		{
			Name:   "balance_check",
			Weight: 0.35,
			Plan: func(sc Scenario) []Request {
				account := pickAccount(sc)
				return []Request{
					{Step: "get_account", Method: http.MethodGet, Path: "/v1/accounts/" + account},
					{Step: "get_balance", Method: http.MethodGet, Path: "/v1/accounts/" + account + "/balance"},
				}
			},
		},
		{
			Name:   "cash_deposit",
			Weight: 0.20,
			Plan: func(sc Scenario) []Request {
				account := pickAccount(sc)
				return []Request{
					{Step: "get_balance", Method: http.MethodGet, Path: "/v1/accounts/" + account + "/balance"},
					{Step: "post_deposit", Method: http.MethodPost, Path: "/v1/transactions/deposit",
						Body: map[string]any{"accountNumber": account, "amount": journeyAmount(sc)}},
				}
			},
		},
		{
			Name:   "cash_withdrawal",
			Weight: 0.15,
			Plan: func(sc Scenario) []Request {
				account := pickAccount(sc)
				return []Request{
					{Step: "get_balance", Method: http.MethodGet, Path: "/v1/accounts/" + account + "/balance"},
					{Step: "post_withdrawal", Method: http.MethodPost, Path: "/v1/transactions/withdrawal",
						Body: map[string]any{"accountNumber": account, "amount": journeyAmount(sc)}},
				}
			},
		},
		{
			Name:   "money_transfer",
			Weight: 0.20,
			Plan: func(sc Scenario) []Request {
				source, destination := pickTransferPair(sc)
				return []Request{
					{Step: "get_source_account", Method: http.MethodGet, Path: "/v1/accounts/" + source},
					{Step: "get_destination_account", Method: http.MethodGet, Path: "/v1/accounts/" + destination},
					{Step: "post_transfer", Method: http.MethodPost, Path: "/v1/transactions/transfer",
						Body: map[string]any{
							"sourceAccountNumber":      source,
							"destinationAccountNumber": destination,
							"amount":                   journeyAmount(sc),
						}},
					{Step: "list_source_transactions", Method: http.MethodGet, Path: "/v1/transactions?accountNumber=" + source},
				}
			},
		},
		{
			Name:   "reporting",
			Weight: 0.10,
			Plan: func(sc Scenario) []Request {
				return []Request{
					{Step: "get_summary", Method: http.MethodGet, Path: "/v1/analytics/summary"},
					{Step: "get_breakdown", Method: http.MethodGet, Path: "/v1/analytics/transactions"},
				}
			},
		},
	}
}

// journeyAt walks the cumulative weights; r is uniform in [0, 1). Falls back
// to the first journey if the weights do not quite reach r.
func journeyAt(journeys []Journey, r float64) Journey {
	cumulative := 0.0
	for _, journey := range journeys {
		cumulative += journey.Weight
		if r <= cumulative {
			return journey
		}
	}
	return journeys[0]
}

func pickAccount(sc Scenario) string {
	return sc.Accounts[rand.Intn(len(sc.Accounts))]
}

// pickTransferPair returns two distinct accounts when the scenario has more
// than one.
func pickTransferPair(sc Scenario) (string, string) {
	if len(sc.Accounts) == 1 {
		return sc.Accounts[0], sc.Accounts[0]
	}
	i := rand.Intn(len(sc.Accounts))
	j := (i + 1 + rand.Intn(len(sc.Accounts)-1)) % len(sc.Accounts)
	return sc.Accounts[i], sc.Accounts[j]
}

// journeyAmount draws a two-decimal amount in [AmountMin, AmountMax].
func journeyAmount(sc Scenario) float64 {
	span := int((sc.AmountMax - sc.AmountMin) * 100)
	cents := int(sc.AmountMin*100) + rand.Intn(span+1)
	return float64(cents) / 100
}
