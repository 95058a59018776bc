package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mokanichokani/ledger-service/internal/ledger"
)

// ---- mock implementations ----

type mockAnalyticsReader struct {
	summaryFn func() ledger.Summary
	byTypeFn  func() ledger.TypeBreakdown
}

func (m *mockAnalyticsReader) Summary() ledger.Summary {
	if m.summaryFn != nil {
		return m.summaryFn()
	}
	return ledger.Summary{}
}
func (m *mockAnalyticsReader) ByType() ledger.TypeBreakdown {
	if m.byTypeFn != nil {
		return m.byTypeFn()
	}
	return ledger.TypeBreakdown{}
}

// ---- helpers ----

func newAnalyticsTestRouter(analytics AnalyticsReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAnalyticsHandler(analytics)
	v1 := r.Group("/v1/analytics")
	v1.GET("/summary", h.GetSummary)
	v1.GET("/transactions", h.GetByType)
	return r
}

// ---- tests ----

func TestGetSummary(t *testing.T) {
	analytics := &mockAnalyticsReader{
		summaryFn: func() ledger.Summary {
			return ledger.Summary{
				ActiveSessions: 3, TotalCount: 10, CompletedCount: 7,
				PendingCount: 1, FailedCount: 2,
				DepositTotal:    decimal.NewFromInt(500),
				WithdrawalTotal: decimal.NewFromInt(120),
				TransferTotal:   decimal.NewFromInt(75),
			}
		},
	}
	router := newAnalyticsTestRouter(analytics)

	req, _ := http.NewRequest(http.MethodGet, "/v1/analytics/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d; body: %s", w.Code, w.Body.String())
	}
	var resp ledger.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.TotalCount != 10 || resp.ActiveSessions != 3 {
		t.Errorf("unexpected summary payload: %s", w.Body.String())
	}
	if !resp.DepositTotal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected deposit total 500, got %s", resp.DepositTotal)
	}
}

func TestGetByType(t *testing.T) {
	analytics := &mockAnalyticsReader{
		byTypeFn: func() ledger.TypeBreakdown {
			return ledger.TypeBreakdown{
				Deposits:    []ledger.Transaction{txCompleted(ledger.TypeDeposit)},
				Withdrawals: []ledger.Transaction{},
				Transfers:   []ledger.Transaction{txCompleted(ledger.TypeTransfer)},
			}
		},
	}
	router := newAnalyticsTestRouter(analytics)

	req, _ := http.NewRequest(http.MethodGet, "/v1/analytics/transactions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d; body: %s", w.Code, w.Body.String())
	}
	var resp ledger.TypeBreakdown
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Deposits) != 1 || len(resp.Withdrawals) != 0 || len(resp.Transfers) != 1 {
		t.Errorf("unexpected breakdown payload: %s", w.Body.String())
	}
}
