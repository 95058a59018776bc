package observability

import (
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/v1/accounts", "200", time.Millisecond)
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ObserveSettlement("deposit", "completed", 10)
	m.IncInvariantViolation()
	m.SetSuspectAccounts(1)
	m.SetActiveSessions(2)
	m.IncEventEmitted()
	m.IncEventDropped()
	m.IncEventPublishFailed()
	if err := m.WritePrometheus(&strings.Builder{}); err != nil {
		t.Errorf("nil WritePrometheus returned error: %v", err)
	}
}

func TestObserveSettlementTotals(t *testing.T) {
	m := NewMetrics()

	m.ObserveSettlement("deposit", "completed", 100)
	m.ObserveSettlement("deposit", "completed", 50)
	m.ObserveSettlement("withdrawal", "failed", 9999)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus returned error: %v", err)
	}
	out := b.String()

	if !strings.Contains(out, `ledger_operations_total{type="deposit",status="completed"} 2.0`) {
		t.Errorf("missing deposit operation count:\n%s", out)
	}
	if !strings.Contains(out, `ledger_operations_total{type="withdrawal",status="failed"} 1.0`) {
		t.Errorf("missing failed withdrawal count:\n%s", out)
	}
	if !strings.Contains(out, `ledger_settled_amount_total{type="deposit"} 150.0`) {
		t.Errorf("missing settled deposit amount:\n%s", out)
	}
	if strings.Contains(out, `ledger_settled_amount_total{type="withdrawal"}`) {
		t.Errorf("failed operation contributed to settled amounts:\n%s", out)
	}
}

func TestObserveAPILatencyHistogram(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/v1/transactions/deposit", "201", 3*time.Millisecond)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus returned error: %v", err)
	}
	out := b.String()

	if !strings.Contains(out, `ledger_api_requests_total{method="POST",route="/v1/transactions/deposit",status="201"} 1.0`) {
		t.Errorf("missing request counter:\n%s", out)
	}
	if !strings.Contains(out, `ledger_api_request_duration_seconds_bucket{method="POST",route="/v1/transactions/deposit",status="201",le="+Inf"} 1`) {
		t.Errorf("missing +Inf bucket:\n%s", out)
	}
	if !strings.Contains(out, "ledger_api_request_duration_seconds_count") {
		t.Errorf("missing histogram count:\n%s", out)
	}
}

func TestGaugeMoves(t *testing.T) {
	m := NewMetrics()

	m.ApiInflightInc()
	m.ApiInflightInc()
	m.ApiInflightDec()
	if got := m.apiInflight.Value(); got != 1 {
		t.Errorf("inflight gauge = %f, want 1", got)
	}

	m.SetActiveSessions(7)
	if got := m.activeSessions.Value(); got != 7 {
		t.Errorf("active sessions gauge = %f, want 7", got)
	}
}

func TestCounterVecLabelEscaping(t *testing.T) {
	c := NewCounterVec("test_total", "Test.", []string{"name"})
	c.Inc(`with"quote`)

	var b strings.Builder
	if err := c.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus returned error: %v", err)
	}
	if !strings.Contains(b.String(), `name="with\"quote"`) {
		t.Errorf("label not escaped:\n%s", b.String())
	}
}
