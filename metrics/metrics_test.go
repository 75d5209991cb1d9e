package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.EventRecorded("recency")
	m.EventRecorded("recency")
	m.ExpenseRecorded(103)
	m.SettlementRecorded()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("recency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.expenses))
	assert.Equal(t, 103.0, testutil.ToFloat64(m.expenseAmount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settlements))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EventRecorded("ordinary")
	m.ExpenseRecorded(10)
	m.SettlementRecorded()
	m.ObserveRequest("/events", http.MethodPost, http.StatusCreated, time.Millisecond)
	m.ActivityFailed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesRequests(t *testing.T) {
	m := New()
	m.ObserveRequest("/balances", http.MethodGet, http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `acasinha_http_requests_total{method="GET",route="/balances",status="200"} 1`))
	assert.True(t, strings.Contains(body, "acasinha_http_request_duration_seconds_bucket"))
}
