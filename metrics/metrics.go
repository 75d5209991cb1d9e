// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "acasinha"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	expenses      prometheus.Counter
	expenseAmount prometheus.Counter
	settlements   prometheus.Counter
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	activityDrops prometheus.Counter
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_recorded_total",
			Help:      "Events recorded, by category kind.",
		}, []string{"kind"}),
		expenses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_recorded_total",
			Help:      "Events that carried a cost.",
		}),
		expenseAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_amount_total",
			Help:      "Sum of ledger entry amounts written for expenses, in minor units.",
		}),
		settlements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_recorded_total",
			Help:      "Direct payments between users.",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		activityDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_log_failures_total",
			Help:      "Activity log events that could not be saved.",
		}),
	}
}

func (m *Metrics) EventRecorded(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) ExpenseRecorded(amount int64) {
	if m == nil {
		return
	}
	m.expenses.Inc()
	m.expenseAmount.Add(float64(amount))
}

func (m *Metrics) SettlementRecorded() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ActivityFailed() {
	if m == nil {
		return
	}
	m.activityDrops.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
