// Package metrics exposes Prometheus instrumentation for the leave engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TransactionsPosted counts ledger transactions by action.
var TransactionsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "transactions_total",
	Help:      "Total ledger transactions posted, by action.",
}, []string{"action"})

// AccrualRuns counts accrual engine runs and their outcome.
var AccrualRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "accrual",
	Name:      "runs_total",
	Help:      "Total accrual runs, by result.",
}, []string{"result"})

// AccrualCredits counts accrual credits by leave type.
var AccrualCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "accrual",
	Name:      "credits_total",
	Help:      "Total accrual credits posted, by leave type.",
}, []string{"leave_type"})

// RequestTransitions counts leave request status transitions.
var RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "requests",
	Name:      "transitions_total",
	Help:      "Total leave request transitions, by target status.",
}, []string{"status"})

// YearCloseRuns counts year-close runs.
var YearCloseRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "yearclose",
	Name:      "runs_total",
	Help:      "Total year-close runs, by result.",
}, []string{"result"})

// HTTPDuration observes handler latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "leave",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"method", "status"})

// Middleware records request duration and status for every handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
