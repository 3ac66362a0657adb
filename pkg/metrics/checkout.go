package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// CheckoutMetrics covers checkout outcomes, reconciliation losses and backend latency.
// A nil *CheckoutMetrics is valid and records nothing.
type CheckoutMetrics struct {
	outcomes        *prometheus.CounterVec
	reconcileFailed *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_outcomes_total",
		Help:      "Checkout attempts by payment method and outcome.",
	}, []string{"method", "outcome"})
	reconcileFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_item_failures_total",
		Help:      "Cart lines whose product or gallery join failed during reconciliation.",
	}, []string{"stage"})
	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of calls to the storefront backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "status"})
	reg.MustRegister(outcomes, reconcileFailed, backendDuration)
	return &CheckoutMetrics{
		outcomes:        outcomes,
		reconcileFailed: reconcileFailed,
		backendDuration: backendDuration,
	}
}

// IncOutcome counts one finished checkout attempt, e.g. ("COD", "confirmed").
func (m *CheckoutMetrics) IncOutcome(method, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncReconcileFailure counts a dropped line ("product") or a placeholder image ("gallery").
func (m *CheckoutMetrics) IncReconcileFailure(stage string) {
	if m == nil || m.reconcileFailed == nil {
		return
	}
	m.reconcileFailed.WithLabelValues(normalizeLabel(stage)).Inc()
}

// ObserveBackendRequest satisfies backend.Observer. Status 0 means the request never got a response.
func (m *CheckoutMetrics) ObserveBackendRequest(op string, status int, elapsed time.Duration) {
	if m == nil || m.backendDuration == nil {
		return
	}
	m.backendDuration.WithLabelValues(normalizeLabel(op), statusClass(status)).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
