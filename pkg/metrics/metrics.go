// Package metrics declares the Prometheus collectors of the service.
// They register on the default registry, which /metrics exposes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labgrid"

var (
	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration tracks request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// WebhookRequestsTotal counts webhook deliveries by provider, event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total billing webhook requests by provider, event type and HTTP status.",
	}, []string{"provider", "event_type", "status"})

	// WebhookDuration tracks webhook handling latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Billing webhook handling duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "event_type"})

	// ReconcileOutcomes counts reconciler results: applied, duplicate, ignored, stale, unresolved, failed.
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "reconcile_outcomes_total",
		Help:      "Webhook reconciliation outcomes by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ProviderCalls counts outbound provider API calls by operation and result.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "provider_calls_total",
		Help:      "Outbound billing provider calls by provider, operation and result.",
	}, []string{"provider", "operation", "result"})

	// SweepRuns counts trial sweeps by trigger (cron, ticker, cli).
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trial",
		Name:      "sweep_runs_total",
		Help:      "Trial sweeps by trigger.",
	}, []string{"trigger"})

	// SweepAccounts counts accounts seen by the sweeper by result (updated, skipped, failed).
	SweepAccounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trial",
		Name:      "sweep_accounts_total",
		Help:      "Accounts processed by the trial sweeper by result.",
	}, []string{"result"})

	// AuditWrites counts audit appends by action and result.
	AuditWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Audit record writes by action and result.",
	}, []string{"action", "result"})
)

// Result labels shared by the counters.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
