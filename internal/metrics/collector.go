// Package metrics exposes Prometheus collectors for the Node and C2
// services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the process-wide collector registry for this service.
var Registry = prometheus.NewRegistry()

var (
	// ActiveNodes is the current size of the C2's active-node table.
	ActiveNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "secchiware",
		Subsystem: "c2",
		Name:      "active_nodes",
		Help:      "Number of nodes currently present in the active-node table.",
	})

	// SessionsOpened counts Session rows opened by POST /environments.
	SessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "secchiware",
		Subsystem: "c2",
		Name:      "sessions_opened_total",
		Help:      "Total sessions opened.",
	})

	// SessionsClosed counts Session rows closed, labeled by the reason.
	SessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secchiware",
		Subsystem: "c2",
		Name:      "sessions_closed_total",
		Help:      "Total sessions closed, labeled by reason (explicit, liveness).",
	}, []string{"reason"})

	// ExecutionsTotal counts triggered executions.
	ExecutionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "secchiware",
		Subsystem: "c2",
		Name:      "executions_total",
		Help:      "Total executions triggered against nodes.",
	})

	// ReportsPersisted counts TestReport rows written.
	ReportsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "secchiware",
		Subsystem: "c2",
		Name:      "reports_persisted_total",
		Help:      "Total TestReport rows persisted.",
	})

	// BrokerLockWaitSeconds observes time spent waiting to acquire a
	// named broker lock.
	BrokerLockWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "secchiware",
		Subsystem: "broker",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting to acquire a named broker lock.",
		Buckets:   prometheus.DefBuckets,
	})

	// SignatureVerificationFailures counts rejected signed requests,
	// labeled by failure reason.
	SignatureVerificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secchiware",
		Subsystem: "signing",
		Name:      "verification_failures_total",
		Help:      "Signature verification failures, labeled by reason.",
	}, []string{"reason"})

	// TestsExecuted counts tests run by a node, labeled by result class.
	TestsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secchiware",
		Subsystem: "node",
		Name:      "tests_executed_total",
		Help:      "Tests executed by the node, labeled by result (pass, fail, inconclusive).",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		ActiveNodes,
		SessionsOpened,
		SessionsClosed,
		ExecutionsTotal,
		ReportsPersisted,
		BrokerLockWaitSeconds,
		SignatureVerificationFailures,
		TestsExecuted,
	)
}
