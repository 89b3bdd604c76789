package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskgate_events_enqueued_total",
		Help: "Total number of events placed on the triage queue.",
	})

	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskgate_events_processed_total",
		Help: "Total number of events fully processed by the triage pipeline.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskgate_events_dropped_total",
		Help: "Total number of events rejected due to a full queue.",
	})

	ValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskgate_validation_failures_total",
		Help: "Total number of events rejected by schema validation.",
	})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_anomalies_detected_total",
		Help: "Total number of anomaly tags emitted, labelled by kind.",
	}, []string{"kind"})

	RiskDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_risk_decisions_total",
		Help: "Total number of risk classifications, labelled by level.",
	}, []string{"level"})

	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_actions_dispatched_total",
		Help: "Total number of action dispatches, labelled by action id and status.",
	}, []string{"action", "status"})

	AuditAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskgate_audit_append_failures_total",
		Help: "Total number of failed audit trail appends.",
	})

	TriageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskgate_triage_duration_ms",
		Help:    "End-to-end event triage latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskgate_queue_utilization_ratio",
		Help: "Current triage queue utilization (0-1).",
	})
)
