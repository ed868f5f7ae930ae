package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics
var (
	ActiveWorkflows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgrid_active_workflows",
			Help: "Number of workflows currently live",
		},
	)

	TriggersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgrid_triggers_fired_total",
			Help: "Total number of trigger firings by source",
		},
		[]string{"source"},
	)

	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgrid_executions_total",
			Help: "Total number of graph executions by final status",
		},
		[]string{"status"},
	)

	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowgrid_execution_duration_seconds",
			Help:    "Graph execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	NodeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgrid_node_executions_total",
			Help: "Total number of node behavior invocations",
		},
		[]string{"node_type", "status"},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgrid_node_duration_seconds",
			Help:    "Node behavior duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node_type"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgrid_queue_depth",
			Help: "Jobs waiting in the execution queue",
		},
	)

	ResponderSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgrid_responder_sends_total",
			Help: "Total responder deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)
