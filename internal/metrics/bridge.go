package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All metrics are low-cardinality: camera names are bounded by the config,
// and no event IDs appear as labels.

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_total",
			Help: "Detection events by outcome (accepted, cooldown, filtered, malformed, overflow)",
		},
		[]string{"outcome"},
	)

	PipelineCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_pipeline_completions_total",
			Help: "Pipeline runs by terminal state and final risk level",
		},
		[]string{"state", "risk"},
	)

	VisionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_vision_calls_total",
			Help: "Vision endpoint calls by endpoint role and result",
		},
		[]string{"endpoint", "result"},
	)

	VisionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_vision_latency_seconds",
			Help:    "Vision call latency",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 90},
		},
	)

	ParseStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_decision_parse_total",
			Help: "Decision extractions by strategy (prefix, fence, balanced, embedded, fallback)",
		},
		[]string{"strategy"},
	)

	ActionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_hub_actions_total",
			Help: "Smart-home service calls by service and result",
		},
		[]string{"service", "result"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_chat_deliveries_total",
			Help: "Chat alert deliveries by result",
		},
		[]string{"result"},
	)

	BusUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_bus_up",
			Help: "MQTT connection status (1=connected)",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_intake_queue_depth",
			Help: "Events waiting for a pipeline worker",
		},
	)
)
