package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns the runtime's Prometheus metrics. A nil *Collector is valid
// and records nothing, so wiring metrics stays optional in tests.
type Collector struct {
	runTransitions     *prometheus.CounterVec
	executionsApplied  *prometheus.CounterVec
	completionDuration prometheus.Histogram
	routingEmitted     *prometheus.CounterVec
	routingDropped     *prometheus.CounterVec
	guardrailReject    *prometheus.CounterVec
	placeholderRuns    prometheus.Counter
}

// NewCollector registers the runtime metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests pass a fresh registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_transitions_total",
				Help:      "Total number of graph run status transitions",
			},
			[]string{"to_status"},
		),
		executionsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_applied_total",
				Help:      "Total number of execution records applied to run lifecycles",
			},
			[]string{"kind", "status"},
		),
		completionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_check_duration_seconds",
				Help:      "Duration of run completion-detection evaluations",
				Buckets:   prometheus.DefBuckets,
			},
		),
		routingEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_inputs_emitted_total",
				Help:      "Total number of node input events emitted by the router",
			},
			[]string{"kind"},
		),
		routingDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_dropped_total",
				Help:      "Total number of completion events dropped before routing",
			},
			[]string{"reason"},
		),
		guardrailReject: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guardrail_rejections_total",
				Help:      "Total number of executions rejected by guardrails",
			},
			[]string{"guardrail"},
		),
		placeholderRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placeholder_runs_total",
				Help:      "Total number of placeholder runs created for out-of-order evidence",
			},
		),
	}
}

// RecordRunTransition counts a run status transition.
func (c *Collector) RecordRunTransition(toStatus string) {
	if c == nil {
		return
	}
	c.runTransitions.WithLabelValues(toStatus).Inc()
}

// RecordExecutionApplied counts one execution record consumed by the
// lifecycle engine.
func (c *Collector) RecordExecutionApplied(kind, status string) {
	if c == nil {
		return
	}
	c.executionsApplied.WithLabelValues(kind, status).Inc()
}

// ObserveCompletionCheck records the duration of one completion-detection
// evaluation.
func (c *Collector) ObserveCompletionCheck(d time.Duration) {
	if c == nil {
		return
	}
	c.completionDuration.Observe(d.Seconds())
}

// RecordRoutingEmitted counts one emitted node input event.
func (c *Collector) RecordRoutingEmitted(kind string) {
	if c == nil {
		return
	}
	c.routingEmitted.WithLabelValues(kind).Inc()
}

// RecordRoutingDropped counts one completion event dropped before routing.
func (c *Collector) RecordRoutingDropped(reason string) {
	if c == nil {
		return
	}
	c.routingDropped.WithLabelValues(reason).Inc()
}

// RecordGuardrailRejection counts one guardrail rejection.
func (c *Collector) RecordGuardrailRejection(guardrail string) {
	if c == nil {
		return
	}
	c.guardrailReject.WithLabelValues(guardrail).Inc()
}

// RecordPlaceholderRun counts one self-healing placeholder run creation.
func (c *Collector) RecordPlaceholderRun() {
	if c == nil {
		return
	}
	c.placeholderRuns.Inc()
}
