// Package routing turns one node's completion evidence into the next
// node's input events. Two gates precede every routing decision: the
// run-state guard, which drops evidence for runs that are not RUNNING,
// and a pluggable guardrail gate. Validation failures are absorbed and
// logged; only store and bus errors propagate to the caller.
package routing

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/internal/metrics"
	"github.com/eigloo/agentgraph/types"
)

// GraphLookup resolves graph topology for routing decisions. The
// topology is fetched per record rather than cached indefinitely.
type GraphLookup interface {
	GetGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error)
}

// Gate is the pluggable guardrail approval contract.
type Gate interface {
	Approve(ctx context.Context, rec types.ExecutionRecord) bool
}

// Publisher delivers node input events to the bus.
type Publisher interface {
	PublishPlanInput(ctx context.Context, tenantID string, in types.PlanInput) error
	PublishTaskInput(ctx context.Context, tenantID string, in types.TaskInput) error
}

// Router resolves the downstream nodes of a completed execution and
// emits their input events.
type Router struct {
	graphs    GraphLookup
	guard     *StateGuard
	gate      Gate
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer
}

// RouterOptions configures optional Router collaborators.
type RouterOptions struct {
	// Gate is the guardrail approval gate; nil approves everything.
	Gate    Gate
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// NewRouter builds a router over the given topology lookup, state
// guard, and publisher.
func NewRouter(graphs GraphLookup, guard *StateGuard, publisher Publisher, opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		graphs:    graphs,
		guard:     guard,
		gate:      opts.Gate,
		publisher: publisher,
		logger:    logger,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("agentgraph/routing"),
	}
}

// RouteExecution routes one completion record to its downstream nodes.
// Records that fail the header check, the state guard, or the guardrail
// gate are dropped without error.
func (r *Router) RouteExecution(ctx context.Context, rec types.ExecutionRecord) error {
	ctx, span := r.tracer.Start(ctx, "routing.RouteExecution",
		trace.WithAttributes(
			attribute.String("lifetime_id", rec.Header.LifetimeID),
			attribute.String("node", rec.Header.NodeName),
			attribute.String("kind", string(rec.Kind)),
		))
	defer span.End()

	if !rec.Header.HasRunContext() {
		r.logger.Warn("dropping execution with incomplete header",
			zap.String("node", rec.Header.NodeName),
			zap.String("lifetime_id", rec.Header.LifetimeID))
		r.metrics.RecordRoutingDropped("missing_header")
		return nil
	}
	if !rec.Succeeded() {
		// Failed executions terminate the run via the lifecycle engine,
		// they never spawn downstream work.
		r.metrics.RecordRoutingDropped("not_succeeded")
		return nil
	}
	allowed, err := r.guard.Allow(ctx, rec.Header)
	if err != nil {
		return err
	}
	if !allowed {
		r.metrics.RecordRoutingDropped("state_guard")
		return nil
	}
	if r.gate != nil && !r.gate.Approve(ctx, rec) {
		r.metrics.RecordRoutingDropped("guardrail")
		return nil
	}

	g, err := r.graphs.GetGraph(ctx, rec.Header.TenantID, rec.Header.GraphID)
	if err != nil {
		return err
	}

	switch rec.Kind {
	case types.NodeKindPlan:
		return r.routePlanCompletion(ctx, g, rec)
	case types.NodeKindTask:
		return r.routeTaskCompletion(ctx, g, rec)
	default:
		r.logger.Warn("dropping execution with unknown node kind",
			zap.String("kind", string(rec.Kind)),
			zap.String("node", rec.Header.NodeName))
		r.metrics.RecordRoutingDropped("unknown_kind")
		return nil
	}
}

// routePlanCompletion emits one task input per executable name in the
// plan's declared next tasks. Names that do not resolve to a real task,
// or whose task belongs to a different upstream plan, are dropped.
func (r *Router) routePlanCompletion(ctx context.Context, g *graph.AgentGraph, rec types.ExecutionRecord) error {
	planName := rec.Header.NodeName
	for _, taskName := range dedupe(rec.NextTaskNames) {
		if !r.taskExecutableAfter(g, planName, taskName) {
			continue
		}
		input := types.TaskInput{
			InputID:       uuid.NewString(),
			TaskName:      taskName,
			GraphID:       rec.Header.GraphID,
			LifetimeID:    rec.Header.LifetimeID,
			PlanExecution: &rec,
		}
		if err := r.publisher.PublishTaskInput(ctx, rec.Header.TenantID, input); err != nil {
			return err
		}
		r.metrics.RecordRoutingEmitted("task")
		r.logger.Debug("routed plan completion to task",
			zap.String("lifetime_id", rec.Header.LifetimeID),
			zap.String("plan", planName),
			zap.String("task", taskName),
			zap.String("input_id", input.InputID))
	}
	return nil
}

// routeTaskCompletion emits one plan input per downstream plan of the
// completed task. A task with no downstream plan is a terminal leaf.
func (r *Router) routeTaskCompletion(ctx context.Context, g *graph.AgentGraph, rec types.ExecutionRecord) error {
	taskName := rec.Header.NodeName
	downstream := g.DownstreamPlans(taskName)
	if len(downstream) == 0 {
		r.logger.Debug("task has no downstream plans, nothing to route",
			zap.String("lifetime_id", rec.Header.LifetimeID),
			zap.String("task", taskName))
		return nil
	}
	for _, planName := range downstream {
		input := types.PlanInput{
			InputID:        uuid.NewString(),
			PlanName:       planName,
			GraphID:        rec.Header.GraphID,
			LifetimeID:     rec.Header.LifetimeID,
			TaskExecutions: []types.ExecutionRecord{rec},
		}
		if err := r.publisher.PublishPlanInput(ctx, rec.Header.TenantID, input); err != nil {
			return err
		}
		r.metrics.RecordRoutingEmitted("plan")
		r.logger.Debug("routed task completion to plan",
			zap.String("lifetime_id", rec.Header.LifetimeID),
			zap.String("task", taskName),
			zap.String("plan", planName),
			zap.String("input_id", input.InputID))
	}
	return nil
}

// taskExecutableAfter reports whether taskName may legally follow the
// given plan. A plan's runtime decision can point at invented names or
// at tasks owned by a different upstream plan; both are dropped here to
// defend the static graph contract.
func (r *Router) taskExecutableAfter(g *graph.AgentGraph, planName, taskName string) bool {
	if !g.HasTask(taskName) {
		r.logger.Warn("dropping next task not present in graph",
			zap.String("plan", planName),
			zap.String("task", taskName))
		r.metrics.RecordRoutingDropped("unknown_task")
		return false
	}
	if upstream, ok := g.UpstreamPlan(taskName); ok && upstream != planName {
		r.logger.Warn("dropping next task owned by a different upstream plan",
			zap.String("plan", planName),
			zap.String("task", taskName),
			zap.String("upstream_plan", upstream))
		r.metrics.RecordRoutingDropped("wrong_upstream")
		return false
	}
	return true
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(names []string) []string {
	if len(names) < 2 {
		return names
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
