package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/internal/metrics"
	"github.com/eigloo/agentgraph/types"
)

// DefaultMaxErrorLength bounds the error message stored on a failed run.
const DefaultMaxErrorLength = 1000

// defaultErrorMessage is stored when a failed record carries no message.
const defaultErrorMessage = "Execution failed"

// Lifecycle maintains graph run status transitions from persisted execution
// evidence. One instance serves all runs; per-record processing is
// synchronous and stateless apart from what the backing stores hold.
type Lifecycle struct {
	runs    RunStore
	execs   ExecutionStore
	graphs  GraphLookup
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	maxErrorLen int
}

// LifecycleOptions configures a Lifecycle.
type LifecycleOptions struct {
	// MaxErrorLength bounds the stored run error message. Zero means
	// DefaultMaxErrorLength.
	MaxErrorLength int
	Logger         *zap.Logger
	Metrics        *metrics.Collector
}

// NewLifecycle creates the run lifecycle engine.
func NewLifecycle(runs RunStore, execs ExecutionStore, graphs GraphLookup, opts LifecycleOptions) *Lifecycle {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxErrorLength <= 0 {
		opts.MaxErrorLength = DefaultMaxErrorLength
	}
	return &Lifecycle{
		runs:        runs,
		execs:       execs,
		graphs:      graphs,
		logger:      opts.Logger.With(zap.String("component", "run_lifecycle")),
		metrics:     opts.Metrics,
		tracer:      otel.Tracer("github.com/eigloo/agentgraph/run"),
		maxErrorLen: opts.MaxErrorLength,
	}
}

// OnExecutionPersisted applies one newly-persisted execution record to the
// owning run and decides whether the run is now finished.
//
// Anomalies are absorbed, never returned: missing header context, terminal
// runs, and illegal transitions all resolve to logged no-ops. Only store
// errors propagate; the caller (the store/bus layer) owns retry policy.
func (l *Lifecycle) OnExecutionPersisted(ctx context.Context, rec types.ExecutionRecord) error {
	ctx, span := l.tracer.Start(ctx, "run.OnExecutionPersisted",
		trace.WithAttributes(
			attribute.String("graph.id", rec.Header.GraphID),
			attribute.String("run.lifetime_id", rec.Header.LifetimeID),
			attribute.String("node.kind", string(rec.Kind)),
			attribute.String("node.name", rec.Header.NodeName),
		))
	defer span.End()

	h := rec.Header
	if isBlank(h.TenantID) || isBlank(h.GraphID) || isBlank(h.LifetimeID) {
		l.logger.Warn("skipping run lifecycle update due to missing context",
			zap.String("tenant_id", h.TenantID),
			zap.String("graph_id", h.GraphID),
			zap.String("lifetime_id", h.LifetimeID))
		return nil
	}

	l.metrics.RecordExecutionApplied(string(rec.Kind), string(h.Status))

	r, err := l.runs.GetRun(ctx, h.TenantID, h.LifetimeID)
	switch {
	case errors.Is(err, ErrRunNotFound):
		r, err = l.createPlaceholderRun(ctx, rec)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("resolving run %s: %w", h.LifetimeID, err)
	}

	previous := r.Status
	if previous.IsTerminal() {
		l.logger.Debug("skipping lifecycle update for terminal run",
			zap.String("tenant_id", r.TenantID),
			zap.String("graph_id", r.GraphID),
			zap.String("lifetime_id", r.LifetimeID),
			zap.String("status", string(previous)))
		return nil
	}

	if rec.Failed() {
		return l.markFailed(ctx, r, previous, rec)
	}

	if r.StartedAt == nil {
		started := fallbackTime(rec.CreatedAt)
		r.StartedAt = &started
	}
	l.transition(r, StatusRunning, "execution persisted")

	if rec.Succeeded() {
		complete, err := l.isRunComplete(ctx, r)
		if err != nil {
			return err
		}
		if complete {
			if l.transition(r, StatusSucceeded, "all graph edges resolved") {
				completed := fallbackTime(rec.CreatedAt)
				r.CompletedAt = &completed
				r.ErrorMessage = ""
			}
		}
	}

	if err := l.runs.SaveRun(ctx, r); err != nil {
		return fmt.Errorf("saving run %s: %w", r.LifetimeID, err)
	}

	if r.Status != previous {
		l.metrics.RecordRunTransition(string(r.Status))
		l.logger.Info("graph run transitioned",
			zap.String("tenant_id", r.TenantID),
			zap.String("graph_id", r.GraphID),
			zap.String("lifetime_id", r.LifetimeID),
			zap.String("from", string(previous)),
			zap.String("to", string(r.Status)))
	}
	return nil
}

// createPlaceholderRun compensates for out-of-order delivery: completion
// evidence can arrive before the run's own creation record is visible. The
// placeholder starts QUEUED with timestamps backfilled from the record.
func (l *Lifecycle) createPlaceholderRun(ctx context.Context, rec types.ExecutionRecord) (*GraphRun, error) {
	created := fallbackTime(rec.CreatedAt)
	r := &GraphRun{
		LifetimeID: rec.Header.LifetimeID,
		TenantID:   rec.Header.TenantID,
		GraphID:    rec.Header.GraphID,
		Status:     StatusQueued,
		CreatedAt:  created,
		StartedAt:  &created,
	}
	l.logger.Warn("creating placeholder graph run for missing lifetime record",
		zap.String("tenant_id", r.TenantID),
		zap.String("graph_id", r.GraphID),
		zap.String("lifetime_id", r.LifetimeID))
	l.metrics.RecordPlaceholderRun()

	if err := l.runs.SaveRun(ctx, r); err != nil {
		return nil, fmt.Errorf("saving placeholder run %s: %w", r.LifetimeID, err)
	}
	return r, nil
}

// markFailed is the failure fast path: the first failed record drives the run
// terminal, ignoring closure checks; all later records are no-ops.
func (l *Lifecycle) markFailed(ctx context.Context, r *GraphRun, previous Status, rec types.ExecutionRecord) error {
	l.transition(r, StatusFailed, "execution failure persisted")
	if r.StartedAt == nil {
		started := fallbackTime(rec.CreatedAt)
		r.StartedAt = &started
	}
	completed := fallbackTime(rec.CreatedAt)
	r.CompletedAt = &completed
	r.ErrorMessage = l.compactError(rec.ErrorMessage)

	if err := l.runs.SaveRun(ctx, r); err != nil {
		return fmt.Errorf("saving failed run %s: %w", r.LifetimeID, err)
	}

	l.metrics.RecordRunTransition(string(r.Status))
	l.logger.Info("graph run transitioned",
		zap.String("tenant_id", r.TenantID),
		zap.String("graph_id", r.GraphID),
		zap.String("lifetime_id", r.LifetimeID),
		zap.String("from", string(previous)),
		zap.String("to", string(r.Status)))
	return nil
}

// transition applies a status change through the state machine. Illegal
// transitions are logged no-ops.
func (l *Lifecycle) transition(r *GraphRun, target Status, reason string) bool {
	if !r.Status.CanTransitionTo(target) {
		l.logger.Warn("illegal graph run transition ignored",
			zap.String("tenant_id", r.TenantID),
			zap.String("graph_id", r.GraphID),
			zap.String("lifetime_id", r.LifetimeID),
			zap.String("from", string(r.Status)),
			zap.String("to", string(target)),
			zap.String("reason", reason))
		return false
	}
	r.Status = target
	return true
}

// isRunComplete runs completion detection over the full record set. The check
// is monotonic: records never revert from success or failure to absent, so
// once every clause passes it stays true and re-running on every new record
// is safe and convergent.
func (l *Lifecycle) isRunComplete(ctx context.Context, r *GraphRun) (bool, error) {
	start := time.Now()
	defer func() { l.metrics.ObserveCompletionCheck(time.Since(start)) }()

	g, err := l.graphs.GetGraph(ctx, r.TenantID, r.GraphID)
	if errors.Is(err, ErrGraphNotFound) {
		// A transient read inconsistency must not corrupt run status.
		l.logger.Warn("cannot evaluate completion: graph not found",
			zap.String("tenant_id", r.TenantID),
			zap.String("graph_id", r.GraphID),
			zap.String("lifetime_id", r.LifetimeID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading graph %s: %w", r.GraphID, err)
	}

	records, err := l.execs.ListExecutions(ctx, r.TenantID, r.GraphID, r.LifetimeID)
	if err != nil {
		return false, fmt.Errorf("listing executions for run %s: %w", r.LifetimeID, err)
	}
	if len(records) == 0 {
		return false, nil
	}

	successPlans := make(map[string]struct{})
	successTasks := make(map[string]struct{})
	for _, rec := range records {
		if rec.Failed() {
			return false, nil
		}
		if !rec.Succeeded() || isBlank(rec.Header.NodeName) {
			continue
		}
		switch rec.Kind {
		case types.NodeKindPlan:
			successPlans[rec.Header.NodeName] = struct{}{}
		case types.NodeKindTask:
			successTasks[rec.Header.NodeName] = struct{}{}
		}
	}
	if len(successPlans) == 0 && len(successTasks) == 0 {
		return false, nil
	}

	for _, entry := range entryPlanNames(r, g) {
		if _, ok := successPlans[entry]; !ok {
			return false, nil
		}
	}

	// Every task a succeeded plan actually chose must itself have succeeded.
	// Names that resolve to nothing in the graph are the router's problem,
	// not completion's; they are skipped here.
	for _, rec := range records {
		if rec.Kind != types.NodeKindPlan || !rec.Succeeded() {
			continue
		}
		for _, taskName := range rec.NextTaskNames {
			if isBlank(taskName) || !g.HasTask(taskName) {
				continue
			}
			if _, ok := successTasks[taskName]; !ok {
				return false, nil
			}
		}
	}

	// Every plan downstream of a succeeded task must itself have succeeded.
	for _, rec := range records {
		if rec.Kind != types.NodeKindTask || !rec.Succeeded() {
			continue
		}
		for _, planName := range g.DownstreamPlans(rec.Header.NodeName) {
			if _, ok := successPlans[planName]; !ok {
				return false, nil
			}
		}
	}

	return true, nil
}

// entryPlanNames prefers the run's submission-time snapshot and falls back to
// the graph's current entry set for placeholder runs that never saw one.
func entryPlanNames(r *GraphRun, g *graph.AgentGraph) []string {
	if len(r.EntryPlanNames) > 0 {
		return r.EntryPlanNames
	}
	return g.EntryPlans()
}

func (l *Lifecycle) compactError(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return defaultErrorMessage
	}
	if len(message) > l.maxErrorLen {
		return message[:l.maxErrorLen]
	}
	return message
}

func fallbackTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
