// Package composer owns the control-plane entry points of a graph run:
// submitting a graph for execution, canceling a run, and moving a graph
// through its design-time lifecycle.
package composer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/internal/metrics"
	"github.com/eigloo/agentgraph/run"
	"github.com/eigloo/agentgraph/types"
)

// GraphStore is the graph persistence the composer needs.
type GraphStore interface {
	GetGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error)
	SaveGraph(ctx context.Context, g *graph.AgentGraph) error
}

// RunStore is the run persistence the composer needs.
type RunStore interface {
	GetRun(ctx context.Context, tenantID, lifetimeID string) (*run.GraphRun, error)
	SaveRun(ctx context.Context, r *run.GraphRun) error
}

// Publisher delivers bootstrap plan inputs to the bus.
type Publisher interface {
	PublishPlanInput(ctx context.Context, tenantID string, in types.PlanInput) error
}

// Composer submits, cancels, and curates graphs.
type Composer struct {
	graphs  GraphStore
	runs    RunStore
	bus     Publisher
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Options configures optional Composer collaborators.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New builds a composer over the given stores and bus.
func New(graphs GraphStore, runs RunStore, bus Publisher, opts Options) *Composer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Composer{
		graphs:  graphs,
		runs:    runs,
		bus:     bus,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}
}

// SubmitRun creates a new run of the graph and publishes one bootstrap
// plan input per entry plan. The run is persisted QUEUED before any
// input is published, so evidence arriving early still resolves a run
// row; the lifecycle engine moves it to RUNNING on the first record.
func (c *Composer) SubmitRun(ctx context.Context, tenantID, graphID string) (*run.GraphRun, error) {
	g, err := c.graphs.GetGraph(ctx, tenantID, graphID)
	if err != nil {
		return nil, err
	}
	if g.Status() == graph.StatusArchived {
		return nil, types.NewErrorf(types.ErrInvalidRequest,
			"graph %s is archived and cannot be executed", graphID)
	}
	entryPlans := g.EntryPlans()
	if len(entryPlans) == 0 {
		return nil, types.NewErrorf(types.ErrInvalidRequest,
			"graph %s has no entry plans", graphID)
	}

	r := &run.GraphRun{
		LifetimeID:     uuid.NewString(),
		TenantID:       tenantID,
		GraphID:        graphID,
		Status:         run.StatusQueued,
		EntryPlanNames: entryPlans,
		CreatedAt:      c.now().UTC(),
	}
	if err := c.runs.SaveRun(ctx, r); err != nil {
		return nil, err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, planName := range entryPlans {
		input := types.PlanInput{
			InputID:    uuid.NewString(),
			PlanName:   planName,
			GraphID:    graphID,
			LifetimeID: r.LifetimeID,
		}
		eg.Go(func() error {
			return c.bus.PublishPlanInput(egCtx, tenantID, input)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	c.metrics.RecordRunTransition(run.StatusQueued.String())
	c.logger.Info("submitted graph run",
		zap.String("tenant_id", tenantID),
		zap.String("graph_id", graphID),
		zap.String("lifetime_id", r.LifetimeID),
		zap.Strings("entry_plans", entryPlans))
	return r.Clone(), nil
}

// CancelRun moves a run to CANCELED. Canceling an already terminal run
// is a no-op returning the run unchanged.
func (c *Composer) CancelRun(ctx context.Context, tenantID, lifetimeID string) (*run.GraphRun, error) {
	r, err := c.runs.GetRun(ctx, tenantID, lifetimeID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(run.StatusCanceled) {
		c.logger.Warn("ignoring cancel for terminal run",
			zap.String("lifetime_id", lifetimeID),
			zap.String("status", r.Status.String()))
		return r, nil
	}
	if r.Status == run.StatusCanceled {
		return r, nil
	}
	completed := c.now().UTC()
	r.Status = run.StatusCanceled
	r.CompletedAt = &completed
	if err := c.runs.SaveRun(ctx, r); err != nil {
		return nil, err
	}
	c.metrics.RecordRunTransition(run.StatusCanceled.String())
	c.logger.Info("canceled graph run",
		zap.String("tenant_id", tenantID),
		zap.String("lifetime_id", lifetimeID))
	return r.Clone(), nil
}

// ActivateGraph moves a graph to ACTIVE.
func (c *Composer) ActivateGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	return c.transitionGraph(ctx, tenantID, graphID, graph.StatusActive)
}

// ArchiveGraph moves a graph to ARCHIVED. Archived graphs reject new
// run submissions; in-flight runs are unaffected.
func (c *Composer) ArchiveGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	return c.transitionGraph(ctx, tenantID, graphID, graph.StatusArchived)
}

func (c *Composer) transitionGraph(ctx context.Context, tenantID, graphID string, target graph.Status) (*graph.AgentGraph, error) {
	g, err := c.graphs.GetGraph(ctx, tenantID, graphID)
	if err != nil {
		return nil, err
	}
	if !g.Status().CanTransitionTo(target) {
		c.logger.Warn("ignoring illegal graph status transition",
			zap.String("graph_id", graphID),
			zap.String("from", g.Status().String()),
			zap.String("to", target.String()))
		return g, nil
	}
	if g.Status() == target {
		return g, nil
	}
	next := g.WithStatus(target)
	if err := c.graphs.SaveGraph(ctx, next); err != nil {
		return nil, err
	}
	c.logger.Info("graph status changed",
		zap.String("tenant_id", tenantID),
		zap.String("graph_id", graphID),
		zap.String("status", target.String()))
	return next, nil
}
