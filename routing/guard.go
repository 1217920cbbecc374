package routing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/run"
	"github.com/eigloo/agentgraph/types"
)

// RunLookup resolves the current run projection for the state guard.
type RunLookup interface {
	GetRun(ctx context.Context, tenantID, lifetimeID string) (*run.GraphRun, error)
}

// StateGuard rejects routing for runs that are not currently routable.
// Completion evidence and routing decisions are processed concurrently;
// the guard is what stops routing from racing past a cancellation or a
// terminal transition.
type StateGuard struct {
	runs   RunLookup
	logger *zap.Logger
}

// NewStateGuard builds a guard over the given run lookup.
func NewStateGuard(runs RunLookup, logger *zap.Logger) *StateGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateGuard{runs: runs, logger: logger}
}

// Allow reports whether executions for the header's run may be routed.
// A missing run, a graph mismatch, or any status other than RUNNING is
// a logged drop, not an error; only store failures propagate.
func (g *StateGuard) Allow(ctx context.Context, header types.ExecutionHeader) (bool, error) {
	if !header.HasRunContext() {
		g.logger.Warn("dropping execution with incomplete header",
			zap.String("graph_id", header.GraphID),
			zap.String("lifetime_id", header.LifetimeID),
			zap.String("node", header.NodeName))
		return false, nil
	}
	r, err := g.runs.GetRun(ctx, header.TenantID, header.LifetimeID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			g.logger.Warn("dropping execution for unknown run",
				zap.String("lifetime_id", header.LifetimeID),
				zap.String("node", header.NodeName))
			return false, nil
		}
		return false, err
	}
	if r.GraphID != header.GraphID {
		g.logger.Warn("dropping execution with mismatched graph",
			zap.String("lifetime_id", header.LifetimeID),
			zap.String("header_graph_id", header.GraphID),
			zap.String("run_graph_id", r.GraphID))
		return false, nil
	}
	if r.Status != run.StatusRunning {
		g.logger.Info("dropping execution for non-running run",
			zap.String("lifetime_id", header.LifetimeID),
			zap.String("status", r.Status.String()),
			zap.String("node", header.NodeName))
		return false, nil
	}
	return true, nil
}
