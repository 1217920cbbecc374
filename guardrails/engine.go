package guardrails

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/internal/metrics"
	"github.com/eigloo/agentgraph/types"
)

// Engine is the approval gate consulted by the router before any
// downstream input is emitted. It combines a guardrail chain with a
// per-run abort registry; an aborted run rejects every subsequent
// execution without evaluating the chain.
type Engine struct {
	chain   *Chain
	logger  *zap.Logger
	metrics *metrics.Collector

	mu      sync.RWMutex
	aborted map[string]string
}

// EngineOptions configures optional Engine collaborators.
type EngineOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// NewEngine builds an Engine over the given chain. A nil chain approves
// everything that is not aborted.
func NewEngine(chain *Chain, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		chain:   chain,
		logger:  logger,
		metrics: opts.Metrics,
		aborted: make(map[string]string),
	}
}

// Abort marks a run as aborted. Subsequent evaluations for its
// lifetime reject immediately.
func (e *Engine) Abort(lifetimeID, reason string) {
	if lifetimeID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.aborted[lifetimeID]; !ok {
		e.aborted[lifetimeID] = reason
	}
}

// IsAborted reports whether the run has been aborted, and the reason.
func (e *Engine) IsAborted(lifetimeID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	reason, ok := e.aborted[lifetimeID]
	return reason, ok
}

// Forget drops the abort entry for a run, typically once it reaches a
// terminal status and can no longer be routed.
func (e *Engine) Forget(lifetimeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.aborted, lifetimeID)
}

// Approve reports whether the record may be routed downstream. An
// evaluation error fails closed: the record is rejected and the run is
// aborted so later records do not slip through.
func (e *Engine) Approve(ctx context.Context, rec types.ExecutionRecord) bool {
	lifetimeID := rec.Header.LifetimeID
	if reason, ok := e.IsAborted(lifetimeID); ok {
		e.logger.Debug("run aborted, rejecting execution",
			zap.String("lifetime_id", lifetimeID),
			zap.String("node", rec.Header.NodeName),
			zap.String("reason", reason))
		return false
	}
	if e.chain == nil || e.chain.Len() == 0 {
		return true
	}
	decision, err := e.chain.Evaluate(ctx, rec)
	if err != nil {
		e.logger.Error("guardrail evaluation failed, rejecting execution",
			zap.String("lifetime_id", lifetimeID),
			zap.String("node", rec.Header.NodeName),
			zap.Error(err))
		e.metrics.RecordGuardrailRejection("error")
		e.Abort(lifetimeID, "guardrail evaluation error: "+err.Error())
		return false
	}
	if !decision.Approved {
		name := e.chain.Name()
		if g, ok := decision.Metadata["guardrail"].(string); ok {
			name = g
		}
		e.logger.Warn("guardrail rejected execution",
			zap.String("lifetime_id", lifetimeID),
			zap.String("node", rec.Header.NodeName),
			zap.String("guardrail", name),
			zap.String("reason", decision.Reason))
		e.metrics.RecordGuardrailRejection(name)
		e.Abort(lifetimeID, decision.Reason)
		return false
	}
	return true
}
