package guardrails

import (
	"context"
	"fmt"
	"sort"

	"github.com/eigloo/agentgraph/types"
)

// ChainMode selects how a chain combines its guardrails.
type ChainMode int

const (
	// ModeFailFast stops at the first rejection.
	ModeFailFast ChainMode = iota
	// ModeCollectAll evaluates every guardrail and aggregates reasons.
	ModeCollectAll
)

// Chain evaluates a set of guardrails in priority order.
type Chain struct {
	guardrails []Guardrail
	mode       ChainMode
	name       string
	priority   int
}

// NewChain builds a chain from the given guardrails, sorted by priority.
func NewChain(name string, mode ChainMode, guardrails ...Guardrail) *Chain {
	sorted := make([]Guardrail, len(guardrails))
	copy(sorted, guardrails)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Chain{guardrails: sorted, mode: mode, name: name}
}

// Add appends a guardrail, keeping the chain sorted.
func (c *Chain) Add(g Guardrail) *Chain {
	c.guardrails = append(c.guardrails, g)
	sort.SliceStable(c.guardrails, func(i, j int) bool {
		return c.guardrails[i].Priority() < c.guardrails[j].Priority()
	})
	return c
}

// Len returns the number of guardrails in the chain.
func (c *Chain) Len() int { return len(c.guardrails) }

// Name implements Guardrail, so chains can nest.
func (c *Chain) Name() string { return c.name }

// Priority implements Guardrail.
func (c *Chain) Priority() int { return c.priority }

// Evaluate implements Guardrail.
func (c *Chain) Evaluate(ctx context.Context, rec types.ExecutionRecord) (*Decision, error) {
	if len(c.guardrails) == 0 {
		return Approve(), nil
	}
	switch c.mode {
	case ModeCollectAll:
		return c.evaluateCollectAll(ctx, rec)
	default:
		return c.evaluateFailFast(ctx, rec)
	}
}

func (c *Chain) evaluateFailFast(ctx context.Context, rec types.ExecutionRecord) (*Decision, error) {
	for _, g := range c.guardrails {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decision, err := g.Evaluate(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		if !decision.Approved {
			return decision.WithMetadata("guardrail", g.Name()), nil
		}
	}
	return Approve(), nil
}

func (c *Chain) evaluateCollectAll(ctx context.Context, rec types.ExecutionRecord) (*Decision, error) {
	var reasons []string
	for _, g := range c.guardrails {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decision, err := g.Evaluate(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		if !decision.Approved {
			reason := decision.Reason
			if reason == "" {
				reason = g.Name()
			}
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) == 0 {
		return Approve(), nil
	}
	rejected := Reject(reasons[0])
	return rejected.WithMetadata("reasons", reasons), nil
}
