package store

import (
	"context"
	"sort"
	"sync"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/run"
	"github.com/eigloo/agentgraph/types"
)

// MemoryStore is an in-process store for tests and local development.
// It satisfies the same consumer interfaces as GormStore.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*graph.AgentGraph
	runs   map[string]*run.GraphRun
	execs  []types.ExecutionRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs: make(map[string]*graph.AgentGraph),
		runs:   make(map[string]*run.GraphRun),
	}
}

func memKey(tenantID, id string) string { return tenantID + "\x00" + id }

// SaveGraph creates or replaces a graph.
func (s *MemoryStore) SaveGraph(_ context.Context, g *graph.AgentGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[memKey(g.TenantID(), g.ID())] = g
	return nil
}

// GetGraph resolves a graph by (tenantID, graphID).
func (s *MemoryStore) GetGraph(_ context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[memKey(tenantID, graphID)]
	if !ok {
		return nil, run.ErrGraphNotFound
	}
	return g, nil
}

// ListGraphs returns every graph owned by the tenant, ordered by graph ID.
func (s *MemoryStore) ListGraphs(_ context.Context, tenantID string) ([]*graph.AgentGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var graphs []*graph.AgentGraph
	for _, g := range s.graphs {
		if g.TenantID() == tenantID {
			graphs = append(graphs, g)
		}
	}
	sort.Slice(graphs, func(i, j int) bool { return graphs[i].ID() < graphs[j].ID() })
	return graphs, nil
}

// SaveRun creates or updates a run.
func (s *MemoryStore) SaveRun(_ context.Context, r *run.GraphRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[memKey(r.TenantID, r.LifetimeID)] = r.Clone()
	return nil
}

// GetRun resolves a run by (tenantID, lifetimeID).
func (s *MemoryStore) GetRun(_ context.Context, tenantID, lifetimeID string) (*run.GraphRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[memKey(tenantID, lifetimeID)]
	if !ok {
		return nil, run.ErrRunNotFound
	}
	return r.Clone(), nil
}

// ListRuns returns the tenant's runs for one graph, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, tenantID, graphID string) ([]*run.GraphRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var runs []*run.GraphRun
	for _, r := range s.runs {
		if r.TenantID == tenantID && r.GraphID == graphID {
			runs = append(runs, r.Clone())
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

// SaveExecution appends one execution record.
func (s *MemoryStore) SaveExecution(_ context.Context, rec types.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, rec)
	return nil
}

// ListExecutions returns every execution record for the run in creation
// order.
func (s *MemoryStore) ListExecutions(_ context.Context, tenantID, graphID, lifetimeID string) ([]types.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ExecutionRecord
	for _, rec := range s.execs {
		h := rec.Header
		if h.TenantID == tenantID && h.GraphID == graphID && h.LifetimeID == lifetimeID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
