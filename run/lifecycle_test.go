package run

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/types"
)

// fakeBackend is a minimal in-memory RunStore + ExecutionStore + GraphLookup
// for lifecycle tests. The store package ships the real implementations; the
// engine only sees these three interfaces.
type fakeBackend struct {
	mu     sync.Mutex
	runs   map[string]*GraphRun
	execs  []types.ExecutionRecord
	graphs map[string]*graph.AgentGraph
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		runs:   make(map[string]*GraphRun),
		graphs: make(map[string]*graph.AgentGraph),
	}
}

func runKey(tenantID, lifetimeID string) string { return tenantID + "|" + lifetimeID }

func (f *fakeBackend) GetRun(_ context.Context, tenantID, lifetimeID string) (*GraphRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runKey(tenantID, lifetimeID)]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r.Clone(), nil
}

func (f *fakeBackend) SaveRun(_ context.Context, r *GraphRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runKey(r.TenantID, r.LifetimeID)] = r.Clone()
	return nil
}

func (f *fakeBackend) ListExecutions(_ context.Context, tenantID, graphID, lifetimeID string) ([]types.ExecutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ExecutionRecord
	for _, rec := range f.execs {
		h := rec.Header
		if h.TenantID == tenantID && h.GraphID == graphID && h.LifetimeID == lifetimeID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetGraph(_ context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.graphs[runKey(tenantID, graphID)]
	if !ok {
		return nil, ErrGraphNotFound
	}
	return g, nil
}

func (f *fakeBackend) addGraph(g *graph.AgentGraph) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs[runKey(g.TenantID(), g.ID())] = g
}

func (f *fakeBackend) addRun(r *GraphRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runKey(r.TenantID, r.LifetimeID)] = r.Clone()
}

func (f *fakeBackend) run(t *testing.T, tenantID, lifetimeID string) *GraphRun {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runKey(tenantID, lifetimeID)]
	require.True(t, ok, "run %s not found", lifetimeID)
	return r.Clone()
}

const (
	testTenant   = "tenant-a"
	testGraphID  = "g-1"
	testLifetime = "lt-1"
)

var testBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func planRecord(name, execID string, status types.ExecutionStatus, next []string, at time.Time) types.ExecutionRecord {
	return types.ExecutionRecord{
		Header: types.ExecutionHeader{
			TenantID:   testTenant,
			GraphID:    testGraphID,
			LifetimeID: testLifetime,
			NodeName:   name,
			ExecID:     execID,
			Status:     status,
		},
		Kind:          types.NodeKindPlan,
		CreatedAt:     at,
		NextTaskNames: next,
	}
}

func taskRecord(name, execID string, status types.ExecutionStatus, at time.Time) types.ExecutionRecord {
	return types.ExecutionRecord{
		Header: types.ExecutionHeader{
			TenantID:   testTenant,
			GraphID:    testGraphID,
			LifetimeID: testLifetime,
			NodeName:   name,
			ExecID:     execID,
			Status:     status,
		},
		Kind:      types.NodeKindTask,
		CreatedAt: at,
	}
}

// linearTestGraph builds P1 -> T1 -> P2 under (testTenant, testGraphID).
func linearTestGraph(t *testing.T) *graph.AgentGraph {
	t.Helper()
	p1t1, err := graph.PlanToTask("P1", "T1")
	require.NoError(t, err)
	t1p2, err := graph.TaskToPlan("T1", "P2")
	require.NoError(t, err)
	g, err := graph.New(testTenant, testGraphID, "linear",
		map[string]graph.Plan{"P1": {Name: "P1"}, "P2": {Name: "P2"}},
		map[string]graph.Task{"T1": {Name: "T1"}},
		[]graph.GraphEdge{p1t1, t1p2})
	require.NoError(t, err)
	return g
}

// fanOutTestGraph builds PA -> {T1A, T1B} -> PB -> T2.
func fanOutTestGraph(t *testing.T) *graph.AgentGraph {
	t.Helper()
	var edges []graph.GraphEdge
	for _, pair := range [][2]string{{"PA", "T1A"}, {"PA", "T1B"}, {"PB", "T2"}} {
		e, err := graph.PlanToTask(pair[0], pair[1])
		require.NoError(t, err)
		edges = append(edges, e)
	}
	for _, pair := range [][2]string{{"T1A", "PB"}, {"T1B", "PB"}} {
		e, err := graph.TaskToPlan(pair[0], pair[1])
		require.NoError(t, err)
		edges = append(edges, e)
	}
	g, err := graph.New(testTenant, testGraphID, "fanout",
		map[string]graph.Plan{"PA": {Name: "PA"}, "PB": {Name: "PB"}},
		map[string]graph.Task{"T1A": {Name: "T1A"}, "T1B": {Name: "T1B"}, "T2": {Name: "T2"}},
		edges)
	require.NoError(t, err)
	return g
}

func newQueuedRun(entryPlans ...string) *GraphRun {
	return &GraphRun{
		LifetimeID:     testLifetime,
		TenantID:       testTenant,
		GraphID:        testGraphID,
		Status:         StatusQueued,
		EntryPlanNames: entryPlans,
		CreatedAt:      testBase,
	}
}

func apply(t *testing.T, l *Lifecycle, recs ...types.ExecutionRecord) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, l.OnExecutionPersisted(context.Background(), rec))
	}
}

// persistAndApply appends records to the store and feeds them to the engine,
// mirroring the production order (persist first, then notify).
func persistAndApply(t *testing.T, b *fakeBackend, l *Lifecycle, recs ...types.ExecutionRecord) {
	t.Helper()
	for _, rec := range recs {
		b.mu.Lock()
		b.execs = append(b.execs, rec)
		b.mu.Unlock()
		require.NoError(t, l.OnExecutionPersisted(context.Background(), rec))
	}
}

func TestLifecycle_LinearSuccess(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	persistAndApply(t, b, l,
		planRecord("P1", "e1", types.ExecutionSucceeded, []string{"T1"}, testBase.Add(time.Second)))
	r := b.run(t, testTenant, testLifetime)
	assert.Equal(t, StatusRunning, r.Status)
	require.NotNil(t, r.StartedAt)
	assert.Equal(t, testBase.Add(time.Second), *r.StartedAt)

	persistAndApply(t, b, l,
		taskRecord("T1", "e2", types.ExecutionSucceeded, testBase.Add(2*time.Second)))
	assert.Equal(t, StatusRunning, b.run(t, testTenant, testLifetime).Status)

	persistAndApply(t, b, l,
		planRecord("P2", "e3", types.ExecutionSucceeded, nil, testBase.Add(3*time.Second)))
	r = b.run(t, testTenant, testLifetime)
	assert.Equal(t, StatusSucceeded, r.Status)
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, testBase.Add(3*time.Second), *r.CompletedAt)
	assert.Empty(t, r.ErrorMessage)
}

func TestLifecycle_DeclaredButUnexecutedSuccessor(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	// P1 declared T1 but T1 never reported: the run must stay RUNNING.
	persistAndApply(t, b, l,
		planRecord("P1", "e1", types.ExecutionSucceeded, []string{"T1"}, testBase))
	assert.Equal(t, StatusRunning, b.run(t, testTenant, testLifetime).Status)
}

func TestLifecycle_FanOutCompletes(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(fanOutTestGraph(t))
	b.addRun(newQueuedRun("PA"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	persistAndApply(t, b, l,
		planRecord("PA", "e1", types.ExecutionSucceeded, []string{"T1A", "T1B"}, testBase.Add(1*time.Second)),
		taskRecord("T1A", "e2", types.ExecutionSucceeded, testBase.Add(2*time.Second)),
		taskRecord("T1B", "e3", types.ExecutionSucceeded, testBase.Add(3*time.Second)),
		planRecord("PB", "e4", types.ExecutionSucceeded, []string{"T2"}, testBase.Add(4*time.Second)),
		taskRecord("T2", "e5", types.ExecutionSucceeded, testBase.Add(5*time.Second)))

	assert.Equal(t, StatusSucceeded, b.run(t, testTenant, testLifetime).Status)
}

func TestLifecycle_FailureFastPath(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	failed := planRecord("P1", "e1", types.ExecutionFailed, nil, testBase.Add(time.Second))
	failed.ErrorMessage = "plan blew up"
	persistAndApply(t, b, l, failed)

	r := b.run(t, testTenant, testLifetime)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "plan blew up", r.ErrorMessage)
	require.NotNil(t, r.CompletedAt)
	require.NotNil(t, r.StartedAt)
}

func TestLifecycle_FailureWithEmptyMessageGetsDefault(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	persistAndApply(t, b, l, taskRecord("T1", "e1", types.ExecutionFailed, testBase))

	assert.Equal(t, "Execution failed", b.run(t, testTenant, testLifetime).ErrorMessage)
}

func TestLifecycle_FailureMessageTruncated(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{MaxErrorLength: 10})

	failed := taskRecord("T1", "e1", types.ExecutionFailed, testBase)
	failed.ErrorMessage = strings.Repeat("x", 50)
	persistAndApply(t, b, l, failed)

	assert.Equal(t, strings.Repeat("x", 10), b.run(t, testTenant, testLifetime).ErrorMessage)
}

func TestLifecycle_TerminalRunsNeverChange(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	failed := planRecord("P1", "e1", types.ExecutionFailed, nil, testBase.Add(time.Second))
	failed.ErrorMessage = "first failure"
	persistAndApply(t, b, l, failed)
	before := b.run(t, testTenant, testLifetime)

	// A stray success for a task the failed plan once declared must be a
	// no-op; so must a second, different failure.
	persistAndApply(t, b, l,
		taskRecord("T1", "e2", types.ExecutionSucceeded, testBase.Add(time.Minute)))
	laterFailure := taskRecord("T1", "e3", types.ExecutionFailed, testBase.Add(2*time.Minute))
	laterFailure.ErrorMessage = "noise"
	persistAndApply(t, b, l, laterFailure)

	after := b.run(t, testTenant, testLifetime)
	assert.Equal(t, StatusFailed, after.Status)
	assert.Equal(t, before.ErrorMessage, after.ErrorMessage)
	assert.Equal(t, *before.CompletedAt, *after.CompletedAt)
}

func TestLifecycle_PlaceholderRunCreated(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	// No run record: evidence arrives before the run's creation is visible.
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	persistAndApply(t, b, l,
		planRecord("P1", "e1", types.ExecutionSucceeded, []string{"T1"}, testBase))
	r := b.run(t, testTenant, testLifetime)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Equal(t, testBase, r.CreatedAt)
	assert.Empty(t, r.EntryPlanNames)

	// The placeholder then proceeds through normal completion detection,
	// falling back to the graph's entry set.
	persistAndApply(t, b, l,
		taskRecord("T1", "e2", types.ExecutionSucceeded, testBase.Add(time.Second)),
		planRecord("P2", "e3", types.ExecutionSucceeded, nil, testBase.Add(2*time.Second)))
	assert.Equal(t, StatusSucceeded, b.run(t, testTenant, testLifetime).Status)
}

func TestLifecycle_MissingHeaderContextSkipped(t *testing.T) {
	b := newFakeBackend()
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	rec := planRecord("P1", "e1", types.ExecutionSucceeded, nil, testBase)
	rec.Header.LifetimeID = ""
	apply(t, l, rec)

	assert.Empty(t, b.runs)
}

func TestLifecycle_MissingGraphIsNotComplete(t *testing.T) {
	b := newFakeBackend()
	// Graph intentionally absent: a transient lookup miss must leave the run
	// RUNNING rather than failing or completing it.
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	persistAndApply(t, b, l,
		planRecord("P1", "e1", types.ExecutionSucceeded, nil, testBase))
	assert.Equal(t, StatusRunning, b.run(t, testTenant, testLifetime).Status)
}

func TestLifecycle_EntryPlanSnapshotRespected(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	// The submission snapshot includes an entry plan that never reports:
	// completion must not trigger even when the graph's closure is satisfied.
	r := newQueuedRun("P1", "PExtra")
	b.addRun(r)
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	persistAndApply(t, b, l,
		planRecord("P1", "e1", types.ExecutionSucceeded, []string{"T1"}, testBase),
		taskRecord("T1", "e2", types.ExecutionSucceeded, testBase.Add(time.Second)),
		planRecord("P2", "e3", types.ExecutionSucceeded, nil, testBase.Add(2*time.Second)))

	assert.Equal(t, StatusRunning, b.run(t, testTenant, testLifetime).Status)
}

func TestLifecycle_NextTaskNameOutsideGraphIgnoredForCompletion(t *testing.T) {
	b := newFakeBackend()
	b.addGraph(linearTestGraph(t))
	b.addRun(newQueuedRun("P1"))
	l := NewLifecycle(b, b, b, LifecycleOptions{})

	// P1 declared a task that does not exist; completion skips it instead of
	// waiting forever.
	persistAndApply(t, b, l,
		planRecord("P1", "e1", types.ExecutionSucceeded, []string{"T1", "ghost"}, testBase),
		taskRecord("T1", "e2", types.ExecutionSucceeded, testBase.Add(time.Second)),
		planRecord("P2", "e3", types.ExecutionSucceeded, nil, testBase.Add(2*time.Second)))

	assert.Equal(t, StatusSucceeded, b.run(t, testTenant, testLifetime).Status)
}
