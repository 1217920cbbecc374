package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/run"
)

type countingLookup struct {
	g     *graph.AgentGraph
	calls int
}

func (c *countingLookup) GetGraph(_ context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	c.calls++
	if c.g == nil || c.g.TenantID() != tenantID || c.g.ID() != graphID {
		return nil, run.ErrGraphNotFound
	}
	return c.g, nil
}

func testGraph(t *testing.T) *graph.AgentGraph {
	t.Helper()
	e1, err := graph.PlanToTask("P1", "T1")
	require.NoError(t, err)
	e2, err := graph.TaskToPlan("T1", "P2")
	require.NoError(t, err)
	g, err := graph.New("acme", "g-1", "linear",
		map[string]graph.Plan{"P1": {Name: "P1"}, "P2": {Name: "P2"}},
		map[string]graph.Task{"T1": {Name: "T1"}},
		[]graph.GraphEdge{e1, e2})
	require.NoError(t, err)
	return g
}

func setup(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *countingLookup, *GraphCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lookup := &countingLookup{g: testGraph(t)}
	return mr, lookup, NewGraphCache(client, lookup, Options{TTL: ttl})
}

func TestGraphCacheHit(t *testing.T) {
	_, lookup, c := setup(t, time.Minute)
	ctx := context.Background()

	g, err := c.GetGraph(ctx, "acme", "g-1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", g.ID())
	assert.Equal(t, 1, lookup.calls)

	// second read served from cache
	g, err = c.GetGraph(ctx, "acme", "g-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, g.DownstreamTasks("P1"))
	assert.Equal(t, 1, lookup.calls)
}

func TestGraphCacheExpiry(t *testing.T) {
	mr, lookup, c := setup(t, time.Minute)
	ctx := context.Background()

	_, err := c.GetGraph(ctx, "acme", "g-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = c.GetGraph(ctx, "acme", "g-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lookup.calls)
}

func TestGraphCacheInvalidate(t *testing.T) {
	_, lookup, c := setup(t, time.Minute)
	ctx := context.Background()

	_, err := c.GetGraph(ctx, "acme", "g-1")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "acme", "g-1"))

	_, err = c.GetGraph(ctx, "acme", "g-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lookup.calls)
}

func TestGraphCacheDisabled(t *testing.T) {
	_, lookup, c := setup(t, 0)
	ctx := context.Background()

	for range 3 {
		_, err := c.GetGraph(ctx, "acme", "g-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, lookup.calls)
}

func TestGraphCacheMissPropagatesNotFound(t *testing.T) {
	_, _, c := setup(t, time.Minute)
	_, err := c.GetGraph(context.Background(), "acme", "missing")
	assert.ErrorIs(t, err, run.ErrGraphNotFound)
}

func TestGraphCacheFallsBackOnRedisFailure(t *testing.T) {
	mr, lookup, c := setup(t, time.Minute)
	mr.Close()

	g, err := c.GetGraph(context.Background(), "acme", "g-1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", g.ID())
	assert.Equal(t, 1, lookup.calls)
}
