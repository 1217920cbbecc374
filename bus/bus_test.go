package bus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigloo/agentgraph/types"
)

func setupRedisBus(t *testing.T, opts RedisBusOptions) *RedisBus {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBus(client, opts)
}

func TestTopicNames(t *testing.T) {
	topics := NewTopicNames("")
	assert.Equal(t, "agentgraph:acme:plan-inputs", topics.PlanInputs("acme"))
	assert.Equal(t, "agentgraph:acme:task-inputs", topics.TaskInputs("acme"))

	custom := NewTopicNames("staging")
	assert.Equal(t, "staging:acme:plan-inputs", custom.PlanInputs("acme"))
}

func TestRedisBusRoundTrip(t *testing.T) {
	b := setupRedisBus(t, RedisBusOptions{})
	ctx := context.Background()

	require.NoError(t, b.Ping(ctx))

	rec := types.ExecutionRecord{
		Header: types.ExecutionHeader{
			TenantID:   "acme",
			GraphID:    "g-1",
			LifetimeID: "lt-1",
			NodeName:   "T1",
			ExecID:     "e1",
			Status:     types.ExecutionSucceeded,
		},
		Kind: types.NodeKindTask,
	}
	require.NoError(t, b.PublishPlanInput(ctx, "acme", types.PlanInput{
		InputID:        "in-1",
		PlanName:       "P2",
		GraphID:        "g-1",
		LifetimeID:     "lt-1",
		TaskExecutions: []types.ExecutionRecord{rec},
	}))
	require.NoError(t, b.PublishTaskInput(ctx, "acme", types.TaskInput{
		InputID:    "in-2",
		TaskName:   "T1",
		GraphID:    "g-1",
		LifetimeID: "lt-1",
	}))

	plans, _, err := b.ReadPlanInputs(ctx, "acme", "", 10)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "P2", plans[0].PlanName)
	require.Len(t, plans[0].TaskExecutions, 1)
	assert.Equal(t, "T1", plans[0].TaskExecutions[0].Header.NodeName)

	tasks, _, err := b.ReadTaskInputs(ctx, "acme", "", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "T1", tasks[0].TaskName)
}

func TestRedisBusTenantIsolation(t *testing.T) {
	b := setupRedisBus(t, RedisBusOptions{})
	ctx := context.Background()

	require.NoError(t, b.PublishTaskInput(ctx, "acme", types.TaskInput{
		InputID: "in-1", TaskName: "T1", GraphID: "g-1", LifetimeID: "lt-1",
	}))

	tasks, _, err := b.ReadTaskInputs(ctx, "other", "", 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRedisBusResumeFromLastID(t *testing.T) {
	b := setupRedisBus(t, RedisBusOptions{})
	ctx := context.Background()

	for _, id := range []string{"in-1", "in-2", "in-3"} {
		require.NoError(t, b.PublishTaskInput(ctx, "acme", types.TaskInput{
			InputID: id, TaskName: "T1", GraphID: "g-1", LifetimeID: "lt-1",
		}))
	}

	first, lastID, err := b.ReadTaskInputs(ctx, "acme", "", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// XRANGE is inclusive of fromID, so resuming re-reads the boundary
	rest, _, err := b.ReadTaskInputs(ctx, "acme", lastID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, rest)
	assert.Equal(t, "in-3", rest[len(rest)-1].InputID)
}

func TestMemoryBus(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	require.NoError(t, b.PublishPlanInput(ctx, "acme", types.PlanInput{InputID: "p-1", PlanName: "P1"}))
	require.NoError(t, b.PublishTaskInput(ctx, "acme", types.TaskInput{InputID: "t-1", TaskName: "T1"}))
	require.NoError(t, b.PublishTaskInput(ctx, "other", types.TaskInput{InputID: "t-2", TaskName: "T9"}))

	require.Len(t, b.PlanInputs("acme"), 1)
	require.Len(t, b.TaskInputs("acme"), 1)
	assert.Equal(t, "T1", b.TaskInputs("acme")[0].TaskName)
	assert.Empty(t, b.PlanInputs("other"))
	require.Len(t, b.TaskInputs("other"), 1)
}
