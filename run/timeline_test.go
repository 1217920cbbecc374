package run

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigloo/agentgraph/types"
)

func TestTimeline_MergedAndOrdered(t *testing.T) {
	b := newFakeBackend()
	started := testBase.Add(time.Second)
	r := newQueuedRun("P1")
	r.Status = StatusRunning
	r.StartedAt = &started
	b.addRun(r)

	// Persist records out of creation order: the timeline must sort them.
	b.execs = append(b.execs,
		taskRecord("T1", "e2", types.ExecutionSucceeded, testBase.Add(2*time.Second)),
		planRecord("P1", "e1", types.ExecutionSucceeded, []string{"T1"}, testBase.Add(1*time.Second)),
		planRecord("P2", "e3", types.ExecutionFailed, nil, testBase.Add(3*time.Second)))

	svc := NewTimelineService(b, b, nil)
	timeline, err := svc.Timeline(context.Background(), testTenant, testGraphID, testLifetime)
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, timeline.Status)
	assert.Equal(t, []string{"P1"}, timeline.EntryPlanNames)
	assert.Equal(t, 2, timeline.PlanExecutions)
	assert.Equal(t, 1, timeline.TaskExecutions)

	require.Len(t, timeline.Events, 3)
	assert.Equal(t, "P1", timeline.Events[0].NodeName)
	assert.Equal(t, EventTypePlanExecution, timeline.Events[0].EventType)
	assert.Equal(t, []string{"T1"}, timeline.Events[0].NextTaskNames)
	assert.Equal(t, "T1", timeline.Events[1].NodeName)
	assert.Equal(t, EventTypeTaskExecution, timeline.Events[1].EventType)
	assert.Equal(t, "P2", timeline.Events[2].NodeName)
	assert.Equal(t, types.ExecutionFailed, timeline.Events[2].Status)
}

func TestTimeline_UnknownRun(t *testing.T) {
	b := newFakeBackend()
	svc := NewTimelineService(b, b, nil)

	_, err := svc.Timeline(context.Background(), testTenant, testGraphID, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestTimeline_GraphMismatch(t *testing.T) {
	b := newFakeBackend()
	b.addRun(newQueuedRun("P1"))
	svc := NewTimelineService(b, b, nil)

	_, err := svc.Timeline(context.Background(), testTenant, "other-graph", testLifetime)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}
