package run

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/types"
)

// TimelineEvent is one node execution in a run's timeline read model.
type TimelineEvent struct {
	EventType     string                `json:"event_type"`
	NodeName      string                `json:"node_name"`
	ExecID        string                `json:"exec_id"`
	Status        types.ExecutionStatus `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	ErrorMessage  string                `json:"error_message,omitempty"`
	NextTaskNames []string              `json:"next_task_names,omitempty"`
}

// Event type tags on TimelineEvent.
const (
	EventTypePlanExecution = "PLAN_EXECUTION"
	EventTypeTaskExecution = "TASK_EXECUTION"
)

// Timeline is the merged, time-ordered view of one run: the run projection
// plus every plan and task execution observed so far.
type Timeline struct {
	TenantID       string          `json:"tenant_id"`
	GraphID        string          `json:"graph_id"`
	LifetimeID     string          `json:"lifetime_id"`
	Status         Status          `json:"status"`
	EntryPlanNames []string        `json:"entry_plan_names,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	PlanExecutions int             `json:"plan_executions"`
	TaskExecutions int             `json:"task_executions"`
	Events         []TimelineEvent `json:"events"`
}

// TimelineService is the read-model over runs and their execution records.
type TimelineService struct {
	runs   RunStore
	execs  ExecutionStore
	logger *zap.Logger
}

// NewTimelineService creates a timeline read model.
func NewTimelineService(runs RunStore, execs ExecutionStore, logger *zap.Logger) *TimelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimelineService{
		runs:   runs,
		execs:  execs,
		logger: logger.With(zap.String("component", "run_timeline")),
	}
}

// Timeline assembles the merged execution timeline for one run. It fails with
// ErrRunNotFound for unknown runs and an invalid-request error when graphID
// does not match the run's graph.
func (s *TimelineService) Timeline(ctx context.Context, tenantID, graphID, lifetimeID string) (*Timeline, error) {
	r, err := s.runs.GetRun(ctx, tenantID, lifetimeID)
	if err != nil {
		return nil, err
	}
	if r.GraphID != graphID {
		return nil, types.NewErrorf(types.ErrInvalidRequest,
			"graph %q does not match run %q", graphID, lifetimeID)
	}

	records, err := s.execs.ListExecutions(ctx, tenantID, graphID, lifetimeID)
	if err != nil {
		return nil, fmt.Errorf("listing executions for run %s: %w", lifetimeID, err)
	}

	timeline := &Timeline{
		TenantID:       r.TenantID,
		GraphID:        r.GraphID,
		LifetimeID:     r.LifetimeID,
		Status:         r.Status,
		EntryPlanNames: append([]string(nil), r.EntryPlanNames...),
		ErrorMessage:   r.ErrorMessage,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Events:         make([]TimelineEvent, 0, len(records)),
	}

	for _, rec := range records {
		event := TimelineEvent{
			NodeName:     rec.Header.NodeName,
			ExecID:       rec.Header.ExecID,
			Status:       rec.Header.Status,
			CreatedAt:    rec.CreatedAt,
			ErrorMessage: rec.ErrorMessage,
		}
		switch rec.Kind {
		case types.NodeKindPlan:
			event.EventType = EventTypePlanExecution
			event.NextTaskNames = append([]string(nil), rec.NextTaskNames...)
			timeline.PlanExecutions++
		case types.NodeKindTask:
			event.EventType = EventTypeTaskExecution
			timeline.TaskExecutions++
		default:
			s.logger.Warn("skipping execution record with unknown node kind",
				zap.String("lifetime_id", lifetimeID),
				zap.String("node_name", rec.Header.NodeName),
				zap.String("kind", string(rec.Kind)))
			continue
		}
		timeline.Events = append(timeline.Events, event)
	}

	sort.SliceStable(timeline.Events, func(i, j int) bool {
		return timeline.Events[i].CreatedAt.Before(timeline.Events[j].CreatedAt)
	})

	return timeline, nil
}
