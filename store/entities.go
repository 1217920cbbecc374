package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/run"
	"github.com/eigloo/agentgraph/types"
)

// graphRow persists one agent graph. The full topology is stored as a
// serialized definition and re-validated on load; the flattened columns
// exist for querying only.
type graphRow struct {
	ID         uint      `gorm:"primaryKey"`
	TenantID   string    `gorm:"size:100;not null;uniqueIndex:idx_graphs_tenant_graph"`
	GraphID    string    `gorm:"size:100;not null;uniqueIndex:idx_graphs_tenant_graph"`
	Name       string    `gorm:"size:255;not null"`
	Status     string    `gorm:"size:20;not null"`
	Definition string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (graphRow) TableName() string { return "agent_graphs" }

// runRow persists one graph run.
type runRow struct {
	ID             uint      `gorm:"primaryKey"`
	TenantID       string    `gorm:"size:100;not null;uniqueIndex:idx_runs_tenant_lifetime"`
	LifetimeID     string    `gorm:"size:100;not null;uniqueIndex:idx_runs_tenant_lifetime"`
	GraphID        string    `gorm:"size:100;not null;index:idx_runs_graph"`
	Status         string    `gorm:"size:20;not null"`
	EntryPlanNames string    `gorm:"type:text"`
	ErrorMessage   string    `gorm:"size:1000"`
	CreatedAt      time.Time `gorm:"not null"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (runRow) TableName() string { return "graph_runs" }

// executionRow persists one append-only execution record.
type executionRow struct {
	ID            uint      `gorm:"primaryKey"`
	TenantID      string    `gorm:"size:100;not null;index:idx_execs_run"`
	GraphID       string    `gorm:"size:100;not null;index:idx_execs_run"`
	LifetimeID    string    `gorm:"size:100;not null;index:idx_execs_run"`
	NodeName      string    `gorm:"size:255;not null"`
	ExecID        string    `gorm:"size:100;not null"`
	Kind          string    `gorm:"size:10;not null"`
	Status        string    `gorm:"size:20;not null"`
	ErrorMessage  string    `gorm:"type:text"`
	NextTaskNames string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (executionRow) TableName() string { return "node_executions" }

func graphToRow(g *graph.AgentGraph) (graphRow, error) {
	def, err := g.Definition().ToJSON()
	if err != nil {
		return graphRow{}, err
	}
	return graphRow{
		TenantID:   g.TenantID(),
		GraphID:    g.ID(),
		Name:       g.Name(),
		Status:     string(g.Status()),
		Definition: def,
	}, nil
}

func graphFromRow(row graphRow) (*graph.AgentGraph, error) {
	def, err := graph.DefinitionFromJSON([]byte(row.Definition))
	if err != nil {
		return nil, fmt.Errorf("decode graph %s definition: %w", row.GraphID, err)
	}
	g, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("rebuild graph %s: %w", row.GraphID, err)
	}
	return g, nil
}

func runToRow(r *run.GraphRun) (runRow, error) {
	names, err := encodeNames(r.EntryPlanNames)
	if err != nil {
		return runRow{}, fmt.Errorf("encode entry plans for run %s: %w", r.LifetimeID, err)
	}
	return runRow{
		TenantID:       r.TenantID,
		LifetimeID:     r.LifetimeID,
		GraphID:        r.GraphID,
		Status:         string(r.Status),
		EntryPlanNames: names,
		ErrorMessage:   r.ErrorMessage,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
	}, nil
}

func runFromRow(row runRow) (*run.GraphRun, error) {
	names, err := decodeNames(row.EntryPlanNames)
	if err != nil {
		return nil, fmt.Errorf("decode entry plans for run %s: %w", row.LifetimeID, err)
	}
	return &run.GraphRun{
		LifetimeID:     row.LifetimeID,
		TenantID:       row.TenantID,
		GraphID:        row.GraphID,
		Status:         run.Status(row.Status),
		EntryPlanNames: names,
		ErrorMessage:   row.ErrorMessage,
		CreatedAt:      row.CreatedAt,
		StartedAt:      row.StartedAt,
		CompletedAt:    row.CompletedAt,
	}, nil
}

func executionToRow(rec types.ExecutionRecord) (executionRow, error) {
	names, err := encodeNames(rec.NextTaskNames)
	if err != nil {
		return executionRow{}, fmt.Errorf("encode next tasks for exec %s: %w", rec.Header.ExecID, err)
	}
	return executionRow{
		TenantID:      rec.Header.TenantID,
		GraphID:       rec.Header.GraphID,
		LifetimeID:    rec.Header.LifetimeID,
		NodeName:      rec.Header.NodeName,
		ExecID:        rec.Header.ExecID,
		Kind:          string(rec.Kind),
		Status:        string(rec.Header.Status),
		ErrorMessage:  rec.ErrorMessage,
		NextTaskNames: names,
		CreatedAt:     rec.CreatedAt,
	}, nil
}

func executionFromRow(row executionRow) (types.ExecutionRecord, error) {
	names, err := decodeNames(row.NextTaskNames)
	if err != nil {
		return types.ExecutionRecord{}, fmt.Errorf("decode next tasks for exec %s: %w", row.ExecID, err)
	}
	return types.ExecutionRecord{
		Header: types.ExecutionHeader{
			TenantID:   row.TenantID,
			GraphID:    row.GraphID,
			LifetimeID: row.LifetimeID,
			NodeName:   row.NodeName,
			ExecID:     row.ExecID,
			Status:     types.ExecutionStatus(row.Status),
		},
		Kind:          types.NodeKind(row.Kind),
		CreatedAt:     row.CreatedAt,
		ErrorMessage:  row.ErrorMessage,
		NextTaskNames: names,
	}, nil
}

func encodeNames(names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeNames(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, err
	}
	return names, nil
}
