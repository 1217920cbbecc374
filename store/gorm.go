// Package store persists graphs, runs, and execution records. The gorm
// implementation targets PostgreSQL in production and sqlite in tests;
// an in-memory implementation backs unit tests and local development.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/run"
	"github.com/eigloo/agentgraph/types"
)

// Migrate creates or updates the store's tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&graphRow{}, &runRow{}, &executionRow{})
}

// GormStore is the database-backed store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle. The caller owns migration and
// connection lifecycle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SaveGraph creates or replaces the run's graph keyed by (tenant, graph ID).
func (s *GormStore) SaveGraph(ctx context.Context, g *graph.AgentGraph) error {
	row, err := graphToRow(g)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "graph_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "status", "definition", "updated_at"}),
	}).Create(&row).Error
}

// GetGraph resolves a graph by (tenantID, graphID), rebuilding and
// re-validating its topology from the stored definition.
func (s *GormStore) GetGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	var row graphRow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND graph_id = ?", tenantID, graphID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, run.ErrGraphNotFound
		}
		return nil, err
	}
	return graphFromRow(row)
}

// ListGraphs returns every graph owned by the tenant.
func (s *GormStore) ListGraphs(ctx context.Context, tenantID string) ([]*graph.AgentGraph, error) {
	var rows []graphRow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("graph_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	graphs := make([]*graph.AgentGraph, 0, len(rows))
	for _, row := range rows {
		g, err := graphFromRow(row)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// SaveRun creates or updates a run keyed by (tenant, lifetime ID). The
// single-row upsert is the unit of atomicity for concurrent lifecycle
// handlers of the same run.
func (s *GormStore) SaveRun(ctx context.Context, r *run.GraphRun) error {
	row, err := runToRow(r)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "lifetime_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "error_message", "started_at", "completed_at", "updated_at",
		}),
	}).Create(&row).Error
}

// GetRun resolves a run by (tenantID, lifetimeID).
func (s *GormStore) GetRun(ctx context.Context, tenantID, lifetimeID string) (*run.GraphRun, error) {
	var row runRow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND lifetime_id = ?", tenantID, lifetimeID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, run.ErrRunNotFound
		}
		return nil, err
	}
	return runFromRow(row)
}

// ListRuns returns the tenant's runs for one graph, newest first.
func (s *GormStore) ListRuns(ctx context.Context, tenantID, graphID string) ([]*run.GraphRun, error) {
	var rows []runRow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND graph_id = ?", tenantID, graphID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	runs := make([]*run.GraphRun, 0, len(rows))
	for _, row := range rows {
		r, err := runFromRow(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// SaveExecution appends one execution record. Records are append-only
// evidence and are never updated.
func (s *GormStore) SaveExecution(ctx context.Context, rec types.ExecutionRecord) error {
	row, err := executionToRow(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// ListExecutions returns every execution record for the run in creation
// order.
func (s *GormStore) ListExecutions(ctx context.Context, tenantID, graphID, lifetimeID string) ([]types.ExecutionRecord, error) {
	var rows []executionRow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND graph_id = ? AND lifetime_id = ?", tenantID, graphID, lifetimeID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]types.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := executionFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
