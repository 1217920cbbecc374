package bus

import (
	"context"
	"sync"

	"github.com/eigloo/agentgraph/types"
)

// MemoryBus is an in-process bus for tests and single-node deployments.
type MemoryBus struct {
	mu         sync.RWMutex
	planInputs map[string][]types.PlanInput
	taskInputs map[string][]types.TaskInput
}

// NewMemoryBus returns an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		planInputs: make(map[string][]types.PlanInput),
		taskInputs: make(map[string][]types.TaskInput),
	}
}

// PublishPlanInput appends a plan input to the tenant's topic.
func (b *MemoryBus) PublishPlanInput(_ context.Context, tenantID string, in types.PlanInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.planInputs[tenantID] = append(b.planInputs[tenantID], in)
	return nil
}

// PublishTaskInput appends a task input to the tenant's topic.
func (b *MemoryBus) PublishTaskInput(_ context.Context, tenantID string, in types.TaskInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taskInputs[tenantID] = append(b.taskInputs[tenantID], in)
	return nil
}

// PlanInputs returns every plan input published for the tenant so far.
func (b *MemoryBus) PlanInputs(tenantID string) []types.PlanInput {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]types.PlanInput(nil), b.planInputs[tenantID]...)
}

// TaskInputs returns every task input published for the tenant so far.
func (b *MemoryBus) TaskInputs(tenantID string) []types.TaskInput {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]types.TaskInput(nil), b.taskInputs[tenantID]...)
}
