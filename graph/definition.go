package graph

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition is the serializable form of an agent graph, used by the graph
// lookup wire format, the store, and the graph-lookup cache. It round-trips
// through New, so a decoded definition is re-validated before use.
type Definition struct {
	TenantID string      `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Status   Status      `json:"status,omitempty" yaml:"status,omitempty"`
	Plans    []Plan      `json:"plans" yaml:"plans"`
	Tasks    []Task      `json:"tasks" yaml:"tasks"`
	Edges    []GraphEdge `json:"edges" yaml:"edges"`
}

// Definition returns the serializable form of the graph. Node order follows
// the edge list for edges and is unspecified for nodes.
func (g *AgentGraph) Definition() Definition {
	def := Definition{
		TenantID: g.tenantID,
		ID:       g.id,
		Name:     g.name,
		Status:   g.status,
		Plans:    make([]Plan, 0, len(g.plans)),
		Tasks:    make([]Task, 0, len(g.tasks)),
		Edges:    g.Edges(),
	}
	for _, p := range g.plans {
		def.Plans = append(def.Plans, p)
	}
	for _, t := range g.tasks {
		def.Tasks = append(def.Tasks, t)
	}
	return def
}

// Build validates the definition and constructs the immutable graph.
func (d Definition) Build() (*AgentGraph, error) {
	plans := make(map[string]Plan, len(d.Plans))
	for _, p := range d.Plans {
		plans[p.Name] = p
	}
	tasks := make(map[string]Task, len(d.Tasks))
	for _, t := range d.Tasks {
		tasks[t.Name] = t
	}
	g, err := New(d.TenantID, d.ID, d.Name, plans, tasks, d.Edges)
	if err != nil {
		return nil, err
	}
	if d.Status != "" {
		g = g.WithStatus(d.Status)
	}
	return g, nil
}

// ToJSON serializes the definition to indented JSON.
func (d Definition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal graph definition to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML serializes the definition to YAML.
func (d Definition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal graph definition to YAML: %w", err)
	}
	return string(data), nil
}

// DefinitionFromJSON decodes a definition from JSON.
func DefinitionFromJSON(data []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("failed to unmarshal graph definition: %w", err)
	}
	return def, nil
}

// DefinitionFromYAML decodes a definition from YAML.
func DefinitionFromYAML(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("failed to unmarshal graph definition: %w", err)
	}
	return def, nil
}
