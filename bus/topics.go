// Package bus delivers node input events to the executors. Topics are
// partitioned per tenant; the Redis implementation maps each topic to a
// stream, and the in-memory implementation backs tests and single
// process deployments.
package bus

// DefaultTopicPrefix namespaces every stream key.
const DefaultTopicPrefix = "agentgraph"

// TopicNames derives the per-tenant topic names.
type TopicNames struct {
	Prefix string
}

// NewTopicNames returns topic naming with the given prefix, falling
// back to DefaultTopicPrefix when blank.
func NewTopicNames(prefix string) TopicNames {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return TopicNames{Prefix: prefix}
}

// PlanInputs is the topic carrying plan input events for one tenant.
func (t TopicNames) PlanInputs(tenantID string) string {
	return t.Prefix + ":" + tenantID + ":plan-inputs"
}

// TaskInputs is the topic carrying task input events for one tenant.
func (t TopicNames) TaskInputs(tenantID string) string {
	return t.Prefix + ":" + tenantID + ":task-inputs"
}
