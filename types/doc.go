// Package types defines the shared domain types of the agentgraph runtime:
// node kinds, execution records, node input events, and the structured error
// type used across packages.
package types
