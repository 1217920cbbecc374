// Package guardrails implements the pluggable approval gate evaluated before
// a completed execution is routed to downstream nodes. Guardrails are
// composed into a priority-ordered chain; any rejection stops the routing of
// that execution, never the pipeline itself. An abort registry lets an
// operator cut off all further routing for one run.
package guardrails
