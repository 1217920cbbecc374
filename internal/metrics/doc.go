// Package metrics provides internal Prometheus metrics collection for the
// run lifecycle engine and the routing pipeline. This package is internal and
// should not be imported by external projects.
package metrics
