// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Rounds completed and round duration
//   - Fetch attempts by result (ok, transient, rate_limited, permanent, malformed)
//   - Failure records by stage
//   - Quote rows written to artifacts
package metrics
