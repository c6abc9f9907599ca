// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Validation metrics
	IncValidation(result string) // result: "valid" or "invalid"
	ObserveValidationDuration(duration time.Duration)

	// Admission metrics
	IncQuotaRejected(reason string) // reason: "exceeded" or "insufficient"
	IncRateLimited(endpoint string)
	IncAuthFailure(reason string) // reason: "missing_key", "invalid_key", "invalid_format"

	// Usage pipeline metrics
	IncUsageRecord(status string) // status: "queued", "written", "dropped", "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
