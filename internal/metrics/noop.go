package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncValidation is a no-op.
func (n *NoopRecorder) IncValidation(result string) {}

// ObserveValidationDuration is a no-op.
func (n *NoopRecorder) ObserveValidationDuration(duration time.Duration) {}

// IncQuotaRejected is a no-op.
func (n *NoopRecorder) IncQuotaRejected(reason string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited(endpoint string) {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(reason string) {}

// IncUsageRecord is a no-op.
func (n *NoopRecorder) IncUsageRecord(status string) {}
