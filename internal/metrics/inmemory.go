package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ValidationsValid        uint64
	ValidationsInvalid      uint64
	ValidationDurationCount uint64
	ValidationDurationNs    int64
	QuotaRejected           map[string]uint64
	RateLimited             map[string]uint64
	AuthFailures            map[string]uint64
	UsageRecords            map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests and the
// metrics endpoint.
type InMemoryRecorder struct {
	validationsValid        uint64
	validationsInvalid      uint64
	validationDurationCount uint64
	validationDurationNs    int64

	mu            sync.Mutex
	quotaRejected map[string]uint64
	rateLimited   map[string]uint64
	authFailures  map[string]uint64
	usageRecords  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		quotaRejected: make(map[string]uint64),
		rateLimited:   make(map[string]uint64),
		authFailures:  make(map[string]uint64),
		usageRecords:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ValidationsValid:        atomic.LoadUint64(&m.validationsValid),
		ValidationsInvalid:      atomic.LoadUint64(&m.validationsInvalid),
		ValidationDurationCount: atomic.LoadUint64(&m.validationDurationCount),
		ValidationDurationNs:    atomic.LoadInt64(&m.validationDurationNs),
		QuotaRejected:           copyCounts(m.quotaRejected),
		RateLimited:             copyCounts(m.rateLimited),
		AuthFailures:            copyCounts(m.authFailures),
		UsageRecords:            copyCounts(m.usageRecords),
	}
}

// IncValidation increments the verdict counter for a result.
func (m *InMemoryRecorder) IncValidation(result string) {
	if result == "valid" {
		atomic.AddUint64(&m.validationsValid, 1)
		return
	}
	atomic.AddUint64(&m.validationsInvalid, 1)
}

// ObserveValidationDuration records how long one validation took.
func (m *InMemoryRecorder) ObserveValidationDuration(duration time.Duration) {
	atomic.AddUint64(&m.validationDurationCount, 1)
	atomic.AddInt64(&m.validationDurationNs, duration.Nanoseconds())
}

// IncQuotaRejected increments the quota rejection counter for a reason.
func (m *InMemoryRecorder) IncQuotaRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotaRejected[reason]++
}

// IncRateLimited increments the rate limit rejection counter for an endpoint.
func (m *InMemoryRecorder) IncRateLimited(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited[endpoint]++
}

// IncAuthFailure increments the auth failure counter for a reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailures[reason]++
}

// IncUsageRecord increments the usage pipeline counter for a status.
func (m *InMemoryRecorder) IncUsageRecord(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageRecords[status]++
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
