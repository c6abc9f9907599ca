package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/verimail/verimail/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "verimail_validations_total{result=\"valid\"} %d\n", snap.ValidationsValid)
	writeMetric(w, "verimail_validations_total{result=\"invalid\"} %d\n", snap.ValidationsInvalid)
	writeMetric(w, "verimail_validation_duration_seconds_count %d\n", snap.ValidationDurationCount)
	writeMetric(w, "verimail_validation_duration_seconds_sum %.6f\n", float64(snap.ValidationDurationNs)/1e9)

	writeLabeled(w, "verimail_quota_rejected_total", "reason", snap.QuotaRejected)
	writeLabeled(w, "verimail_rate_limited_total", "endpoint", snap.RateLimited)
	writeLabeled(w, "verimail_auth_failures_total", "reason", snap.AuthFailures)
	writeLabeled(w, "verimail_usage_records_total", "status", snap.UsageRecords)
}

// writeLabeled writes one metric line per label value, sorted for a
// stable exposition order.
func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
