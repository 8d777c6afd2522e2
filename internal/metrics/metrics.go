package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	auditRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdeck_audit_entries_recorded_total",
		Help: "Total number of audit entries persisted",
	})
	auditDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdeck_audit_entries_dropped_total",
		Help: "Total number of audit entries dropped because the queue was full",
	})
	auditFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdeck_audit_write_failures_total",
		Help: "Total number of audit entries that failed to persist",
	})
	auditExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdeck_audit_entries_expired_total",
		Help: "Total number of audit entries removed by TTL expiry or cleanup",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(auditRecordedTotal, auditDroppedTotal, auditFailedTotal, auditExpiredTotal)
}

// IncRecorded increments the persisted entries counter.
func IncRecorded() { auditRecordedTotal.Inc() }

// IncDropped increments the dropped entries counter.
func IncDropped() { auditDroppedTotal.Inc() }

// IncWriteFailure increments the persistence failure counter.
func IncWriteFailure() { auditFailedTotal.Inc() }

// AddExpired adds to the expired/cleaned entries counter.
func AddExpired(n int64) { auditExpiredTotal.Add(float64(n)) }
