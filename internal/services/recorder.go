package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/staffdeck/staffdeck/internal/logger"
	"github.com/staffdeck/staffdeck/internal/metrics"
	"github.com/staffdeck/staffdeck/internal/models"
)

// AuditRecorder persists audit entries off the request path. Capture hands
// entries over a buffered channel; a single background writer drains it. A
// full queue drops the entry rather than delay any response, and persistence
// failures are visible to operators only (log + counter).
type AuditRecorder struct {
	DB        *gorm.DB
	Alerts    *AlertService
	retention time.Duration
	queue     chan models.AuditEntry
	done      chan struct{}
}

// NewAuditRecorder sizes the queue and sets the TTL applied to new entries.
func NewAuditRecorder(db *gorm.DB, alerts *AlertService, queueSize, retentionDays int) *AuditRecorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	retention := models.DefaultRetention
	if retentionDays > 0 {
		retention = time.Duration(retentionDays) * 24 * time.Hour
	}
	return &AuditRecorder{
		DB:        db,
		Alerts:    alerts,
		retention: retention,
		queue:     make(chan models.AuditEntry, queueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the background writer. Call once.
func (r *AuditRecorder) Start() {
	go func() {
		defer close(r.done)
		for entry := range r.queue {
			r.write(entry)
		}
	}()
}

// Stop closes the intake and waits for queued entries to drain.
func (r *AuditRecorder) Stop() {
	close(r.queue)
	<-r.done
}

// Enqueue hands an entry to the writer without ever blocking the caller.
func (r *AuditRecorder) Enqueue(entry models.AuditEntry) {
	select {
	case r.queue <- entry:
	default:
		metrics.IncDropped()
		logger.WithFields(map[string]interface{}{
			"action": entry.Action,
			"entity": entry.Entity,
		}).Warn("audit queue full, entry dropped")
	}
}

func (r *AuditRecorder) write(entry models.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.Timestamp.Add(r.retention)
	}

	if err := r.DB.Create(&entry).Error; err != nil {
		metrics.IncWriteFailure()
		logger.WithFields(map[string]interface{}{
			"action": entry.Action,
			"entity": entry.Entity,
		}).WithError(err).Error("failed to persist audit entry")
		return
	}
	metrics.IncRecorded()

	if entry.Severity == models.SeverityCritical && r.Alerts != nil {
		r.Alerts.NotifyCritical(entry)
	}
}
