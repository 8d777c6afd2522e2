package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/staffdeck/staffdeck/internal/audit"
	"github.com/staffdeck/staffdeck/internal/logger"
	"github.com/staffdeck/staffdeck/internal/metrics"
	"github.com/staffdeck/staffdeck/internal/models"
)

// RetentionFloorDays is the minimum age entries must reach before manual
// cleanup may remove them. A hard invariant, not configurable lower.
const RetentionFloorDays = 30

// estimatedEntryBytes approximates on-disk size per entry for the dry-run
// storage estimate.
const estimatedEntryBytes = 640

// RetentionService trims the audit store: on demand through Cleanup, and
// automatically through the scheduled TTL sweep.
type RetentionService struct {
	DB *gorm.DB
}

func NewRetentionService(db *gorm.DB) *RetentionService {
	return &RetentionService{DB: db}
}

// CleanupResult reports what a cleanup run matched and, in execute mode,
// removed.
type CleanupResult struct {
	Cutoff         time.Time `json:"cutoff"`
	Matched        int64     `json:"matched"`
	EstimatedBytes int64     `json:"estimated_bytes"`
	Deleted        *int64    `json:"deleted,omitempty"`
	DryRun         bool      `json:"dry_run"`
}

// Cleanup removes (or, in dry-run mode, only counts) entries older than
// now - retentionDays. The floor check runs before any store access. The
// delete is a single age predicate: entries already removed stay removed if
// the operation is interrupted, and concurrent inserts always carry a fresh
// timestamp that cannot fall under an already-computed cutoff.
func (s *RetentionService) Cleanup(retentionDays int, dryRun bool, actorID *uint) (*CleanupResult, error) {
	if retentionDays < RetentionFloorDays {
		return nil, ErrRetentionFloor
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := &CleanupResult{Cutoff: cutoff, DryRun: dryRun}

	if err := s.DB.Model(&models.AuditEntry{}).Where("timestamp < ?", cutoff).Count(&result.Matched).Error; err != nil {
		return nil, err
	}
	result.EstimatedBytes = result.Matched * estimatedEntryBytes

	if dryRun {
		return result, nil
	}

	res := s.DB.Where("timestamp < ?", cutoff).Delete(&models.AuditEntry{})
	if res.Error != nil {
		return nil, res.Error
	}
	deleted := res.RowsAffected
	result.Deleted = &deleted
	metrics.AddExpired(deleted)

	s.recordRun(cutoff, retentionDays, deleted, actorID)

	logger.WithFields(map[string]interface{}{
		"cutoff":  cutoff,
		"deleted": deleted,
	}).Info("audit retention cleanup executed")

	return result, nil
}

// recordRun writes the cleanup's own audit entry. A failure here is logged
// only; the cleanup itself already succeeded.
func (s *RetentionService) recordRun(cutoff time.Time, retentionDays int, deleted int64, actorID *uint) {
	entry := models.AuditEntry{
		ActorID:  actorID,
		Action:   models.ActionDelete,
		Entity:   models.EntityAudit,
		Status:   models.StatusSuccess,
		Severity: audit.Classify(models.ActionDelete, models.EntityAudit, models.StatusSuccess),
		Resource: "retention-cleanup",
		Details: datatypes.JSONMap{
			"retentionDays": retentionDays,
			"cutoff":        cutoff.Format(time.RFC3339),
			"deleted":       deleted,
			"summary":       fmt.Sprintf("removed %d audit entries older than %s", deleted, cutoff.Format("2006-01-02")),
		},
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		logger.Log().WithError(err).Error("failed to record retention cleanup entry")
	}
}

// ExpireTTL deletes every entry whose expires_at instant has passed. This is
// the automatic half of the entry lifecycle.
func (s *RetentionService) ExpireTTL() (int64, error) {
	res := s.DB.Where("expires_at <= ?", time.Now()).Delete(&models.AuditEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		metrics.AddExpired(res.RowsAffected)
		logger.WithFields(map[string]interface{}{"expired": res.RowsAffected}).Info("expired audit entries removed")
	}
	return res.RowsAffected, nil
}

// Schedule registers the daily TTL sweep on the shared cron runner.
func (s *RetentionService) Schedule(cr *cron.Cron) error {
	_, err := cr.AddFunc("0 3 * * *", func() {
		if _, err := s.ExpireTTL(); err != nil {
			logger.Log().WithError(err).Error("scheduled TTL sweep failed")
		}
	})
	return err
}
