package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdeck/staffdeck/internal/models"
)

func TestRetentionService_RejectsBelowFloor(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewRetentionService(db)

	_, err := svc.Cleanup(RetentionFloorDays-1, false, nil)
	assert.ErrorIs(t, err, ErrRetentionFloor)

	_, err = svc.Cleanup(0, true, nil)
	assert.ErrorIs(t, err, ErrRetentionFloor)
}

func TestRetentionService_DryRunCountsWithoutDeleting(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewRetentionService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	old := time.Now().AddDate(0, 0, -100)
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, old)
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, old)
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Now())

	result, err := svc.Cleanup(90, true, nil)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, int64(2), result.Matched)
	assert.Equal(t, int64(2*estimatedEntryBytes), result.EstimatedBytes)
	assert.Nil(t, result.Deleted)

	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestRetentionService_ExecuteDeletesAndRecordsRun(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewRetentionService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	old := time.Now().AddDate(0, 0, -100)
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, old)
	recent := seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Now())

	result, err := svc.Cleanup(90, false, &actor.ID)
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	require.NotNil(t, result.Deleted)
	assert.Equal(t, int64(1), *result.Deleted)

	// survivor plus the cleanup's own entry
	var remaining []models.AuditEntry
	require.NoError(t, db.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, recent.ID, remaining[0].ID)

	run := remaining[1]
	assert.Equal(t, models.ActionDelete, run.Action)
	assert.Equal(t, models.EntityAudit, run.Entity)
	assert.Equal(t, "retention-cleanup", run.Resource)
	assert.Equal(t, actor.ID, *run.ActorID)
}

func TestRetentionService_ExpireTTL(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewRetentionService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	expired := models.AuditEntry{
		ActorID: &actor.ID, Action: models.ActionRead, Entity: models.EntityLeave,
		Status: models.StatusSuccess, Severity: models.SeverityLow,
		Timestamp: time.Now().Add(-48 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Now())

	removed, err := svc.ExpireTTL()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
