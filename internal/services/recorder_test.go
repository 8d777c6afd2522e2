package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdeck/staffdeck/internal/models"
)

func TestAuditRecorder_PersistsEnqueuedEntries(t *testing.T) {
	db := setupAuditTestDB(t)
	rec := NewAuditRecorder(db, nil, 16, 365)
	rec.Start()

	rec.Enqueue(models.AuditEntry{
		Action: models.ActionCreate, Entity: models.EntityLeave,
		Status: models.StatusSuccess, Severity: models.SeverityLow,
	})
	rec.Enqueue(models.AuditEntry{
		Action: models.ActionDelete, Entity: models.EntityUser, EntityID: "7",
		Status: models.StatusSuccess, Severity: models.SeverityCritical,
	})
	rec.Stop()

	var entries []models.AuditEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionCreate, entries[0].Action)
	assert.Equal(t, models.ActionDelete, entries[1].Action)
}

func TestAuditRecorder_SetsTimestampAndExpiry(t *testing.T) {
	db := setupAuditTestDB(t)
	rec := NewAuditRecorder(db, nil, 16, 30)
	rec.Start()

	rec.Enqueue(models.AuditEntry{
		Action: models.ActionRead, Entity: models.EntityLeave,
		Status: models.StatusSuccess, Severity: models.SeverityLow,
	})
	rec.Stop()

	var entry models.AuditEntry
	require.NoError(t, db.First(&entry).Error)
	assert.False(t, entry.Timestamp.IsZero())
	assert.WithinDuration(t, entry.Timestamp.Add(30*24*time.Hour), entry.ExpiresAt, time.Second)
}

func TestAuditRecorder_DropsWhenQueueFull(t *testing.T) {
	db := setupAuditTestDB(t)
	rec := NewAuditRecorder(db, nil, 1, 365)
	// writer not started, so the queue cannot drain

	for i := 0; i < 5; i++ {
		rec.Enqueue(models.AuditEntry{
			Action: models.ActionRead, Entity: models.EntityLeave,
			Status: models.StatusSuccess, Severity: models.SeverityLow,
		})
	}

	rec.Start()
	rec.Stop()

	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAuditRecorder_WriteFailureDoesNotStopWriter(t *testing.T) {
	db := setupAuditTestDB(t)
	rec := NewAuditRecorder(db, nil, 16, 365)
	rec.Start()

	// the uuid column carries a unique index; a duplicate forces a create error
	rec.Enqueue(models.AuditEntry{
		Action: models.ActionRead, Entity: models.EntityLeave, UUID: "dup",
		Status: models.StatusSuccess, Severity: models.SeverityLow,
	})
	rec.Enqueue(models.AuditEntry{
		Action: models.ActionRead, Entity: models.EntityLeave, UUID: "dup",
		Status: models.StatusSuccess, Severity: models.SeverityLow,
	})
	rec.Enqueue(models.AuditEntry{
		Action: models.ActionUpdate, Entity: models.EntityAttendance,
		Status: models.StatusSuccess, Severity: models.SeverityMedium,
	})
	rec.Stop()

	// the duplicate UUID insert fails, the entries around it survive
	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
