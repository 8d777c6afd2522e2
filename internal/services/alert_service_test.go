package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staffdeck/staffdeck/internal/models"
)

func TestAlertService_Configured(t *testing.T) {
	assert.False(t, NewAlertService(nil).Configured())
	assert.False(t, NewAlertService([]string{}).Configured())
	assert.True(t, NewAlertService([]string{"discord://token@channel"}).Configured())
}

func TestAlertService_NotifyCriticalWithoutDestinations(t *testing.T) {
	svc := NewAlertService(nil)

	// must be a no-op, not a panic
	svc.NotifyCritical(models.AuditEntry{
		Action: models.ActionDelete, Entity: models.EntityUser,
		Status: models.StatusSuccess, Severity: models.SeverityCritical,
	})
}
