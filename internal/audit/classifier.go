// Package audit holds the pure pieces of the audit pipeline: severity
// classification and request-body redaction. Nothing in this package touches
// the database or the network.
package audit

import (
	"github.com/staffdeck/staffdeck/internal/models"
)

var criticalActions = map[models.AuditAction]struct{}{
	models.ActionDelete:           {},
	models.ActionSuspend:          {},
	models.ActionPasswordChange:   {},
	models.ActionPermissionChange: {},
}

var criticalEntities = map[models.AuditEntity]struct{}{
	models.EntityUser:   {},
	models.EntitySystem: {},
	models.EntityBackup: {},
}

var mediumEntities = map[models.AuditEntity]struct{}{
	models.EntityUser:         {},
	models.EntityDisciplinary: {},
	models.EntitySystem:       {},
}

// Classify derives the severity tier for an entry. It is evaluated once at
// entry construction; entries are append-only so the result is never
// recomputed. Rules apply in order, first match wins:
//
//  1. destructive action on a sensitive entity        -> critical
//  2. failed login or failed password change          -> high
//  3. any other failure                               -> medium
//  4. create/update on user, disciplinary or system   -> medium
//  5. everything else                                 -> low
func Classify(action models.AuditAction, entity models.AuditEntity, status models.AuditStatus) models.Severity {
	if _, ok := criticalActions[action]; ok {
		if _, ok := criticalEntities[entity]; ok {
			return models.SeverityCritical
		}
	}

	if status == models.StatusFailed {
		// login_failed is the stored spelling of a failed login attempt.
		if action == models.ActionLogin || action == models.ActionLoginFailed || action == models.ActionPasswordChange {
			return models.SeverityHigh
		}
		return models.SeverityMedium
	}

	if action == models.ActionCreate || action == models.ActionUpdate {
		if _, ok := mediumEntities[entity]; ok {
			return models.SeverityMedium
		}
	}

	return models.SeverityLow
}
