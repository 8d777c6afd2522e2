package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction enumerates every privileged operation the system records.
type AuditAction string

const (
	ActionCreate           AuditAction = "create"
	ActionRead             AuditAction = "read"
	ActionUpdate           AuditAction = "update"
	ActionDelete           AuditAction = "delete"
	ActionLogin            AuditAction = "login"
	ActionLoginFailed      AuditAction = "login_failed"
	ActionLogout           AuditAction = "logout"
	ActionExport           AuditAction = "export"
	ActionImport           AuditAction = "import"
	ActionApprove          AuditAction = "approve"
	ActionReject           AuditAction = "reject"
	ActionSuspend          AuditAction = "suspend"
	ActionActivate         AuditAction = "activate"
	ActionPasswordChange   AuditAction = "password_change"
	ActionProfileUpdate    AuditAction = "profile_update"
	ActionFileUpload       AuditAction = "file_upload"
	ActionEmailSent        AuditAction = "email_sent"
	ActionReportGenerated  AuditAction = "report_generated"
	ActionBackupCreated    AuditAction = "backup_created"
	ActionSystemConfig     AuditAction = "system_config"
	ActionPermissionChange AuditAction = "permission_change"
)

// AuditEntity names the business object class an entry acted upon.
type AuditEntity string

const (
	EntityUser          AuditEntity = "user"
	EntityAttendance    AuditEntity = "attendance"
	EntityLeave         AuditEntity = "leave"
	EntityDisciplinary  AuditEntity = "disciplinary"
	EntityEmail         AuditEntity = "email"
	EntityReport        AuditEntity = "report"
	EntityBackup        AuditEntity = "backup"
	EntitySystem        AuditEntity = "system"
	EntityQualification AuditEntity = "qualification"
	EntityDepartment    AuditEntity = "department"
	EntityPosition      AuditEntity = "position"
	EntityTemplate      AuditEntity = "template"
	EntityAudit         AuditEntity = "audit"
	EntityNotification  AuditEntity = "notification"
	EntityFile          AuditEntity = "file"
)

// AuditStatus records the outcome of the audited operation.
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailed  AuditStatus = "failed"
	StatusPartial AuditStatus = "partial"
)

// Severity is the sensitivity tier derived from (action, entity, status).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultRetention is how long entries live before automatic expiry.
const DefaultRetention = 365 * 24 * time.Hour

// AuditEntry is one immutable record of a single observed privileged
// operation. Entries are created once by the capture pipeline (or by the
// retention manager logging its own run) and never updated afterwards.
type AuditEntry struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	UUID string `json:"uuid" gorm:"uniqueIndex"`

	// ActorID is a weak reference to the acting principal. Nullable so
	// unauthenticated login attempts can still be recorded; deleting a
	// staff user never cascades into the audit log.
	ActorID *uint      `json:"actor_id" gorm:"index"`
	Actor   *StaffUser `json:"actor,omitempty" gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL"`

	Action   AuditAction `json:"action" gorm:"size:32;index;not null"`
	Entity   AuditEntity `json:"entity" gorm:"size:32;index"`
	EntityID string      `json:"entity_id" gorm:"size:64;index"`

	// Details carries method, path, query, route params, status code,
	// response time/size and (conditionally) a redacted request body.
	Details datatypes.JSONMap `json:"details" gorm:"type:json"`

	IPAddress string            `json:"ip_address" gorm:"size:45"`
	UserAgent string            `json:"user_agent" gorm:"size:255"`
	Location  datatypes.JSONMap `json:"location,omitempty" gorm:"type:json"`

	Status   AuditStatus `json:"status" gorm:"size:16;index"`
	Severity Severity    `json:"severity" gorm:"size:16;index"`

	SessionID string `json:"session_id" gorm:"size:64"`
	RequestID string `json:"request_id" gorm:"size:64"`

	// ResponseTime is wall-clock milliseconds; nil when timing failed.
	ResponseTime *int64 `json:"response_time"`

	// Resource is the raw originating route, independent of Entity.
	Resource string `json:"resource" gorm:"size:255"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`

	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

// BeforeCreate assigns the identity and expiry fields at write time.
func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.ExpiresAt.IsZero() || !e.ExpiresAt.After(e.Timestamp) {
		e.ExpiresAt = e.Timestamp.Add(DefaultRetention)
	}
	return nil
}
