package models

import (
	"strings"
	"time"
)

// StaffUser is the read model of the acting principal maintained by the
// staff-management system. The audit subsystem only consumes it: to annotate
// entries with the actor's name/role and to resolve actor-name searches.
type StaffUser struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	UUID      string `json:"uuid" gorm:"uniqueIndex"`
	FirstName string `json:"first_name" gorm:"size:64"`
	LastName  string `json:"last_name" gorm:"size:64"`
	Email     string `json:"email" gorm:"uniqueIndex;size:255"`
	Role      string `json:"role" gorm:"size:32;default:'staff'"` // "admin", "hr", "manager", "staff"
	Enabled   bool   `json:"enabled" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins the name parts, tolerating either being empty.
func (u *StaffUser) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
