// Package domain contains client portal invitation models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the invitation lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
	StatusRevoked  Status = "REVOKED"
)

// Invitation grants a client contact access to the portal. The code is a
// random UUID shared out of band; it is the only credential the accept flow
// needs.
type Invitation struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;index"`
	ClientID  snowflake.ID `gorm:"not null;index"`
	ContactID snowflake.ID `gorm:"not null;index"`

	Email  string `gorm:"type:text;not null"`
	Code   string `gorm:"type:text;not null;uniqueIndex"`
	Status Status `gorm:"type:text;not null;default:'PENDING'"`

	ExpiresAt  time.Time  `gorm:"not null"`
	AcceptedAt *time.Time `gorm:""`
	RevokedAt  *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "portal_invitations" }

// IsExpired reports whether the invitation has passed its deadline.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
