// Package domain contains collections and dunning models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ActionType is the contact channel of a dunning action.
type ActionType string

const (
	ActionEmail  ActionType = "EMAIL"
	ActionSMS    ActionType = "SMS"
	ActionCall   ActionType = "CALL"
	ActionLetter ActionType = "LETTER"
)

// ActionStatus tracks delivery of a dunning action. Actions are append-only;
// only the status and response fields change after creation.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "PENDING"
	ActionStatusSent      ActionStatus = "SENT"
	ActionStatusResponded ActionStatus = "RESPONDED"
	ActionStatusFailed    ActionStatus = "FAILED"
)

// MaxLevel is the last escalation step.
const MaxLevel = 4

// DunningAction is one collection attempt against an overdue invoice.
type DunningAction struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;index"`
	ClientID  snowflake.ID `gorm:"not null;index"`
	InvoiceID snowflake.ID `gorm:"not null;index"`

	ActionType ActionType   `gorm:"type:text;not null"`
	Level      int          `gorm:"not null"`
	Status     ActionStatus `gorm:"type:text;not null;default:'PENDING'"`
	Message    string       `gorm:"type:text"`

	ScheduledAt time.Time  `gorm:"not null"`
	SentAt      *time.Time `gorm:""`
	RespondedAt *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DunningAction) TableName() string { return "dunning_actions" }

// CollectionNote is a free-form entry on a client's collection trail.
// Notes are append-only and never edited.
type CollectionNote struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	CompanyID snowflake.ID  `gorm:"not null;index"`
	ClientID  snowflake.ID  `gorm:"not null;index"`
	InvoiceID *snowflake.ID `gorm:"index"`

	Note      string    `gorm:"type:text;not null"`
	Author    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CollectionNote) TableName() string { return "collection_notes" }
