// Package domain contains the lifecycle event outbox model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventType identifies a service lifecycle transition.
type EventType string

const (
	EventServiceProvisioned   EventType = "service.provisioned"
	EventServiceActivated     EventType = "service.activated"
	EventServiceSuspended     EventType = "service.suspended"
	EventServiceResumed       EventType = "service.resumed"
	EventServiceCancelled     EventType = "service.cancelled"
	EventServiceRenewed       EventType = "service.renewed"
	EventServiceTransferred   EventType = "service.transferred"
	EventHealthDegraded       EventType = "service.health_degraded"
	EventRenewalReminder      EventType = "service.renewal_reminder"
	EventDunningActionCreated EventType = "dunning.action_created"
	EventInvitationCreated    EventType = "portal.invitation_created"
	EventInvitationAccepted   EventType = "portal.invitation_accepted"
)

// LifecycleEvent is an outbox row recorded in the same transaction as the
// state change it describes. External consumers drain the outbox; this
// cluster never executes side effects inline.
type LifecycleEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	CompanyID   snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_lifecycle_event_dedupe,priority:1"`
	EventType   EventType         `gorm:"type:text;not null"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex:ux_lifecycle_event_dedupe,priority:2"`
	Published   bool              `gorm:"not null;default:false"`
	PublishedAt *time.Time        `gorm:""`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LifecycleEvent) TableName() string { return "lifecycle_events" }
