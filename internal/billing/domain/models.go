// Package domain contains persistence models for recurring billing schedules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RecurringStatus represents recurring schedule states.
type RecurringStatus string

const (
	RecurringStatusActive RecurringStatus = "ACTIVE"
	RecurringStatusPaused RecurringStatus = "PAUSED"
)

// Recurring is the billing schedule linked to one client service.
type Recurring struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	CompanyID    snowflake.ID    `gorm:"not null;index"`
	ClientID     snowflake.ID    `gorm:"not null;index"`
	ServiceID    snowflake.ID    `gorm:"not null;uniqueIndex"`
	Status       RecurringStatus `gorm:"type:text;not null;default:'ACTIVE'"`
	Amount       float64         `gorm:"not null"`
	Currency     string          `gorm:"type:text;not null"`
	Frequency    string          `gorm:"type:text;not null"`
	NextBillDate *time.Time      `gorm:""`
	PausedAt     *time.Time      `gorm:""`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Recurring) TableName() string { return "recurring_billing" }
