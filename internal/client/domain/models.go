// Package domain contains persistence models for MSP clients.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ClientStatus is the relationship stage of a client.
type ClientStatus string

const (
	ClientStatusLead     ClientStatus = "LEAD"
	ClientStatusActive   ClientStatus = "ACTIVE"
	ClientStatusInactive ClientStatus = "INACTIVE"
	ClientStatusArchived ClientStatus = "ARCHIVED"
)

// Client is a managed customer of the MSP. Clients are soft-archived, never
// hard-deleted, so historical services and invoices keep resolving.
type Client struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_client_slug,priority:1"`

	Name     string       `gorm:"type:text;not null"`
	Slug     string       `gorm:"type:text;not null;uniqueIndex:ux_client_slug,priority:2"`
	Status   ClientStatus `gorm:"type:text;not null;default:'LEAD'"`
	Email    string       `gorm:"type:text"`
	Phone    string       `gorm:"type:text"`
	Currency string       `gorm:"type:text;not null;default:'USD'"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb"`

	ArchivedAt *time.Time `gorm:""`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

// IsArchived reports whether the client has been archived.
func (c *Client) IsArchived() bool { return c.Status == ClientStatusArchived }

// Contact is a person at a client. At most one contact per client carries
// IsPrimary.
type Contact struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;index"`
	ClientID  snowflake.ID `gorm:"not null;index"`

	FirstName string `gorm:"type:text;not null"`
	LastName  string `gorm:"type:text"`
	Email     string `gorm:"type:text;not null"`
	Phone     string `gorm:"type:text"`
	Title     string `gorm:"type:text"`
	IsPrimary bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Contact) TableName() string { return "client_contacts" }

// Location is a service delivery site for a client. At most one location per
// client carries IsPrimary.
type Location struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;index"`
	ClientID  snowflake.ID `gorm:"not null;index"`

	Name       string `gorm:"type:text;not null"`
	Address    string `gorm:"type:text"`
	City       string `gorm:"type:text"`
	State      string `gorm:"type:text"`
	PostalCode string `gorm:"type:text"`
	Country    string `gorm:"type:text"`
	IsPrimary  bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Location) TableName() string { return "client_locations" }
