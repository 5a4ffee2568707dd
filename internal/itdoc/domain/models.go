// Package domain contains client IT documentation models and the compliance
// requirement catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DocStatus is the lifecycle state of a documentation entry.
type DocStatus string

const (
	DocStatusActive   DocStatus = "ACTIVE"
	DocStatusArchived DocStatus = "ARCHIVED"
)

// ITDocumentation is one version of a client documentation entry. A new
// version inserts a sibling row pointing at the lineage root via
// ParentDocumentID; rows are never edited in place.
type ITDocumentation struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;index"`
	ClientID  snowflake.ID `gorm:"not null;index"`

	Title    string    `gorm:"type:text;not null"`
	Category string    `gorm:"type:text;not null"`
	Content  string    `gorm:"type:text"`
	Status   DocStatus `gorm:"type:text;not null;default:'ACTIVE'"`

	Version          int           `gorm:"not null;default:1"`
	ParentDocumentID *snowflake.ID `gorm:"index"`

	// Frameworks the document claims to support, e.g. ["SOC2","HIPAA"].
	Frameworks datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	Author         string     `gorm:"type:text"`
	LastReviewedAt *time.Time `gorm:""`
	NextReviewAt   *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ITDocumentation) TableName() string { return "client_it_documentation" }

// RootID returns the lineage root of this version.
func (d *ITDocumentation) RootID() snowflake.ID {
	if d.ParentDocumentID != nil {
		return *d.ParentDocumentID
	}
	return d.ID
}
