// Package domain contains company hierarchy models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Company is a tenant. Companies form a tree through the closure table;
// BillingParentID delegates invoicing to another node, which need not be the
// organizational parent.
type Company struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name            string        `gorm:"type:text;not null" json:"name"`
	Slug            string        `gorm:"type:text;not null;uniqueIndex:ux_companies_slug" json:"slug"`
	BillingParentID *snowflake.ID `gorm:"index" json:"billing_parent_id,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Company) TableName() string { return "companies" }

// HierarchyLink is one row of the ancestor/descendant closure table. Every
// company carries a self link at depth 0; attaching a subsidiary adds the
// cross product of the parent's ancestors and the child's subtree.
type HierarchyLink struct {
	AncestorID   snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"ancestor_id"`
	DescendantID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"descendant_id"`
	Depth        int          `gorm:"not null" json:"depth"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (HierarchyLink) TableName() string { return "company_hierarchy" }

// SubsidiaryPermission grants a subsidiary access to a resource. Rows created
// by cascading a grant down the tree are flagged inherited so revoking the
// original can sweep them away.
type SubsidiaryPermission struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_subsidiary_permission,priority:1" json:"company_id"`

	Resource    string `gorm:"type:text;not null;uniqueIndex:ux_subsidiary_permission,priority:2" json:"resource"`
	Permission  string `gorm:"type:text;not null;uniqueIndex:ux_subsidiary_permission,priority:3" json:"permission"`
	IsInherited bool   `gorm:"not null;default:false" json:"is_inherited"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (SubsidiaryPermission) TableName() string { return "subsidiary_permissions" }
