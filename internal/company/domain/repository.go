package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence boundary for companies and the closure table.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	Save(ctx context.Context, db *gorm.DB, company *Company) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)

	InsertLinks(ctx context.Context, db *gorm.DB, links []HierarchyLink) error
	// AncestorLinks returns closure rows ending at the company, self row
	// included, nearest first.
	AncestorLinks(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]HierarchyLink, error)
	// DescendantLinks returns closure rows starting at the company, self row
	// included, shallowest first.
	DescendantLinks(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]HierarchyLink, error)
	HasLink(ctx context.Context, db *gorm.DB, ancestorID, descendantID snowflake.ID) (bool, error)
	HasParent(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// DeleteCrossingLinks removes closure rows whose ancestor is outside the
	// subtree and whose descendant is inside it.
	DeleteCrossingLinks(ctx context.Context, db *gorm.DB, ancestorIDs, subtreeIDs []snowflake.ID) error

	InsertPermission(ctx context.Context, db *gorm.DB, permission *SubsidiaryPermission) error
	FindPermission(ctx context.Context, db *gorm.DB, companyID snowflake.ID, resource, permission string) (*SubsidiaryPermission, error)
	ListPermissions(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]SubsidiaryPermission, error)
	DeletePermission(ctx context.Context, db *gorm.DB, companyID snowflake.ID, resource, permission string) (int64, error)
	// DeleteInheritedPermissions removes inherited copies of a grant from the
	// given companies.
	DeleteInheritedPermissions(ctx context.Context, db *gorm.DB, companyIDs []snowflake.ID, resource, permission string) error
}
