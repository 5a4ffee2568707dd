package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidResource   = errors.New("invalid_resource")
	ErrInvalidPermission = errors.New("invalid_permission")
	ErrCompanyNotFound   = errors.New("company_not_found")
	ErrSlugTaken         = errors.New("slug_taken")
	ErrAlreadyAttached   = errors.New("already_attached")
	ErrNotAttached       = errors.New("not_attached")
	ErrHierarchyCycle    = errors.New("hierarchy_cycle")
	ErrSelfReference     = errors.New("self_reference")
)

// CreateRequest carries the input for Create.
type CreateRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GrantRequest carries the input for GrantPermission. Cascade copies the
// grant to every descendant, flagged inherited.
type GrantRequest struct {
	Resource   string `json:"resource"`
	Permission string `json:"permission"`
	Cascade    bool   `json:"cascade"`
}

// Service manages the company tree and subsidiary permissions. These
// operations act on explicit company IDs rather than the tenant context:
// the tree spans tenants by definition.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (Company, error)
	GetByID(ctx context.Context, companyID string) (Company, error)

	// AttachSubsidiary makes child a direct subsidiary of parent. The child
	// must not already have a parent, and the parent must not sit inside the
	// child's subtree.
	AttachSubsidiary(ctx context.Context, parentID, childID string) error
	// DetachSubsidiary cuts the child's subtree loose. Links inside the
	// subtree survive; links crossing the cut are removed.
	DetachSubsidiary(ctx context.Context, childID string) error
	Ancestors(ctx context.Context, companyID string) ([]Company, error)
	Descendants(ctx context.Context, companyID string) ([]Company, error)

	// SetBillingParent delegates invoicing to another company. Pass an empty
	// ID to clear the delegation.
	SetBillingParent(ctx context.Context, companyID, billingParentID string) error
	// BillingCompany resolves where a company's invoices go: the billing
	// parent when set, otherwise the company itself.
	BillingCompany(ctx context.Context, companyID string) (Company, error)

	GrantPermission(ctx context.Context, companyID string, req GrantRequest) error
	RevokePermission(ctx context.Context, companyID, resource, permission string) error
	ListPermissions(ctx context.Context, companyID string) ([]SubsidiaryPermission, error)
	HasPermission(ctx context.Context, companyID, resource, permission string) (bool, error)
}
