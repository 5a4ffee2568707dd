package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	companydomain "github.com/mspforge/mspforge/internal/company/domain"
	"github.com/mspforge/mspforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  companydomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  companydomain.Repository
}

func NewService(p ServiceParam) companydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("company.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req companydomain.CreateRequest) (companydomain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return companydomain.Company{}, companydomain.ErrInvalidName
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	company := companydomain.Company{
		ID:       s.genID.Generate(),
		Name:     name,
		Slug:     slug.Make(name),
		Metadata: metadata,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return companydomain.ErrSlugTaken
			}
			return err
		}
		// Every node carries its own depth-0 closure row.
		return s.repo.InsertLinks(ctx, tx, []companydomain.HierarchyLink{
			{AncestorID: company.ID, DescendantID: company.ID, Depth: 0},
		})
	})
	if err != nil {
		return companydomain.Company{}, err
	}

	s.log.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.String("slug", company.Slug),
	)
	return company, nil
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, companyID string) (companydomain.Company, error) {
	id, err := parseID(companyID)
	if err != nil {
		return companydomain.Company{}, err
	}
	company, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return companydomain.Company{}, err
	}
	if company == nil {
		return companydomain.Company{}, companydomain.ErrCompanyNotFound
	}
	return *company, nil
}

// AttachSubsidiary implements domain.Service.
func (s *Service) AttachSubsidiary(ctx context.Context, parentID, childID string) error {
	parent, err := parseID(parentID)
	if err != nil {
		return err
	}
	child, err := parseID(childID)
	if err != nil {
		return err
	}
	if parent == child {
		return companydomain.ErrSelfReference
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range []snowflake.ID{parent, child} {
			company, err := s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if company == nil {
				return companydomain.ErrCompanyNotFound
			}
		}

		hasParent, err := s.repo.HasParent(ctx, tx, child)
		if err != nil {
			return err
		}
		if hasParent {
			return companydomain.ErrAlreadyAttached
		}

		// The parent inside the child's subtree would close a loop.
		inSubtree, err := s.repo.HasLink(ctx, tx, child, parent)
		if err != nil {
			return err
		}
		if inSubtree {
			return companydomain.ErrHierarchyCycle
		}

		ancestors, err := s.repo.AncestorLinks(ctx, tx, parent)
		if err != nil {
			return err
		}
		subtree, err := s.repo.DescendantLinks(ctx, tx, child)
		if err != nil {
			return err
		}

		links := make([]companydomain.HierarchyLink, 0, len(ancestors)*len(subtree))
		for _, a := range ancestors {
			for _, d := range subtree {
				links = append(links, companydomain.HierarchyLink{
					AncestorID:   a.AncestorID,
					DescendantID: d.DescendantID,
					Depth:        a.Depth + d.Depth + 1,
				})
			}
		}
		if err := s.repo.InsertLinks(ctx, tx, links); err != nil {
			return err
		}

		s.log.Info("subsidiary attached",
			zap.String("parent_id", parent.String()),
			zap.String("child_id", child.String()),
		)
		return nil
	})
}

// DetachSubsidiary implements domain.Service.
func (s *Service) DetachSubsidiary(ctx context.Context, childID string) error {
	child, err := parseID(childID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ancestors, err := s.repo.AncestorLinks(ctx, tx, child)
		if err != nil {
			return err
		}

		var above []snowflake.ID
		for _, link := range ancestors {
			if link.Depth > 0 {
				above = append(above, link.AncestorID)
			}
		}
		if len(above) == 0 {
			return companydomain.ErrNotAttached
		}

		subtree, err := s.repo.DescendantLinks(ctx, tx, child)
		if err != nil {
			return err
		}
		inside := make([]snowflake.ID, 0, len(subtree))
		for _, link := range subtree {
			inside = append(inside, link.DescendantID)
		}

		if err := s.repo.DeleteCrossingLinks(ctx, tx, above, inside); err != nil {
			return err
		}

		s.log.Info("subsidiary detached", zap.String("child_id", child.String()))
		return nil
	})
}

// Ancestors implements domain.Service.
func (s *Service) Ancestors(ctx context.Context, companyID string) ([]companydomain.Company, error) {
	id, err := parseID(companyID)
	if err != nil {
		return nil, err
	}
	links, err := s.repo.AncestorLinks(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.resolveLinks(ctx, links, id, func(link companydomain.HierarchyLink) snowflake.ID {
		return link.AncestorID
	})
}

// Descendants implements domain.Service.
func (s *Service) Descendants(ctx context.Context, companyID string) ([]companydomain.Company, error) {
	id, err := parseID(companyID)
	if err != nil {
		return nil, err
	}
	links, err := s.repo.DescendantLinks(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.resolveLinks(ctx, links, id, func(link companydomain.HierarchyLink) snowflake.ID {
		return link.DescendantID
	})
}

// resolveLinks loads companies for the far end of each closure row, keeping
// the depth ordering and dropping the self row.
func (s *Service) resolveLinks(ctx context.Context, links []companydomain.HierarchyLink, self snowflake.ID, pick func(companydomain.HierarchyLink) snowflake.ID) ([]companydomain.Company, error) {
	companies := make([]companydomain.Company, 0, len(links))
	for _, link := range links {
		id := pick(link)
		if id == self {
			continue
		}
		company, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if company == nil {
			continue
		}
		companies = append(companies, *company)
	}
	return companies, nil
}

// SetBillingParent implements domain.Service.
func (s *Service) SetBillingParent(ctx context.Context, companyID, billingParentID string) error {
	id, err := parseID(companyID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
			return companydomain.ErrCompanyNotFound
		}

		if strings.TrimSpace(billingParentID) == "" {
			company.BillingParentID = nil
			return s.repo.Save(ctx, tx, company)
		}

		parent, err := parseID(billingParentID)
		if err != nil {
			return err
		}
		if parent == id {
			return companydomain.ErrSelfReference
		}
		target, err := s.repo.FindByID(ctx, tx, parent)
		if err != nil {
			return err
		}
		if target == nil {
			return companydomain.ErrCompanyNotFound
		}

		company.BillingParentID = &parent
		return s.repo.Save(ctx, tx, company)
	})
}

// BillingCompany implements domain.Service.
func (s *Service) BillingCompany(ctx context.Context, companyID string) (companydomain.Company, error) {
	company, err := s.GetByID(ctx, companyID)
	if err != nil {
		return companydomain.Company{}, err
	}
	if company.BillingParentID == nil {
		return company, nil
	}

	// One hop only; billing delegation does not chain.
	parent, err := s.repo.FindByID(ctx, s.db, *company.BillingParentID)
	if err != nil {
		return companydomain.Company{}, err
	}
	if parent == nil {
		return companydomain.Company{}, companydomain.ErrCompanyNotFound
	}
	return *parent, nil
}

// GrantPermission implements domain.Service.
func (s *Service) GrantPermission(ctx context.Context, companyID string, req companydomain.GrantRequest) error {
	id, err := parseID(companyID)
	if err != nil {
		return err
	}
	resource := strings.TrimSpace(req.Resource)
	if resource == "" {
		return companydomain.ErrInvalidResource
	}
	permission := strings.TrimSpace(req.Permission)
	if permission == "" {
		return companydomain.ErrInvalidPermission
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
			return companydomain.ErrCompanyNotFound
		}

		targets := []grantTarget{{companyID: id, inherited: false}}
		if req.Cascade {
			subtree, err := s.repo.DescendantLinks(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, link := range subtree {
				if link.DescendantID == id {
					continue
				}
				targets = append(targets, grantTarget{companyID: link.DescendantID, inherited: true})
			}
		}

		for _, target := range targets {
			existing, err := s.repo.FindPermission(ctx, tx, target.companyID, resource, permission)
			if err != nil {
				return err
			}
			if existing != nil {
				// A direct grant is never downgraded to inherited.
				continue
			}
			row := companydomain.SubsidiaryPermission{
				ID:          s.genID.Generate(),
				CompanyID:   target.companyID,
				Resource:    resource,
				Permission:  permission,
				IsInherited: target.inherited,
			}
			if err := s.repo.InsertPermission(ctx, tx, &row); err != nil {
				if db.IsDuplicateKeyErr(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
}

type grantTarget struct {
	companyID snowflake.ID
	inherited bool
}

// RevokePermission implements domain.Service.
func (s *Service) RevokePermission(ctx context.Context, companyID, resource, permission string) error {
	id, err := parseID(companyID)
	if err != nil {
		return err
	}
	resource = strings.TrimSpace(resource)
	permission = strings.TrimSpace(permission)
	if resource == "" {
		return companydomain.ErrInvalidResource
	}
	if permission == "" {
		return companydomain.ErrInvalidPermission
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.DeletePermission(ctx, tx, id, resource, permission)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}

		// Revoking the original sweeps inherited copies out of the subtree.
		subtree, err := s.repo.DescendantLinks(ctx, tx, id)
		if err != nil {
			return err
		}
		var below []snowflake.ID
		for _, link := range subtree {
			if link.DescendantID != id {
				below = append(below, link.DescendantID)
			}
		}
		return s.repo.DeleteInheritedPermissions(ctx, tx, below, resource, permission)
	})
}

// ListPermissions implements domain.Service.
func (s *Service) ListPermissions(ctx context.Context, companyID string) ([]companydomain.SubsidiaryPermission, error) {
	id, err := parseID(companyID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPermissions(ctx, s.db, id)
}

// HasPermission implements domain.Service.
func (s *Service) HasPermission(ctx context.Context, companyID, resource, permission string) (bool, error) {
	id, err := parseID(companyID)
	if err != nil {
		return false, err
	}
	row, err := s.repo.FindPermission(ctx, s.db, id, strings.TrimSpace(resource), strings.TrimSpace(permission))
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, companydomain.ErrCompanyNotFound
	}
	return id, nil
}
