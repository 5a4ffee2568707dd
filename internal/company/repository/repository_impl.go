package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/mspforge/mspforge/internal/company/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() companydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *companydomain.Company) error {
	return db.WithContext(ctx).Create(company).Error
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, company *companydomain.Company) error {
	return db.WithContext(ctx).Save(company).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*companydomain.Company, error) {
	var company companydomain.Company
	err := db.WithContext(ctx).Where("id = ?", id).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *repo) InsertLinks(ctx context.Context, db *gorm.DB, links []companydomain.HierarchyLink) error {
	if len(links) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&links).Error
}

func (r *repo) AncestorLinks(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]companydomain.HierarchyLink, error) {
	var links []companydomain.HierarchyLink
	err := db.WithContext(ctx).
		Where("descendant_id = ?", id).
		Order("depth").
		Find(&links).Error
	return links, err
}

func (r *repo) DescendantLinks(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]companydomain.HierarchyLink, error) {
	var links []companydomain.HierarchyLink
	err := db.WithContext(ctx).
		Where("ancestor_id = ?", id).
		Order("depth").
		Find(&links).Error
	return links, err
}

func (r *repo) HasLink(ctx context.Context, db *gorm.DB, ancestorID, descendantID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&companydomain.HierarchyLink{}).
		Where("ancestor_id = ? AND descendant_id = ?", ancestorID, descendantID).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) HasParent(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&companydomain.HierarchyLink{}).
		Where("descendant_id = ? AND depth = 1", id).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) DeleteCrossingLinks(ctx context.Context, db *gorm.DB, ancestorIDs, subtreeIDs []snowflake.ID) error {
	if len(ancestorIDs) == 0 || len(subtreeIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("ancestor_id IN ? AND descendant_id IN ?", ancestorIDs, subtreeIDs).
		Delete(&companydomain.HierarchyLink{}).Error
}

func (r *repo) InsertPermission(ctx context.Context, db *gorm.DB, permission *companydomain.SubsidiaryPermission) error {
	return db.WithContext(ctx).Create(permission).Error
}

func (r *repo) FindPermission(ctx context.Context, db *gorm.DB, companyID snowflake.ID, resource, permission string) (*companydomain.SubsidiaryPermission, error) {
	var row companydomain.SubsidiaryPermission
	err := db.WithContext(ctx).
		Where("company_id = ? AND resource = ? AND permission = ?", companyID, resource, permission).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) ListPermissions(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]companydomain.SubsidiaryPermission, error) {
	var rows []companydomain.SubsidiaryPermission
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("resource, permission").
		Find(&rows).Error
	return rows, err
}

func (r *repo) DeletePermission(ctx context.Context, db *gorm.DB, companyID snowflake.ID, resource, permission string) (int64, error) {
	result := db.WithContext(ctx).
		Where("company_id = ? AND resource = ? AND permission = ?", companyID, resource, permission).
		Delete(&companydomain.SubsidiaryPermission{})
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteInheritedPermissions(ctx context.Context, db *gorm.DB, companyIDs []snowflake.ID, resource, permission string) error {
	if len(companyIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("company_id IN ? AND resource = ? AND permission = ? AND is_inherited", companyIDs, resource, permission).
		Delete(&companydomain.SubsidiaryPermission{}).Error
}
