// Package seed bootstraps the default company so a fresh install is usable
// without manual setup.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/mspforge/mspforge/internal/company/domain"
	"gorm.io/gorm"
)

const (
	defaultCompanyName = "Main"
	defaultCompanySlug = "main"
)

// EnsureDefaultCompany seeds the default company for startup bootstrap.
func EnsureDefaultCompany(db *gorm.DB) error {
	return ensureCompany(db, 0)
}

// EnsureDefaultCompanyWithID seeds the default company under a fixed ID so
// multiple instances sharing a database agree on the tenant.
func EnsureDefaultCompanyWithID(db *gorm.DB, companyID int64) error {
	return ensureCompany(db, snowflake.ID(companyID))
}

func ensureCompany(db *gorm.DB, id snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company companydomain.Company
		err := tx.Where("slug = ?", defaultCompanySlug).First(&company).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if id == 0 {
			id = node.Generate()
		}
		company = companydomain.Company{
			ID:   id,
			Name: defaultCompanyName,
			Slug: defaultCompanySlug,
		}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		return tx.Create(&companydomain.HierarchyLink{
			AncestorID:   company.ID,
			DescendantID: company.ID,
			Depth:        0,
		}).Error
	})
}
