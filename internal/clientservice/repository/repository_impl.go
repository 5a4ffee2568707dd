package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/mspforge/mspforge/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() clientservicedomain.Repository {
	return &repo{}
}

// sweepScope orders a batch query and caps it when the caller set a limit.
func sweepScope(stmt *gorm.DB, order string, limit int) *gorm.DB {
	opts := []option.QueryOption{option.WithOrder(order)}
	if limit > 0 {
		opts = append(opts, option.WithLimit(limit))
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, service *clientservicedomain.ClientService) error {
	return db.WithContext(ctx).Create(service).Error
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, service *clientservicedomain.ClientService) error {
	return db.WithContext(ctx).Save(service).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*clientservicedomain.ClientService, error) {
	var service clientservicedomain.ClientService
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &service, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*clientservicedomain.ClientService, error) {
	stmt := db.WithContext(ctx)
	// sqlite has no row locks; the whole database serializes writes.
	if db.Dialector.Name() != "sqlite" {
		stmt = option.WithForUpdate().Apply(stmt)
	}

	var service clientservicedomain.ClientService
	err := stmt.
		Where("company_id = ? AND id = ?", companyID, id).
		First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &service, nil
}

func (r *repo) ListByClient(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) ([]clientservicedomain.ClientService, error) {
	var services []clientservicedomain.ClientService
	err := db.WithContext(ctx).
		Where("company_id = ? AND client_id = ?", companyID, clientID).
		Order("created_at DESC").
		Find(&services).Error
	return services, err
}

func (r *repo) ListActiveMonitored(ctx context.Context, db *gorm.DB, companyID snowflake.ID, limit int) ([]clientservicedomain.ClientService, error) {
	var services []clientservicedomain.ClientService
	stmt := db.WithContext(ctx).
		Where("status = ? AND monitoring_enabled = ?", clientservicedomain.ServiceStatusActive, true)
	if companyID != 0 {
		stmt = stmt.Where("company_id = ?", companyID)
	}
	err := sweepScope(stmt, "id", limit).Find(&services).Error
	return services, err
}

func (r *repo) ListDueForRenewal(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]clientservicedomain.ClientService, error) {
	var services []clientservicedomain.ClientService
	stmt := db.WithContext(ctx).
		Where("status = ? AND auto_renewal = ? AND renewal_date IS NOT NULL AND renewal_date <= ?",
			clientservicedomain.ServiceStatusActive, true, at)
	err := sweepScope(stmt, "renewal_date", limit).Find(&services).Error
	return services, err
}

func (r *repo) ListRenewalWindow(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]clientservicedomain.ClientService, error) {
	var services []clientservicedomain.ClientService
	stmt := db.WithContext(ctx).
		Where("status = ? AND renewal_date >= ? AND renewal_date < ?",
			clientservicedomain.ServiceStatusActive, from, to)
	err := sweepScope(stmt, "renewal_date", limit).Find(&services).Error
	return services, err
}

func (r *repo) ListInGracePeriod(ctx context.Context, db *gorm.DB, companyID snowflake.ID, at time.Time, graceDays int) ([]clientservicedomain.ClientService, error) {
	cutoff := at.AddDate(0, 0, -graceDays)
	var services []clientservicedomain.ClientService
	err := db.WithContext(ctx).
		Where("company_id = ? AND status = ? AND end_date IS NOT NULL AND end_date < ? AND end_date >= ?",
			companyID, clientservicedomain.ServiceStatusActive, at, cutoff).
		Order("end_date").
		Find(&services).Error
	return services, err
}

func (r *repo) SumActiveMonthlyCost(ctx context.Context, db *gorm.DB, companyID snowflake.ID, clientID *snowflake.ID) (float64, error) {
	stmt := db.WithContext(ctx).
		Model(&clientservicedomain.ClientService{}).
		Where("company_id = ? AND status = ?", companyID, clientservicedomain.ServiceStatusActive)
	if clientID != nil && *clientID != 0 {
		stmt = stmt.Where("client_id = ?", *clientID)
	}

	var total *float64
	if err := stmt.Select("SUM(monthly_cost)").Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repo) FindTemplate(ctx context.Context, db *gorm.DB, companyID, templateID snowflake.ID) (*clientservicedomain.ServiceTemplate, error) {
	var template clientservicedomain.ServiceTemplate
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, templateID).
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}
