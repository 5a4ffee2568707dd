package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, service *ClientService) error
	Save(ctx context.Context, db *gorm.DB, service *ClientService) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*ClientService, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*ClientService, error)
	ListByClient(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) ([]ClientService, error)
	ListActiveMonitored(ctx context.Context, db *gorm.DB, companyID snowflake.ID, limit int) ([]ClientService, error)
	ListDueForRenewal(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]ClientService, error)
	ListRenewalWindow(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]ClientService, error)
	ListInGracePeriod(ctx context.Context, db *gorm.DB, companyID snowflake.ID, at time.Time, graceDays int) ([]ClientService, error)
	SumActiveMonthlyCost(ctx context.Context, db *gorm.DB, companyID snowflake.ID, clientID *snowflake.ID) (float64, error)
	FindTemplate(ctx context.Context, db *gorm.DB, companyID, templateID snowflake.ID) (*ServiceTemplate, error)
}
