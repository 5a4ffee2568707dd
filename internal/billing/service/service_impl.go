package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/mspforge/mspforge/internal/billing/domain"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/mspforge/mspforge/internal/clock"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cancellationFeeRate = 0.5

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	invoicesvc invoicedomain.Service
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Invoicesvc invoicedomain.Service
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		invoicesvc: p.Invoicesvc,
	}
}

// CalculateProration implements domain.Service.
func (s *Service) CalculateProration(service *clientservicedomain.ClientService, start, end time.Time) (float64, error) {
	if end.Before(start) {
		return 0, billingdomain.ErrInvalidPeriod
	}

	daysInPeriod := service.BillingCycle.DaysInCycle()
	actualDays := int(end.Sub(start).Hours() / 24)
	fullCost := decimal.NewFromFloat(service.MonthlyCost)

	// No over-proration: a period at least as long as the cycle bills the
	// full cycle cost exactly.
	if actualDays >= daysInPeriod {
		return fullCost.Round(2).InexactFloat64(), nil
	}

	prorated := fullCost.
		Div(decimal.NewFromInt(int64(daysInPeriod))).
		Mul(decimal.NewFromInt(int64(actualDays))).
		Round(2)
	return prorated.InexactFloat64(), nil
}

// CalculateCancellationFee implements domain.Service.
func (s *Service) CalculateCancellationFee(service *clientservicedomain.ClientService, cancelDate time.Time) float64 {
	if service.EndDate == nil || !cancelDate.Before(*service.EndDate) {
		return 0
	}

	months := wholeMonthsBetween(cancelDate, *service.EndDate)
	if months <= 0 {
		return 0
	}

	fee := decimal.NewFromFloat(service.MonthlyCost).
		Mul(decimal.NewFromInt(int64(months))).
		Mul(decimal.NewFromFloat(cancellationFeeRate)).
		Round(2)
	return fee.InexactFloat64()
}

// CalculateContractValue implements domain.Service.
func (s *Service) CalculateContractValue(service *clientservicedomain.ClientService, at time.Time) float64 {
	if service.EndDate == nil || !at.Before(*service.EndDate) {
		return 0
	}
	months := wholeMonthsBetween(at, *service.EndDate)
	if months <= 0 {
		return 0
	}
	value := decimal.NewFromFloat(service.MonthlyCost).
		Mul(decimal.NewFromInt(int64(months))).
		Round(2)
	return value.InexactFloat64()
}

// CreateRecurringBilling implements domain.Service. Idempotent: a service
// that already has a schedule keeps it.
func (s *Service) CreateRecurringBilling(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService) (*billingdomain.Recurring, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, billingdomain.ErrInvalidCompany
	}
	if tx == nil {
		tx = s.db
	}

	if service.HasRecurringBilling() {
		var existing billingdomain.Recurring
		if err := tx.WithContext(ctx).
			Where("company_id = ? AND id = ?", companyID, *service.RecurringBillingID).
			First(&existing).Error; err == nil {
			return &existing, nil
		}
	}

	now := s.clock.Now()
	nextBill := now.AddDate(0, 0, service.BillingCycle.DaysInCycle())
	recurring := billingdomain.Recurring{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		ClientID:     service.ClientID,
		ServiceID:    service.ID,
		Status:       billingdomain.RecurringStatusActive,
		Amount:       service.MonthlyCost,
		Currency:     service.Currency,
		Frequency:    string(service.BillingCycle),
		NextBillDate: &nextBill,
	}
	if err := tx.WithContext(ctx).Create(&recurring).Error; err != nil {
		return nil, fmt.Errorf("create recurring schedule: %w", err)
	}

	service.RecurringBillingID = &recurring.ID
	if err := tx.WithContext(ctx).
		Model(&clientservicedomain.ClientService{}).
		Where("id = ?", service.ID).
		Update("recurring_billing_id", recurring.ID).Error; err != nil {
		return nil, err
	}

	s.log.Info("recurring billing created",
		zap.String("service_id", service.ID.String()),
		zap.String("recurring_id", recurring.ID.String()),
		zap.Float64("amount", recurring.Amount),
	)
	return &recurring, nil
}

// SuspendBilling implements domain.Service.
func (s *Service) SuspendBilling(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService) error {
	return s.setBillingStatus(ctx, tx, service, billingdomain.RecurringStatusPaused)
}

// ResumeBilling implements domain.Service.
func (s *Service) ResumeBilling(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService) error {
	return s.setBillingStatus(ctx, tx, service, billingdomain.RecurringStatusActive)
}

func (s *Service) setBillingStatus(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService, status billingdomain.RecurringStatus) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return billingdomain.ErrInvalidCompany
	}
	if !service.HasRecurringBilling() {
		// Nothing to toggle; suspending a service without billing is fine.
		return nil
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if status == billingdomain.RecurringStatusPaused {
		updates["paused_at"] = now
	} else {
		updates["paused_at"] = nil
	}

	result := tx.WithContext(ctx).
		Model(&billingdomain.Recurring{}).
		Where("company_id = ? AND id = ?", companyID, *service.RecurringBillingID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return billingdomain.ErrRecurringNotFound
	}
	return nil
}

// GenerateServiceInvoice implements domain.Service.
func (s *Service) GenerateServiceInvoice(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService, start, end time.Time) (invoicedomain.Invoice, error) {
	if tx == nil {
		tx = s.db
	}

	prorated, err := s.CalculateProration(service, start, end)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	lines := []invoicedomain.Line{{
		Description: fmt.Sprintf("%s (%s - %s)", service.Name, start.Format("2006-01-02"), end.Format("2006-01-02")),
		Quantity:    1,
		UnitAmount:  prorated,
	}}
	// The setup fee rides on the first invoice only.
	if service.TotalRevenue == 0 && service.SetupCost > 0 {
		lines = append(lines, invoicedomain.Line{
			Description: fmt.Sprintf("%s setup", service.Name),
			Quantity:    1,
			UnitAmount:  service.SetupCost,
		})
	}

	dueAt := end.AddDate(0, 0, 14)
	invoice, err := s.invoicesvc.Create(ctx, tx, invoicedomain.CreateRequest{
		ClientID:  service.ClientID,
		ServiceID: &service.ID,
		Currency:  service.Currency,
		IssuedAt:  s.clock.Now(),
		DueAt:     &dueAt,
		Lines:     lines,
		Metadata: map[string]any{
			"period_start": start.Format(time.RFC3339),
			"period_end":   end.Format(time.RFC3339),
		},
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	newRevenue := decimal.NewFromFloat(service.TotalRevenue).
		Add(decimal.NewFromFloat(invoice.TotalAmount)).
		Round(2).InexactFloat64()
	if err := tx.WithContext(ctx).
		Model(&clientservicedomain.ClientService{}).
		Where("id = ?", service.ID).
		Update("total_revenue", newRevenue).Error; err != nil {
		return invoicedomain.Invoice{}, err
	}
	service.TotalRevenue = newRevenue

	return invoice, nil
}

// wholeMonthsBetween counts complete calendar months from a to b.
func wholeMonthsBetween(a, b time.Time) int {
	if !a.Before(b) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
