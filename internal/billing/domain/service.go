package domain

import (
	"context"
	"errors"
	"time"

	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	"gorm.io/gorm"
)

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrRecurringNotFound = errors.New("recurring_not_found")
)

// Service computes pricing and manages recurring billing for client services.
//
// Methods that take a *gorm.DB run inside the caller's transaction; the pure
// calculations take none.
type Service interface {
	// CalculateProration returns the partial-period amount for the service's
	// billing cycle between start and end, capped at the full cycle cost and
	// rounded to 2 decimals.
	CalculateProration(service *clientservicedomain.ClientService, start, end time.Time) (float64, error)

	// CalculateCancellationFee returns 50% of the remaining whole-month
	// contract value, or 0 when no end date applies.
	CalculateCancellationFee(service *clientservicedomain.ClientService, cancelDate time.Time) float64

	// CalculateContractValue returns monthly cost times remaining whole months.
	CalculateContractValue(service *clientservicedomain.ClientService, at time.Time) float64

	CreateRecurringBilling(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService) (*Recurring, error)
	SuspendBilling(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService) error
	ResumeBilling(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService) error

	// GenerateServiceInvoice invoices the prorated period plus, on first
	// invoice, the setup fee, and adds the total to the service's running
	// revenue counter.
	GenerateServiceInvoice(ctx context.Context, tx *gorm.DB, service *clientservicedomain.ClientService, start, end time.Time) (invoicedomain.Invoice, error)
}
