package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvoiceNotFound = errors.New("invoice_not_found")
)

// Line is one position on an invoice to be created.
type Line struct {
	Description string
	Quantity    int64
	UnitAmount  float64
}

// CreateRequest creates an invoice with its lines in one transaction.
type CreateRequest struct {
	ClientID  snowflake.ID
	ServiceID *snowflake.ID
	Currency  string
	IssuedAt  time.Time
	DueAt     *time.Time
	Lines     []Line
	Metadata  map[string]any
}

type Service interface {
	// Create writes the invoice and its items using the caller's transaction
	// so invoice creation joins the caller's atomicity boundary.
	Create(ctx context.Context, tx *gorm.DB, req CreateRequest) (Invoice, error)
	GetByID(ctx context.Context, invoiceID string) (Invoice, error)
	ListOverdue(ctx context.Context, at time.Time, limit int) ([]Invoice, error)
	MarkPaid(ctx context.Context, invoiceID string) error
}
