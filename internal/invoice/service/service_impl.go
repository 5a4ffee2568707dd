package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, tx *gorm.DB, req invoicedomain.CreateRequest) (invoicedomain.Invoice, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidCompany
	}
	if tx == nil {
		tx = s.db
	}

	total := decimal.Zero
	items := make([]invoicedomain.InvoiceItem, 0, len(req.Lines))
	invoiceID := s.genID.Generate()
	for _, line := range req.Lines {
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		amount := decimal.NewFromFloat(line.UnitAmount).
			Mul(decimal.NewFromInt(quantity)).
			Round(2)
		if amount.IsNegative() {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvalidAmount
		}
		total = total.Add(amount)
		items = append(items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			CompanyID:   companyID,
			InvoiceID:   invoiceID,
			Description: strings.TrimSpace(line.Description),
			Quantity:    quantity,
			UnitAmount:  line.UnitAmount,
			Amount:      amount.InexactFloat64(),
		})
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	issuedAt := req.IssuedAt
	invoice := invoicedomain.Invoice{
		ID:          invoiceID,
		CompanyID:   companyID,
		ClientID:    req.ClientID,
		ServiceID:   req.ServiceID,
		Status:      invoicedomain.InvoiceStatusOpen,
		TotalAmount: total.Round(2).InexactFloat64(),
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		IssuedAt:    &issuedAt,
		DueAt:       req.DueAt,
		Metadata:    metadata,
	}

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return invoicedomain.Invoice{}, err
	}
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return invoicedomain.Invoice{}, err
		}
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Float64("total_amount", invoice.TotalAmount),
		zap.Int("lines", len(items)),
	)
	return invoice, nil
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, invoiceID string) (invoicedomain.Invoice, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidCompany
	}

	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}

	var invoice invoicedomain.Invoice
	if err := s.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
		}
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

// ListOverdue implements domain.Service. It is company-agnostic because the
// dunning scheduler sweeps all tenants.
func (s *Service) ListOverdue(ctx context.Context, at time.Time, limit int) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	stmt := s.db.WithContext(ctx).
		Where("status = ? AND due_at IS NOT NULL AND due_at < ?", invoicedomain.InvoiceStatusOpen, at)
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Order("due_at").Find(&invoices).Error
	return invoices, err
}

// MarkPaid implements domain.Service.
func (s *Service) MarkPaid(ctx context.Context, invoiceID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return invoicedomain.ErrInvalidCompany
	}

	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return invoicedomain.ErrInvoiceNotFound
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("company_id = ? AND id = ? AND status = ?", companyID, id, invoicedomain.InvoiceStatusOpen).
		Updates(map[string]any{
			"status":     invoicedomain.InvoiceStatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicedomain.ErrInvoiceNotFound
	}
	return nil
}
