package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mspforge/mspforge/internal/clock"
	dunningdomain "github.com/mspforge/mspforge/internal/dunning/domain"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	"github.com/mspforge/mspforge/internal/notify"
	"github.com/mspforge/mspforge/internal/observability/metrics"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	invoices invoicedomain.Service
	events   eventsdomain.Recorder
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Invoices invoicedomain.Service
	Events   eventsdomain.Recorder
	Notifier notify.Notifier
	Metrics  *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) dunningdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("dunning.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: p.Invoices,
		events:   p.Events,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// CreateAction implements domain.Service.
func (s *Service) CreateAction(ctx context.Context, req dunningdomain.CreateActionRequest) (dunningdomain.DunningAction, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return dunningdomain.DunningAction{}, dunningdomain.ErrInvalidCompany
	}
	if req.Level < 1 || req.Level > dunningdomain.MaxLevel {
		return dunningdomain.DunningAction{}, dunningdomain.ErrInvalidLevel
	}
	switch req.ActionType {
	case dunningdomain.ActionEmail, dunningdomain.ActionSMS, dunningdomain.ActionCall, dunningdomain.ActionLetter:
	default:
		return dunningdomain.DunningAction{}, dunningdomain.ErrInvalidAction
	}

	invoice, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return dunningdomain.DunningAction{}, err
	}

	now := s.clock.Now()
	scheduled := now
	if req.ScheduledAt != nil {
		scheduled = *req.ScheduledAt
	}

	action := dunningdomain.DunningAction{
		ID:          s.genID.Generate(),
		CompanyID:   companyID,
		ClientID:    invoice.ClientID,
		InvoiceID:   invoice.ID,
		ActionType:  req.ActionType,
		Level:       req.Level,
		Status:      dunningdomain.ActionStatusPending,
		Message:     strings.TrimSpace(req.Message),
		ScheduledAt: scheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&action).Error; err != nil {
			return err
		}
		return s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventDunningActionCreated,
			Payload: map[string]any{
				"action_id":  action.ID.String(),
				"invoice_id": invoice.ID.String(),
				"level":      action.Level,
				"channel":    string(action.ActionType),
			},
			DedupeKey: fmt.Sprintf("dunning:%s:%d", invoice.ID.String(), action.Level),
		})
	})
	if err != nil {
		return dunningdomain.DunningAction{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordDunningAction(ctx, string(action.ActionType))
	}
	return action, nil
}

// MarkSent implements domain.Service.
func (s *Service) MarkSent(ctx context.Context, actionID string) error {
	return s.transition(ctx, actionID, dunningdomain.ActionStatusSent)
}

// MarkResponded implements domain.Service.
func (s *Service) MarkResponded(ctx context.Context, actionID string) error {
	return s.transition(ctx, actionID, dunningdomain.ActionStatusResponded)
}

// MarkFailed implements domain.Service.
func (s *Service) MarkFailed(ctx context.Context, actionID string) error {
	return s.transition(ctx, actionID, dunningdomain.ActionStatusFailed)
}

// transition enforces the pending -> sent -> responded order; failed is
// reachable from pending and sent.
func (s *Service) transition(ctx context.Context, actionID string, target dunningdomain.ActionStatus) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return dunningdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(actionID))
	if err != nil || id == 0 {
		return dunningdomain.ErrInvalidAction
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var action dunningdomain.DunningAction
		if err := tx.Where("company_id = ? AND id = ?", companyID, id).
			First(&action).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dunningdomain.ErrActionNotFound
			}
			return err
		}

		if !allowed(action.Status, target) {
			return dunningdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		action.Status = target
		action.UpdatedAt = now
		switch target {
		case dunningdomain.ActionStatusSent:
			action.SentAt = &now
		case dunningdomain.ActionStatusResponded:
			action.RespondedAt = &now
		}
		return tx.Save(&action).Error
	})
}

func allowed(from, to dunningdomain.ActionStatus) bool {
	switch to {
	case dunningdomain.ActionStatusSent:
		return from == dunningdomain.ActionStatusPending
	case dunningdomain.ActionStatusResponded:
		return from == dunningdomain.ActionStatusSent
	case dunningdomain.ActionStatusFailed:
		return from == dunningdomain.ActionStatusPending || from == dunningdomain.ActionStatusSent
	}
	return false
}

// ListActionsForInvoice implements domain.Service.
func (s *Service) ListActionsForInvoice(ctx context.Context, invoiceID string) ([]dunningdomain.DunningAction, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, dunningdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return nil, dunningdomain.ErrInvalidInvoice
	}

	var actions []dunningdomain.DunningAction
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND invoice_id = ?", companyID, id).
		Order("level, created_at").
		Find(&actions).Error
	return actions, err
}

// AddNote implements domain.Service.
func (s *Service) AddNote(ctx context.Context, req dunningdomain.AddNoteRequest) (dunningdomain.CollectionNote, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return dunningdomain.CollectionNote{}, dunningdomain.ErrInvalidCompany
	}
	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return dunningdomain.CollectionNote{}, dunningdomain.ErrInvalidNote
	}
	text := strings.TrimSpace(req.Note)
	if text == "" {
		return dunningdomain.CollectionNote{}, dunningdomain.ErrInvalidNote
	}

	note := dunningdomain.CollectionNote{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		ClientID:  clientID,
		Note:      text,
		Author:    strings.TrimSpace(req.Author),
		CreatedAt: s.clock.Now(),
	}
	if req.InvoiceID != nil {
		invID, err := snowflake.ParseString(strings.TrimSpace(*req.InvoiceID))
		if err != nil || invID == 0 {
			return dunningdomain.CollectionNote{}, dunningdomain.ErrInvalidInvoice
		}
		note.InvoiceID = &invID
	}

	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return dunningdomain.CollectionNote{}, err
	}
	return note, nil
}

// ListNotes implements domain.Service.
func (s *Service) ListNotes(ctx context.Context, clientID string) ([]dunningdomain.CollectionNote, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, dunningdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(clientID))
	if err != nil || id == 0 {
		return nil, dunningdomain.ErrInvalidNote
	}

	var notes []dunningdomain.CollectionNote
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND client_id = ?", companyID, id).
		Order("created_at DESC").
		Find(&notes).Error
	return notes, err
}

// EscalateOverdueInvoices implements domain.Service.
func (s *Service) EscalateOverdueInvoices(ctx context.Context, batchSize int) (dunningdomain.EscalationReport, error) {
	now := s.clock.Now()
	report := dunningdomain.EscalationReport{RanAt: now}

	overdue, err := s.invoices.ListOverdue(ctx, now, batchSize)
	if err != nil {
		return report, err
	}

	for i := range overdue {
		invoice := &overdue[i]
		tctx := tenantctx.WithCompanyID(ctx, int64(invoice.CompanyID))

		created, err := s.escalateOne(tctx, invoice, now)
		if err != nil {
			s.log.Warn("dunning escalation failed",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, invoice.ID.String())
			continue
		}
		if created {
			report.Created++
		} else {
			report.Skipped++
		}
	}

	s.log.Info("dunning escalation sweep finished",
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *Service) escalateOne(ctx context.Context, invoice *invoicedomain.Invoice, now time.Time) (bool, error) {
	if invoice.DueAt == nil {
		return false, nil
	}

	daysOverdue := int(now.Sub(*invoice.DueAt).Hours() / 24)
	target := dunningdomain.NextLevel(daysOverdue)
	if target == 0 {
		return false, nil
	}

	var highest int
	err := s.db.WithContext(ctx).
		Model(&dunningdomain.DunningAction{}).
		Where("company_id = ? AND invoice_id = ?", invoice.CompanyID, invoice.ID).
		Select("COALESCE(MAX(level), 0)").
		Scan(&highest).Error
	if err != nil {
		return false, err
	}
	if highest >= target {
		return false, nil
	}

	// Levels advance one step at a time even when an invoice surfaces late.
	level := highest + 1
	channel := dunningdomain.ChannelForLevel(level)

	action := dunningdomain.DunningAction{
		ID:          s.genID.Generate(),
		CompanyID:   invoice.CompanyID,
		ClientID:    invoice.ClientID,
		InvoiceID:   invoice.ID,
		ActionType:  channel,
		Level:       level,
		Status:      dunningdomain.ActionStatusPending,
		Message:     fmt.Sprintf("invoice %s overdue %d days", invoice.ID.String(), daysOverdue),
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&action).Error; err != nil {
			return err
		}
		return s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventDunningActionCreated,
			Payload: map[string]any{
				"action_id":  action.ID.String(),
				"invoice_id": invoice.ID.String(),
				"level":      level,
				"channel":    string(channel),
			},
			DedupeKey: fmt.Sprintf("dunning:%s:%d", invoice.ID.String(), level),
		})
	})
	if err != nil {
		return false, err
	}

	// Delivery is best effort; the action row stays pending until a
	// delivery receipt flips it through MarkSent.
	if err := s.notifier.Send(ctx, notify.Message{
		CompanyID: int64(invoice.CompanyID),
		Channel:   notify.Channel(channel),
		Recipient: invoice.ClientID.String(),
		Subject:   fmt.Sprintf("Payment reminder, level %d", level),
		Body:      action.Message,
	}); err != nil {
		s.log.Warn("dunning delivery failed",
			zap.String("action_id", action.ID.String()),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordDunningAction(ctx, string(channel))
	}
	return true, nil
}
