package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidInvoice    = errors.New("invalid_invoice")
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidLevel      = errors.New("invalid_level")
	ErrInvalidNote       = errors.New("invalid_note")
	ErrActionNotFound    = errors.New("action_not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
)

// CreateActionRequest schedules a dunning action on an invoice.
type CreateActionRequest struct {
	InvoiceID   string     `json:"invoice_id"`
	ActionType  ActionType `json:"action_type"`
	Level       int        `json:"level"`
	Message     string     `json:"message,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// AddNoteRequest appends a collection note.
type AddNoteRequest struct {
	ClientID  string  `json:"client_id"`
	InvoiceID *string `json:"invoice_id,omitempty"`
	Note      string  `json:"note"`
	Author    string  `json:"author,omitempty"`
}

// EscalationReport summarizes one escalation sweep over overdue invoices.
type EscalationReport struct {
	Created int       `json:"created"`
	Skipped int       `json:"skipped"`
	Failed  []string  `json:"failed,omitempty"`
	RanAt   time.Time `json:"ran_at"`
}

// Service manages the collections trail for overdue invoices.
type Service interface {
	CreateAction(ctx context.Context, req CreateActionRequest) (DunningAction, error)
	MarkSent(ctx context.Context, actionID string) error
	MarkResponded(ctx context.Context, actionID string) error
	MarkFailed(ctx context.Context, actionID string) error
	ListActionsForInvoice(ctx context.Context, invoiceID string) ([]DunningAction, error)

	AddNote(ctx context.Context, req AddNoteRequest) (CollectionNote, error)
	ListNotes(ctx context.Context, clientID string) ([]CollectionNote, error)

	// EscalateOverdueInvoices walks all overdue invoices and creates the
	// next dunning level once an invoice has been overdue long enough.
	EscalateOverdueInvoices(ctx context.Context, batchSize int) (EscalationReport, error)
}

// NextLevel returns the escalation level an invoice qualifies for by days
// overdue: level 1 after 7 days, then 14, 30 and 60. Zero means none yet.
func NextLevel(daysOverdue int) int {
	switch {
	case daysOverdue >= 60:
		return 4
	case daysOverdue >= 30:
		return 3
	case daysOverdue >= 14:
		return 2
	case daysOverdue >= 7:
		return 1
	default:
		return 0
	}
}

// ChannelForLevel is the default contact channel per escalation level.
func ChannelForLevel(level int) ActionType {
	switch level {
	case 1, 2:
		return ActionEmail
	case 3:
		return ActionCall
	default:
		return ActionLetter
	}
}
