package domain

import (
	"context"
	"errors"
	"time"

	"github.com/mspforge/mspforge/pkg/health"
)

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidService    = errors.New("invalid_service")
	ErrInvalidTemplate   = errors.New("invalid_template")
	ErrInvalidMonths     = errors.New("invalid_months")
	ErrServiceNotFound   = errors.New("service_not_found")
	ErrTemplateNotFound  = errors.New("template_not_found")
	ErrClientNotFound    = errors.New("client_not_found")
	ErrServiceCancelled  = errors.New("service_cancelled")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrSameClient        = errors.New("same_client")
)

// ProvisionRequest creates a new service from a template for a client.
type ProvisionRequest struct {
	ClientID   string         `json:"client_id"`
	TemplateID string         `json:"template_id"`
	Name       string         `json:"name,omitempty"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	Months     int            `json:"months,omitempty"`
	Overrides  map[string]any `json:"overrides,omitempty"`

	AutoRenewal bool `json:"auto_renewal,omitempty"`
}

// TransitionResult reports a lifecycle transition outcome. Changed is false
// when the call was an idempotent no-op. Degraded lists best-effort side
// effects that failed without blocking the primary state change.
type TransitionResult struct {
	Changed  bool     `json:"changed"`
	Degraded []string `json:"degraded,omitempty"`
}

// ProvisionResult carries the persisted service plus degradation notes.
type ProvisionResult struct {
	Service  ClientService `json:"service"`
	Degraded []string      `json:"degraded,omitempty"`
}

// CancelResult carries the cancellation fee actually recorded. The fee
// defaults to zero when the billing collaborator fails; Degraded says so.
type CancelResult struct {
	Fee      float64  `json:"fee"`
	Degraded []string `json:"degraded,omitempty"`
}

// RenewResult reports the dates after a renewal.
type RenewResult struct {
	RenewalDate  time.Time `json:"renewal_date"`
	EndDate      time.Time `json:"end_date"`
	RenewalCount int       `json:"renewal_count"`
}

// HealthResult is the recomputed health snapshot for one service.
type HealthResult struct {
	Score     float64     `json:"score"`
	Band      health.Band `json:"band"`
	Breaches  int         `json:"sla_breaches"`
	CheckedAt time.Time   `json:"checked_at"`
}

// Service orchestrates the client service lifecycle. Every method resolves
// the company from the context and runs its primary mutation in a transaction.
type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (ProvisionResult, error)
	Activate(ctx context.Context, serviceID string) (TransitionResult, error)
	Suspend(ctx context.Context, serviceID, reason string) (TransitionResult, error)
	Resume(ctx context.Context, serviceID string) (bool, error)
	Cancel(ctx context.Context, serviceID string, effectiveDate *time.Time) (CancelResult, error)
	Renew(ctx context.Context, serviceID string, months int) (RenewResult, error)
	TransferToClient(ctx context.Context, serviceID, newClientID string) error

	GetByID(ctx context.Context, serviceID string) (ClientService, error)
	GetServiceHealth(ctx context.Context, serviceID string) (HealthResult, error)
	CalculateMRR(ctx context.Context, clientID string) (float64, error)
	CalculateARR(ctx context.Context, clientID string) (float64, error)
}
