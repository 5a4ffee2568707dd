// Package domain defines the provisioning workflow contract.
package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidService    = errors.New("invalid_service")
	ErrServiceNotFound   = errors.New("service_not_found")
	ErrInvalidTechnician = errors.New("invalid_technician")
	ErrAlreadyCompleted  = errors.New("provisioning_already_completed")
	ErrNotInProgress     = errors.New("provisioning_not_in_progress")
)

// Step names reported by Status, in workflow order.
const (
	StepServiceCreated       = "Service Created"
	StepTechniciansAssigned  = "Technicians Assigned"
	StepParametersConfigured = "Parameters Configured"
	StepMonitoringEnabled    = "Monitoring Enabled"
	StepCompleted            = "Provisioning Completed"
)

// StepStatus is one workflow step and whether it has been performed.
type StepStatus struct {
	Name     string `json:"name"`
	Complete bool   `json:"complete"`
}

// Progress is a derived snapshot of the provisioning workflow. It is computed
// from the service row's fields, never stored.
type Progress struct {
	Steps   []StepStatus `json:"steps"`
	Percent int          `json:"percent"`
}

// AssignRequest assigns the delivery technicians.
type AssignRequest struct {
	Primary string `json:"primary"`
	Backup  string `json:"backup,omitempty"`
}

// ConfigureRequest sets the SLA parameters for the service.
type ConfigureRequest struct {
	SLATerms          map[string]any `json:"sla_terms,omitempty"`
	SupportHours      string         `json:"support_hours,omitempty"`
	ResponseMinutes   int            `json:"response_minutes,omitempty"`
	ResolutionMinutes int            `json:"resolution_minutes,omitempty"`
}

// Service drives a pending client service to provisioned.
type Service interface {
	Start(ctx context.Context, serviceID string) error
	AssignTechnicians(ctx context.Context, serviceID string, req AssignRequest) error
	Configure(ctx context.Context, serviceID string, req ConfigureRequest) error
	SetupMonitoring(ctx context.Context, serviceID string) error
	Complete(ctx context.Context, serviceID string) error
	Fail(ctx context.Context, serviceID, reason string) error
	Status(ctx context.Context, serviceID string) (Progress, error)
}
