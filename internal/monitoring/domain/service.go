// Package domain defines service health monitoring and alerting.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrInvalidService  = errors.New("invalid_service")
	ErrServiceNotFound = errors.New("service_not_found")
)

// Severity orders alerts for triage.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// AlertType identifies the rule that produced an alert.
type AlertType string

const (
	AlertEndingSoon    AlertType = "ending_soon"
	AlertRenewalDue    AlertType = "renewal_due"
	AlertSLABreaches   AlertType = "sla_breaches"
	AlertOverdueReview AlertType = "overdue_review"
	AlertLowHealth     AlertType = "low_health"
)

// Alert is a computed condition on a service. Alerts are derived on demand
// and never persisted.
type Alert struct {
	ServiceID string    `json:"service_id"`
	ClientID  string    `json:"client_id"`
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// HealthCheckReport summarizes one monitoring sweep.
type HealthCheckReport struct {
	Checked  int       `json:"checked"`
	Degraded int       `json:"degraded"`
	Failed   []string  `json:"failed,omitempty"`
	RanAt    time.Time `json:"ran_at"`
}

// Service recomputes health scores and evaluates alert rules for monitored
// services.
type Service interface {
	// GetServiceAlerts evaluates all alert rules for one service.
	GetServiceAlerts(ctx context.Context, serviceID string) ([]Alert, error)

	// RunHealthChecks recomputes the health score of every active monitored
	// service across all companies. Failures are isolated per service.
	RunHealthChecks(ctx context.Context, batchSize int) (HealthCheckReport, error)
}
