// Package domain contains persistence models for client services.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ServiceStatus represents lifecycle states for a client service.
type ServiceStatus string

const (
	ServiceStatusPending   ServiceStatus = "PENDING"
	ServiceStatusActive    ServiceStatus = "ACTIVE"
	ServiceStatusSuspended ServiceStatus = "SUSPENDED"
	ServiceStatusCancelled ServiceStatus = "CANCELLED"
)

// ProvisioningStatus tracks the provisioning workflow independently of the
// billing lifecycle. An active service has normally reached COMPLETED, but
// the two fields evolve on their own.
type ProvisioningStatus string

const (
	ProvisioningStatusPending    ProvisioningStatus = "PENDING"
	ProvisioningStatusInProgress ProvisioningStatus = "IN_PROGRESS"
	ProvisioningStatusCompleted  ProvisioningStatus = "COMPLETED"
	ProvisioningStatusFailed     ProvisioningStatus = "FAILED"
)

// BillingCycle is the billing period of a service.
type BillingCycle string

const (
	BillingCycleWeekly       BillingCycle = "WEEKLY"
	BillingCycleMonthly      BillingCycle = "MONTHLY"
	BillingCycleQuarterly    BillingCycle = "QUARTERLY"
	BillingCycleSemiAnnually BillingCycle = "SEMI_ANNUALLY"
	BillingCycleAnnually     BillingCycle = "ANNUALLY"
)

// ClientService is one billable, deliverable service instance for a client.
// Rows are never hard-deleted; every lifecycle method is a status transition.
type ClientService struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	CompanyID  snowflake.ID `gorm:"not null;index"`
	ClientID   snowflake.ID `gorm:"not null;index"`
	TemplateID snowflake.ID `gorm:"index"`

	Name     string        `gorm:"type:text;not null"`
	Category string        `gorm:"type:text"`
	Status   ServiceStatus `gorm:"type:text;not null;default:'PENDING'"`

	ProvisioningStatus ProvisioningStatus `gorm:"type:text;not null;default:'PENDING'"`
	ProvisionedAt      *time.Time         `gorm:""`
	ProvisioningError  *string            `gorm:"type:text"`

	StartDate   *time.Time `gorm:""`
	EndDate     *time.Time `gorm:""`
	RenewalDate *time.Time `gorm:""`
	ActivatedAt *time.Time `gorm:""`
	SuspendedAt *time.Time `gorm:""`
	CancelledAt *time.Time `gorm:""`

	MonthlyCost        float64       `gorm:"not null;default:0"`
	SetupCost          float64       `gorm:"not null;default:0"`
	BillingCycle       BillingCycle  `gorm:"type:text;not null;default:'MONTHLY'"`
	Currency           string        `gorm:"type:text;not null;default:'USD'"`
	RecurringBillingID *snowflake.ID `gorm:"index"`
	CancellationFee    *float64      `gorm:""`
	TotalRevenue       float64       `gorm:"not null;default:0"`

	HealthScore        float64    `gorm:"not null;default:100"`
	HealthCheckedAt    *time.Time `gorm:""`
	SLABreachesCount   int        `gorm:"not null;default:0"`
	ClientSatisfaction *float64   `gorm:""`
	LastReviewDate     *time.Time `gorm:""`
	Uptime             *float64   `gorm:""`

	AssignedTechnician *string `gorm:"type:text"`
	BackupTechnician   *string `gorm:"type:text"`

	AutoRenewal       bool `gorm:"not null;default:false"`
	RenewalCount      int  `gorm:"not null;default:0"`
	MonitoringEnabled bool `gorm:"not null;default:false"`

	SLATerms datatypes.JSONMap `gorm:"type:jsonb"`
	Notes    string            `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ClientService) TableName() string { return "client_services" }

// ServiceTemplate is a catalog entry new services are provisioned from.
type ServiceTemplate struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	CompanyID       snowflake.ID      `gorm:"not null;index"`
	Name            string            `gorm:"type:text;not null"`
	Category        string            `gorm:"type:text"`
	MonthlyCost     float64           `gorm:"not null;default:0"`
	SetupCost       float64           `gorm:"not null;default:0"`
	BillingCycle    BillingCycle      `gorm:"type:text;not null;default:'MONTHLY'"`
	Currency        string            `gorm:"type:text;not null;default:'USD'"`
	DefaultSLATerms datatypes.JSONMap `gorm:"type:jsonb"`
	Active          bool              `gorm:"not null;default:true"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ServiceTemplate) TableName() string { return "service_templates" }

// DaysInCycle returns the assumed days per billing cycle used for proration.
// These are fixed approximations, not calendar-accurate periods.
func (c BillingCycle) DaysInCycle() int {
	switch c {
	case BillingCycleWeekly:
		return 7
	case BillingCycleQuarterly:
		return 90
	case BillingCycleSemiAnnually:
		return 180
	case BillingCycleAnnually:
		return 365
	default:
		return 30
	}
}

// IsSuspended reports whether the service is currently suspended.
func (s *ClientService) IsSuspended() bool { return s.Status == ServiceStatusSuspended }

// HasRecurringBilling reports whether a recurring schedule is linked.
func (s *ClientService) HasRecurringBilling() bool {
	return s.RecurringBillingID != nil && *s.RecurringBillingID != 0
}
