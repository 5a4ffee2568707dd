// Package domain defines contract renewal processing.
package domain

import (
	"context"
	"errors"
	"time"

	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
)

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrInvalidService  = errors.New("invalid_service")
	ErrInvalidDays     = errors.New("invalid_days")
	ErrServiceNotFound = errors.New("service_not_found")
	ErrNotEligible     = errors.New("not_eligible_for_renewal")
)

// MaxRenewableBreaches is the breach count above which a contract never
// auto-renews and must be handled by an account manager.
const MaxRenewableBreaches = 5

// GraceDays is how long past its end date a service stays renewable.
const GraceDays = 30

// ReminderWindows are the days-before-renewal marks that trigger reminders.
var ReminderWindows = []int{30, 14, 7}

// Report partitions one auto-renewal sweep by outcome. Failures never stop
// the sweep.
type Report struct {
	Processed []string  `json:"processed"`
	Skipped   []string  `json:"skipped"`
	Failed    []string  `json:"failed"`
	RanAt     time.Time `json:"ran_at"`
}

// ReminderReport summarizes one reminder sweep.
type ReminderReport struct {
	Sent    int       `json:"sent"`
	Deduped int       `json:"deduped"`
	Failed  int       `json:"failed"`
	RanAt   time.Time `json:"ran_at"`
}

// Service drives contract renewals: the automatic sweep, the reminder
// cadence, and the post-expiry grace window.
type Service interface {
	// ProcessAutoRenewals renews every due, eligible service. Per-service
	// failures are isolated and reported.
	ProcessAutoRenewals(ctx context.Context, batchSize int) (Report, error)

	// SendRenewalReminders records reminder events for services whose
	// renewal date falls on one of the reminder windows. Re-runs are
	// deduplicated.
	SendRenewalReminders(ctx context.Context, batchSize int) (ReminderReport, error)

	// ListGracePeriod returns this company's services past their end date
	// but still inside the grace window.
	ListGracePeriod(ctx context.Context) ([]clientservicedomain.ClientService, error)

	// ExtendGracePeriod pushes a service's end date out by the given days.
	ExtendGracePeriod(ctx context.Context, serviceID string, days int) error
}

// Eligible reports whether a service can be renewed at all: it must be
// active, carry a renewal date, and sit at or under the breach ceiling.
func Eligible(service *clientservicedomain.ClientService) bool {
	return service.Status == clientservicedomain.ServiceStatusActive &&
		service.RenewalDate != nil &&
		service.SLABreachesCount <= MaxRenewableBreaches
}

// TermMonths is the renewal extension implied by a billing cycle.
func TermMonths(cycle clientservicedomain.BillingCycle) int {
	switch cycle {
	case clientservicedomain.BillingCycleQuarterly:
		return 3
	case clientservicedomain.BillingCycleSemiAnnually:
		return 6
	case clientservicedomain.BillingCycleAnnually:
		return 12
	default:
		return 1
	}
}
