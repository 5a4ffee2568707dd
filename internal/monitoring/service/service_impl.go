package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	monitoringdomain "github.com/mspforge/mspforge/internal/monitoring/domain"
	"github.com/mspforge/mspforge/internal/observability/metrics"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/mspforge/mspforge/pkg/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	endingSoonDays       = 30
	renewalDueDays       = 30
	urgentWindowDays     = 7
	breachWarnThreshold  = 3
	breachCritThreshold  = 5
	reviewCycleDays      = 90
	degradationThreshold = 10.0
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	repo    clientservicedomain.Repository
	events  eventsdomain.Recorder
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock

	Repo    clientservicedomain.Repository
	Events  eventsdomain.Recorder
	Metrics *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) monitoringdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("monitoring.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		events:  p.Events,
		metrics: p.Metrics,
	}
}

// GetServiceAlerts implements domain.Service.
func (s *Service) GetServiceAlerts(ctx context.Context, serviceID string) ([]monitoringdomain.Alert, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, monitoringdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(serviceID))
	if err != nil || id == 0 {
		return nil, monitoringdomain.ErrInvalidService
	}

	service, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, monitoringdomain.ErrServiceNotFound
	}

	return EvaluateAlerts(service, s.clock.Now()), nil
}

// EvaluateAlerts runs every alert rule against one service. Pure; the caller
// decides what to do with the result.
func EvaluateAlerts(service *clientservicedomain.ClientService, now time.Time) []monitoringdomain.Alert {
	var alerts []monitoringdomain.Alert
	add := func(alertType monitoringdomain.AlertType, severity monitoringdomain.Severity, message string) {
		alerts = append(alerts, monitoringdomain.Alert{
			ServiceID: service.ID.String(),
			ClientID:  service.ClientID.String(),
			Type:      alertType,
			Severity:  severity,
			Message:   message,
		})
	}

	if service.EndDate != nil && !service.EndDate.Before(now) {
		days := daysUntil(now, *service.EndDate)
		if days <= urgentWindowDays {
			add(monitoringdomain.AlertEndingSoon, monitoringdomain.SeverityCritical,
				fmt.Sprintf("service ends in %d days", days))
		} else if days <= endingSoonDays {
			add(monitoringdomain.AlertEndingSoon, monitoringdomain.SeverityWarning,
				fmt.Sprintf("service ends in %d days", days))
		}
	}

	if service.RenewalDate != nil && !service.RenewalDate.Before(now) {
		days := daysUntil(now, *service.RenewalDate)
		if days <= urgentWindowDays {
			add(monitoringdomain.AlertRenewalDue, monitoringdomain.SeverityWarning,
				fmt.Sprintf("renewal due in %d days", days))
		} else if days <= renewalDueDays {
			add(monitoringdomain.AlertRenewalDue, monitoringdomain.SeverityInfo,
				fmt.Sprintf("renewal due in %d days", days))
		}
	}

	if service.SLABreachesCount > breachCritThreshold {
		add(monitoringdomain.AlertSLABreaches, monitoringdomain.SeverityCritical,
			fmt.Sprintf("%d SLA breaches on record", service.SLABreachesCount))
	} else if service.SLABreachesCount > breachWarnThreshold {
		add(monitoringdomain.AlertSLABreaches, monitoringdomain.SeverityWarning,
			fmt.Sprintf("%d SLA breaches on record", service.SLABreachesCount))
	}

	if service.LastReviewDate == nil {
		add(monitoringdomain.AlertOverdueReview, monitoringdomain.SeverityInfo,
			"service has never been reviewed")
	} else if daysUntil(*service.LastReviewDate, now) > reviewCycleDays {
		add(monitoringdomain.AlertOverdueReview, monitoringdomain.SeverityInfo,
			fmt.Sprintf("last review was %d days ago", daysUntil(*service.LastReviewDate, now)))
	}

	switch {
	case service.HealthScore < health.PoorMin:
		add(monitoringdomain.AlertLowHealth, monitoringdomain.SeverityCritical,
			fmt.Sprintf("health score %.1f", service.HealthScore))
	case service.HealthScore < health.FairMin:
		add(monitoringdomain.AlertLowHealth, monitoringdomain.SeverityWarning,
			fmt.Sprintf("health score %.1f", service.HealthScore))
	}

	return alerts
}

// RunHealthChecks implements domain.Service.
func (s *Service) RunHealthChecks(ctx context.Context, batchSize int) (monitoringdomain.HealthCheckReport, error) {
	now := s.clock.Now()
	report := monitoringdomain.HealthCheckReport{RanAt: now}

	services, err := s.repo.ListActiveMonitored(ctx, s.db, 0, batchSize)
	if err != nil {
		return report, err
	}

	for i := range services {
		service := &services[i]
		if err := s.checkOne(ctx, service, now, &report); err != nil {
			s.log.Warn("health check failed",
				zap.String("service_id", service.ID.String()),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, service.ID.String())
		}
	}

	s.log.Info("health check sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("degraded", report.Degraded),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *Service) checkOne(ctx context.Context, service *clientservicedomain.ClientService, now time.Time, report *monitoringdomain.HealthCheckReport) error {
	// The sweep crosses tenants; events are recorded under each service's
	// own company.
	ctx = tenantctx.WithCompanyID(ctx, int64(service.CompanyID))

	previous := service.HealthScore
	score := health.Score(health.Input{
		SLABreaches:  service.SLABreachesCount,
		Satisfaction: service.ClientSatisfaction,
		LastReviewAt: service.LastReviewDate,
		Uptime:       service.Uptime,
		Now:          now,
	})

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		service.HealthScore = score
		service.HealthCheckedAt = &now
		service.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		if previous-score >= degradationThreshold {
			return s.events.Record(ctx, tx, eventsdomain.Event{
				Type: eventsdomain.EventHealthDegraded,
				Payload: map[string]any{
					"service_id":     service.ID.String(),
					"previous_score": previous,
					"score":          score,
				},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	report.Checked++
	if previous-score >= degradationThreshold {
		report.Degraded++
	}
	if s.metrics != nil {
		s.metrics.RecordHealthCheck(ctx, string(health.Classify(score)))
	}
	return nil
}

func daysUntil(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
