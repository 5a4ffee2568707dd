package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mspforge/mspforge/internal/cache"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	"github.com/mspforge/mspforge/internal/locks"
	"github.com/mspforge/mspforge/internal/notify"
	"github.com/mspforge/mspforge/internal/observability/metrics"
	renewaldomain "github.com/mspforge/mspforge/internal/renewal/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	templateCacheTTL = 10 * time.Minute
	reminderClaimTTL = 72 * time.Hour
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	repo      clientservicedomain.Repository
	lifecycle clientservicedomain.Service
	events    eventsdomain.Recorder
	deduper   *locks.Deduper
	notifier  notify.Notifier
	metrics   *metrics.Metrics

	templates cache.Cache[snowflake.ID, *clientservicedomain.ServiceTemplate]
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock

	Repo      clientservicedomain.Repository
	Lifecycle clientservicedomain.Service
	Events    eventsdomain.Recorder
	Deduper   *locks.Deduper
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) renewaldomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("renewal.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		lifecycle: p.Lifecycle,
		events:    p.Events,
		deduper:   p.Deduper,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
		templates: cache.NewTTLCache[snowflake.ID, *clientservicedomain.ServiceTemplate](),
	}
}

// ProcessAutoRenewals implements domain.Service.
func (s *Service) ProcessAutoRenewals(ctx context.Context, batchSize int) (renewaldomain.Report, error) {
	now := s.clock.Now()
	report := renewaldomain.Report{RanAt: now}

	due, err := s.repo.ListDueForRenewal(ctx, s.db, now, batchSize)
	if err != nil {
		return report, err
	}

	for i := range due {
		service := &due[i]
		id := service.ID.String()
		tctx := tenantctx.WithCompanyID(ctx, int64(service.CompanyID))

		if !renewaldomain.Eligible(service) {
			report.Skipped = append(report.Skipped, id)
			s.recordOutcome(tctx, "skipped")
			continue
		}

		if err := s.renewOne(tctx, service); err != nil {
			s.log.Warn("auto-renewal failed",
				zap.String("service_id", id),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, id)
			s.recordOutcome(tctx, "failed")
			continue
		}

		report.Processed = append(report.Processed, id)
		s.recordOutcome(tctx, "processed")
	}

	s.log.Info("auto-renewal sweep finished",
		zap.Int("processed", len(report.Processed)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *Service) renewOne(ctx context.Context, service *clientservicedomain.ClientService) error {
	// Pricing ratchets up to the current template price, never down.
	if err := s.applyTemplatePricing(ctx, service); err != nil {
		s.log.Warn("template pricing check failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
	}

	months := renewaldomain.TermMonths(service.BillingCycle)
	_, err := s.lifecycle.Renew(ctx, service.ID.String(), months)
	return err
}

func (s *Service) applyTemplatePricing(ctx context.Context, service *clientservicedomain.ClientService) error {
	if service.TemplateID == 0 {
		return nil
	}

	template, ok := s.templates.Get(service.TemplateID)
	if !ok {
		var err error
		template, err = s.repo.FindTemplate(ctx, s.db, service.CompanyID, service.TemplateID)
		if err != nil {
			return err
		}
		s.templates.Set(service.TemplateID, template, templateCacheTTL)
	}
	if template == nil || template.MonthlyCost <= service.MonthlyCost {
		return nil
	}

	previous := service.MonthlyCost
	service.MonthlyCost = template.MonthlyCost
	if err := s.db.WithContext(ctx).
		Model(&clientservicedomain.ClientService{}).
		Where("id = ?", service.ID).
		Update("monthly_cost", template.MonthlyCost).Error; err != nil {
		return err
	}

	s.log.Info("renewal price ratcheted",
		zap.String("service_id", service.ID.String()),
		zap.Float64("previous", previous),
		zap.Float64("current", template.MonthlyCost),
	)
	return nil
}

// SendRenewalReminders implements domain.Service.
func (s *Service) SendRenewalReminders(ctx context.Context, batchSize int) (renewaldomain.ReminderReport, error) {
	now := s.clock.Now()
	report := renewaldomain.ReminderReport{RanAt: now}

	for _, window := range renewaldomain.ReminderWindows {
		from := now.AddDate(0, 0, window-1)
		to := now.AddDate(0, 0, window+1)

		upcoming, err := s.repo.ListRenewalWindow(ctx, s.db, from, to, batchSize)
		if err != nil {
			return report, err
		}

		for i := range upcoming {
			service := &upcoming[i]
			if err := s.remindOne(ctx, service, window, &report); err != nil {
				s.log.Warn("renewal reminder failed",
					zap.String("service_id", service.ID.String()),
					zap.Error(err),
				)
				report.Failed++
			}
		}
	}

	s.log.Info("renewal reminder sweep finished",
		zap.Int("sent", report.Sent),
		zap.Int("deduped", report.Deduped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) remindOne(ctx context.Context, service *clientservicedomain.ClientService, window int, report *renewaldomain.ReminderReport) error {
	tctx := tenantctx.WithCompanyID(ctx, int64(service.CompanyID))
	renewalDay := service.RenewalDate.Format("2006-01-02")

	// One reminder per service, window and renewal date, even when the
	// sweep reruns inside the window.
	key := fmt.Sprintf("renewal:reminder:%s:%d:%s", service.ID.String(), window, renewalDay)
	claimed, err := s.deduper.Claim(ctx, key, reminderClaimTTL)
	if err != nil {
		return err
	}
	if !claimed {
		report.Deduped++
		return nil
	}

	err = s.db.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		return s.events.Record(tctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventRenewalReminder,
			Payload: map[string]any{
				"service_id":   service.ID.String(),
				"client_id":    service.ClientID.String(),
				"window_days":  window,
				"renewal_date": renewalDay,
			},
			DedupeKey: key,
		})
	})
	if err != nil {
		return err
	}

	// Delivery is best effort; the outbox row is the durable record.
	if err := s.notifier.Send(tctx, notify.Message{
		CompanyID: int64(service.CompanyID),
		Channel:   notify.ChannelEmail,
		Recipient: service.ClientID.String(),
		Subject:   fmt.Sprintf("Service renewal in %d days", window),
		Body:      fmt.Sprintf("Service %s renews on %s.", service.Name, renewalDay),
	}); err != nil {
		s.log.Warn("reminder delivery failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
	}

	report.Sent++
	return nil
}

// ListGracePeriod implements domain.Service.
func (s *Service) ListGracePeriod(ctx context.Context) ([]clientservicedomain.ClientService, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, renewaldomain.ErrInvalidCompany
	}
	return s.repo.ListInGracePeriod(ctx, s.db, companyID, s.clock.Now(), renewaldomain.GraceDays)
}

// ExtendGracePeriod implements domain.Service.
func (s *Service) ExtendGracePeriod(ctx context.Context, serviceID string, days int) error {
	if days <= 0 {
		return renewaldomain.ErrInvalidDays
	}
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return renewaldomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(serviceID))
	if err != nil || id == 0 {
		return renewaldomain.ErrInvalidService
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		service, err := s.repo.FindByIDForUpdate(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if service == nil {
			return renewaldomain.ErrServiceNotFound
		}
		if service.EndDate == nil {
			return renewaldomain.ErrNotEligible
		}

		now := s.clock.Now()
		extended := service.EndDate.AddDate(0, 0, days)
		service.EndDate = &extended
		service.UpdatedAt = now

		s.log.Info("grace period extended",
			zap.String("service_id", service.ID.String()),
			zap.Int("days", days),
			zap.Time("end_date", extended),
		)
		return s.repo.Save(ctx, tx, service)
	})
}

func (s *Service) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRenewalProcessed(ctx, outcome)
}
