package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/mspforge/mspforge/internal/billing/domain"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	"github.com/mspforge/mspforge/internal/observability/metrics"
	provisioningdomain "github.com/mspforge/mspforge/internal/provisioning/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/mspforge/mspforge/pkg/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// healthDegradedThreshold is the score drop that emits a degradation event.
const healthDegradedThreshold = 10.0

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo       clientservicedomain.Repository
	clientRepo clientdomain.Repository
	billing    billingdomain.Service
	provision  provisioningdomain.Service
	events     eventsdomain.Recorder
	metrics    *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Repo       clientservicedomain.Repository
	ClientRepo clientdomain.Repository
	Billing    billingdomain.Service
	Provision  provisioningdomain.Service
	Events     eventsdomain.Recorder
	Metrics    *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) clientservicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("clientservice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		clientRepo: p.ClientRepo,
		billing:    p.Billing,
		provision:  p.Provision,
		events:     p.Events,
		metrics:    p.Metrics,
	}
}

// Provision implements domain.Service.
func (s *Service) Provision(ctx context.Context, req clientservicedomain.ProvisionRequest) (clientservicedomain.ProvisionResult, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientservicedomain.ProvisionResult{}, clientservicedomain.ErrInvalidCompany
	}

	clientID, err := parseID(req.ClientID, clientservicedomain.ErrInvalidClient)
	if err != nil {
		return clientservicedomain.ProvisionResult{}, err
	}
	templateID, err := parseID(req.TemplateID, clientservicedomain.ErrInvalidTemplate)
	if err != nil {
		return clientservicedomain.ProvisionResult{}, err
	}

	now := s.clock.Now()
	start := now
	if req.StartDate != nil {
		start = *req.StartDate
	}

	var service clientservicedomain.ClientService
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.clientRepo.FindByID(ctx, tx, companyID, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return clientservicedomain.ErrClientNotFound
		}
		if client.IsArchived() {
			return clientservicedomain.ErrInvalidClient
		}

		template, err := s.repo.FindTemplate(ctx, tx, companyID, templateID)
		if err != nil {
			return err
		}
		if template == nil {
			return clientservicedomain.ErrTemplateNotFound
		}

		service = s.fromTemplate(companyID, clientID, template, req, start, now)
		if err := s.repo.Insert(ctx, tx, &service); err != nil {
			return err
		}

		return s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceProvisioned,
			Payload: map[string]any{
				"service_id":  service.ID.String(),
				"client_id":   clientID.String(),
				"template_id": templateID.String(),
			},
		})
	})
	if err != nil {
		return clientservicedomain.ProvisionResult{}, err
	}

	s.recordTransition(ctx, "", string(clientservicedomain.ServiceStatusPending))

	result := clientservicedomain.ProvisionResult{Service: service}

	// Kicking off the provisioning workflow is best-effort; the service row
	// exists either way and the workflow can be started again later.
	if err := s.provision.Start(ctx, service.ID.String()); err != nil {
		s.log.Warn("provisioning workflow start failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
		result.Degraded = append(result.Degraded, "provisioning_start")
	}

	return result, nil
}

func (s *Service) fromTemplate(
	companyID, clientID snowflake.ID,
	template *clientservicedomain.ServiceTemplate,
	req clientservicedomain.ProvisionRequest,
	start, now time.Time,
) clientservicedomain.ClientService {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = template.Name
	}

	service := clientservicedomain.ClientService{
		ID:                 s.genID.Generate(),
		CompanyID:          companyID,
		ClientID:           clientID,
		TemplateID:         template.ID,
		Name:               name,
		Category:           template.Category,
		Status:             clientservicedomain.ServiceStatusPending,
		ProvisioningStatus: clientservicedomain.ProvisioningStatusPending,
		StartDate:          &start,
		MonthlyCost:        template.MonthlyCost,
		SetupCost:          template.SetupCost,
		BillingCycle:       template.BillingCycle,
		Currency:           template.Currency,
		HealthScore:        100,
		AutoRenewal:        req.AutoRenewal,
		SLATerms:           template.DefaultSLATerms,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if req.Months > 0 {
		end := start.AddDate(0, req.Months, 0)
		service.EndDate = &end
		service.RenewalDate = &end
	}

	applyOverrides(&service, req.Overrides)
	return service
}

// applyOverrides lets callers override a fixed set of template fields.
// Unknown keys are ignored.
func applyOverrides(service *clientservicedomain.ClientService, overrides map[string]any) {
	for key, value := range overrides {
		switch key {
		case "monthly_cost":
			if v, ok := toFloat(value); ok && v >= 0 {
				service.MonthlyCost = v
			}
		case "setup_cost":
			if v, ok := toFloat(value); ok && v >= 0 {
				service.SetupCost = v
			}
		case "billing_cycle":
			if v, ok := value.(string); ok && v != "" {
				service.BillingCycle = clientservicedomain.BillingCycle(strings.ToUpper(v))
			}
		case "category":
			if v, ok := value.(string); ok && v != "" {
				service.Category = v
			}
		case "currency":
			if v, ok := value.(string); ok && v != "" {
				service.Currency = strings.ToUpper(v)
			}
		}
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Activate implements domain.Service. Activating an already active service is
// a no-op; the activation event is recorded at most once per service.
func (s *Service) Activate(ctx context.Context, serviceID string) (clientservicedomain.TransitionResult, error) {
	var result clientservicedomain.TransitionResult
	var activated *clientservicedomain.ClientService

	err := s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		switch service.Status {
		case clientservicedomain.ServiceStatusActive:
			return nil
		case clientservicedomain.ServiceStatusCancelled:
			return clientservicedomain.ErrServiceCancelled
		}

		now := s.clock.Now()
		prior := service.Status
		service.Status = clientservicedomain.ServiceStatusActive
		service.ActivatedAt = &now
		if service.StartDate == nil {
			service.StartDate = &now
		}
		service.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		dedupe := fmt.Sprintf("service.activated:%s", service.ID.String())
		if err := s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceActivated,
			Payload: map[string]any{
				"service_id": service.ID.String(),
				"client_id":  service.ClientID.String(),
			},
			DedupeKey: dedupe,
		}); err != nil {
			return err
		}

		s.recordTransition(ctx, string(prior), string(service.Status))
		result.Changed = true
		activated = service
		return nil
	})
	if err != nil {
		return clientservicedomain.TransitionResult{}, err
	}

	// The recurring schedule is created outside the activation transaction:
	// on failure the service stays active and billing setup is retried by a
	// later resume or renewal.
	if result.Changed && activated != nil && !activated.HasRecurringBilling() {
		if err := s.ensureRecurringBilling(ctx, activated); err != nil {
			s.log.Warn("recurring billing setup failed",
				zap.String("service_id", activated.ID.String()),
				zap.Error(err),
			)
			result.Degraded = append(result.Degraded, "recurring_billing")
		}
	}

	return result, nil
}

func (s *Service) ensureRecurringBilling(ctx context.Context, service *clientservicedomain.ClientService) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.billing.CreateRecurringBilling(ctx, tx, service)
		return err
	})
}

// Suspend implements domain.Service. Suspending a suspended service is a
// no-op. The reason is kept on the service notes for the audit trail.
func (s *Service) Suspend(ctx context.Context, serviceID, reason string) (clientservicedomain.TransitionResult, error) {
	var result clientservicedomain.TransitionResult
	var suspended *clientservicedomain.ClientService

	err := s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		switch service.Status {
		case clientservicedomain.ServiceStatusSuspended:
			return nil
		case clientservicedomain.ServiceStatusCancelled:
			return clientservicedomain.ErrServiceCancelled
		case clientservicedomain.ServiceStatusPending:
			return clientservicedomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		prior := service.Status
		service.Status = clientservicedomain.ServiceStatusSuspended
		service.SuspendedAt = &now
		service.Notes = appendNote(service.Notes, now, "SUSPENDED: "+strings.TrimSpace(reason))
		service.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		if err := s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceSuspended,
			Payload: map[string]any{
				"service_id": service.ID.String(),
				"reason":     strings.TrimSpace(reason),
			},
		}); err != nil {
			return err
		}

		s.recordTransition(ctx, string(prior), string(service.Status))
		result.Changed = true
		suspended = service
		return nil
	})
	if err != nil {
		return clientservicedomain.TransitionResult{}, err
	}

	if result.Changed && suspended != nil && suspended.HasRecurringBilling() {
		if err := s.billing.SuspendBilling(ctx, s.db, suspended); err != nil {
			s.log.Warn("billing pause failed",
				zap.String("service_id", suspended.ID.String()),
				zap.Error(err),
			)
			result.Degraded = append(result.Degraded, "billing_pause")
		}
	}

	return result, nil
}

// Resume implements domain.Service. Returns false without touching anything
// when the service is not suspended.
func (s *Service) Resume(ctx context.Context, serviceID string) (bool, error) {
	resumed := false
	var target *clientservicedomain.ClientService

	err := s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		if !service.IsSuspended() {
			return nil
		}

		now := s.clock.Now()
		service.Status = clientservicedomain.ServiceStatusActive
		service.SuspendedAt = nil
		service.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		if err := s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceResumed,
			Payload: map[string]any{
				"service_id": service.ID.String(),
			},
		}); err != nil {
			return err
		}

		s.recordTransition(ctx,
			string(clientservicedomain.ServiceStatusSuspended),
			string(clientservicedomain.ServiceStatusActive),
		)
		resumed = true
		target = service
		return nil
	})
	if err != nil {
		return false, err
	}

	if resumed && target != nil && target.HasRecurringBilling() {
		if err := s.billing.ResumeBilling(ctx, s.db, target); err != nil {
			s.log.Warn("billing resume failed",
				zap.String("service_id", target.ID.String()),
				zap.Error(err),
			)
		}
	}

	return resumed, nil
}

// Cancel implements domain.Service. Cancelling a cancelled service returns
// the previously recorded fee without mutating anything.
func (s *Service) Cancel(ctx context.Context, serviceID string, effectiveDate *time.Time) (clientservicedomain.CancelResult, error) {
	var result clientservicedomain.CancelResult
	var cancelled *clientservicedomain.ClientService

	err := s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		if service.Status == clientservicedomain.ServiceStatusCancelled {
			if service.CancellationFee != nil {
				result.Fee = *service.CancellationFee
			}
			return nil
		}

		now := s.clock.Now()
		effective := now
		if effectiveDate != nil {
			effective = *effectiveDate
		}

		fee := s.billing.CalculateCancellationFee(service, effective)

		prior := service.Status
		service.Status = clientservicedomain.ServiceStatusCancelled
		service.CancelledAt = &now
		service.EndDate = &effective
		service.CancellationFee = &fee
		service.AutoRenewal = false
		service.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		if err := s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceCancelled,
			Payload: map[string]any{
				"service_id":       service.ID.String(),
				"effective_date":   effective.Format(time.RFC3339),
				"cancellation_fee": fee,
			},
		}); err != nil {
			return err
		}

		s.recordTransition(ctx, string(prior), string(service.Status))
		result.Fee = fee
		cancelled = service
		return nil
	})
	if err != nil {
		return clientservicedomain.CancelResult{}, err
	}

	if cancelled != nil && cancelled.HasRecurringBilling() {
		if err := s.billing.SuspendBilling(ctx, s.db, cancelled); err != nil {
			s.log.Warn("billing stop failed",
				zap.String("service_id", cancelled.ID.String()),
				zap.Error(err),
			)
			result.Degraded = append(result.Degraded, "billing_stop")
		}
	}

	return result, nil
}

// Renew implements domain.Service. The extension is anchored on the current
// renewal date when one exists, then the end date, then now.
func (s *Service) Renew(ctx context.Context, serviceID string, months int) (clientservicedomain.RenewResult, error) {
	if months <= 0 {
		return clientservicedomain.RenewResult{}, clientservicedomain.ErrInvalidMonths
	}

	var result clientservicedomain.RenewResult
	err := s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		if service.Status == clientservicedomain.ServiceStatusCancelled {
			return clientservicedomain.ErrServiceCancelled
		}
		if service.Status != clientservicedomain.ServiceStatusActive {
			return clientservicedomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		base := now
		switch {
		case service.RenewalDate != nil:
			base = *service.RenewalDate
		case service.EndDate != nil:
			base = *service.EndDate
		}

		next := base.AddDate(0, months, 0)
		service.RenewalDate = &next
		service.EndDate = &next
		service.RenewalCount++
		service.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		if err := s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceRenewed,
			Payload: map[string]any{
				"service_id":    service.ID.String(),
				"months":        months,
				"renewal_date":  next.Format(time.RFC3339),
				"renewal_count": service.RenewalCount,
			},
		}); err != nil {
			return err
		}

		result = clientservicedomain.RenewResult{
			RenewalDate:  next,
			EndDate:      next,
			RenewalCount: service.RenewalCount,
		}
		return nil
	})
	if err != nil {
		return clientservicedomain.RenewResult{}, err
	}
	return result, nil
}

// TransferToClient implements domain.Service.
func (s *Service) TransferToClient(ctx context.Context, serviceID, newClientID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientservicedomain.ErrInvalidCompany
	}
	targetID, err := parseID(newClientID, clientservicedomain.ErrInvalidClient)
	if err != nil {
		return err
	}

	return s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		if service.Status == clientservicedomain.ServiceStatusCancelled {
			return clientservicedomain.ErrServiceCancelled
		}
		if service.ClientID == targetID {
			return clientservicedomain.ErrSameClient
		}

		client, err := s.clientRepo.FindByID(ctx, tx, companyID, targetID)
		if err != nil {
			return err
		}
		if client == nil {
			return clientservicedomain.ErrClientNotFound
		}
		if client.IsArchived() {
			return clientservicedomain.ErrInvalidClient
		}

		now := s.clock.Now()
		previous := service.ClientID
		service.ClientID = targetID
		service.Notes = appendNote(service.Notes, now,
			fmt.Sprintf("TRANSFERRED: from client %s to %s", previous.String(), targetID.String()))
		service.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		return s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventServiceTransferred,
			Payload: map[string]any{
				"service_id":     service.ID.String(),
				"from_client_id": previous.String(),
				"to_client_id":   targetID.String(),
			},
		})
	})
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, serviceID string) (clientservicedomain.ClientService, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientservicedomain.ClientService{}, clientservicedomain.ErrInvalidCompany
	}
	id, err := parseID(serviceID, clientservicedomain.ErrInvalidService)
	if err != nil {
		return clientservicedomain.ClientService{}, err
	}

	service, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return clientservicedomain.ClientService{}, err
	}
	if service == nil {
		return clientservicedomain.ClientService{}, clientservicedomain.ErrServiceNotFound
	}
	return *service, nil
}

// GetServiceHealth implements domain.Service. The score is recomputed from
// the current inputs, persisted, and a degradation event recorded when it
// fell by 10 points or more since the last check.
func (s *Service) GetServiceHealth(ctx context.Context, serviceID string) (clientservicedomain.HealthResult, error) {
	var result clientservicedomain.HealthResult

	err := s.withService(ctx, serviceID, func(tx *gorm.DB, service *clientservicedomain.ClientService) error {
		now := s.clock.Now()
		previous := service.HealthScore

		score := health.Score(health.Input{
			SLABreaches:  service.SLABreachesCount,
			Satisfaction: service.ClientSatisfaction,
			LastReviewAt: service.LastReviewDate,
			Uptime:       service.Uptime,
			Now:          now,
		})

		service.HealthScore = score
		service.HealthCheckedAt = &now
		service.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		if previous-score >= healthDegradedThreshold {
			if err := s.events.Record(ctx, tx, eventsdomain.Event{
				Type: eventsdomain.EventHealthDegraded,
				Payload: map[string]any{
					"service_id":     service.ID.String(),
					"previous_score": previous,
					"score":          score,
				},
			}); err != nil {
				return err
			}
		}

		result = clientservicedomain.HealthResult{
			Score:     score,
			Band:      health.Classify(score),
			Breaches:  service.SLABreachesCount,
			CheckedAt: now,
		}
		return nil
	})
	if err != nil {
		return clientservicedomain.HealthResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordHealthCheck(ctx, string(result.Band))
	}
	return result, nil
}

// CalculateMRR implements domain.Service. An empty clientID sums the whole
// company.
func (s *Service) CalculateMRR(ctx context.Context, clientID string) (float64, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, clientservicedomain.ErrInvalidCompany
	}

	var filter *snowflake.ID
	if strings.TrimSpace(clientID) != "" {
		id, err := parseID(clientID, clientservicedomain.ErrInvalidClient)
		if err != nil {
			return 0, err
		}
		filter = &id
	}

	return s.repo.SumActiveMonthlyCost(ctx, s.db, companyID, filter)
}

// CalculateARR implements domain.Service.
func (s *Service) CalculateARR(ctx context.Context, clientID string) (float64, error) {
	mrr, err := s.CalculateMRR(ctx, clientID)
	if err != nil {
		return 0, err
	}
	return mrr * 12, nil
}

// withService runs fn inside a transaction holding the locked service row.
func (s *Service) withService(ctx context.Context, serviceID string, fn func(tx *gorm.DB, service *clientservicedomain.ClientService) error) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientservicedomain.ErrInvalidCompany
	}
	id, err := parseID(serviceID, clientservicedomain.ErrInvalidService)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		service, err := s.repo.FindByIDForUpdate(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if service == nil {
			return clientservicedomain.ErrServiceNotFound
		}
		return fn(tx, service)
	})
}

func (s *Service) recordTransition(ctx context.Context, from, to string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordLifecycleTransition(ctx, from, to)
}

func appendNote(notes string, at time.Time, line string) string {
	stamped := fmt.Sprintf("[%s] %s", at.Format("2006-01-02"), line)
	if notes == "" {
		return stamped
	}
	return notes + "\n" + stamped
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
