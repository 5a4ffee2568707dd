package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/mspforge/mspforge/internal/clock"
	provisioningdomain "github.com/mspforge/mspforge/internal/provisioning/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  clientservicedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  clientservicedomain.Repository
}

func NewService(p ServiceParam) provisioningdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("provisioning.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Start implements domain.Service.
func (s *Service) Start(ctx context.Context, serviceID string) error {
	return s.mutate(ctx, serviceID, func(service *clientservicedomain.ClientService) error {
		if service.ProvisioningStatus == clientservicedomain.ProvisioningStatusCompleted {
			return provisioningdomain.ErrAlreadyCompleted
		}
		service.ProvisioningStatus = clientservicedomain.ProvisioningStatusInProgress
		service.ProvisioningError = nil
		return nil
	})
}

// AssignTechnicians implements domain.Service.
func (s *Service) AssignTechnicians(ctx context.Context, serviceID string, req provisioningdomain.AssignRequest) error {
	primary := strings.TrimSpace(req.Primary)
	if primary == "" {
		return provisioningdomain.ErrInvalidTechnician
	}

	return s.mutate(ctx, serviceID, func(service *clientservicedomain.ClientService) error {
		service.AssignedTechnician = &primary
		if backup := strings.TrimSpace(req.Backup); backup != "" {
			service.BackupTechnician = &backup
		}
		return nil
	})
}

// Configure implements domain.Service.
func (s *Service) Configure(ctx context.Context, serviceID string, req provisioningdomain.ConfigureRequest) error {
	return s.mutate(ctx, serviceID, func(service *clientservicedomain.ClientService) error {
		terms := datatypes.JSONMap{}
		for k, v := range req.SLATerms {
			terms[k] = v
		}
		if req.SupportHours != "" {
			terms["support_hours"] = req.SupportHours
		}
		if req.ResponseMinutes > 0 {
			terms["response_minutes"] = req.ResponseMinutes
		}
		if req.ResolutionMinutes > 0 {
			terms["resolution_minutes"] = req.ResolutionMinutes
		}
		service.SLATerms = terms
		return nil
	})
}

// SetupMonitoring implements domain.Service.
//
// Agent deployment belongs to the external monitoring integration; here the
// service is only flagged so health checks start picking it up.
func (s *Service) SetupMonitoring(ctx context.Context, serviceID string) error {
	return s.mutate(ctx, serviceID, func(service *clientservicedomain.ClientService) error {
		service.MonitoringEnabled = true
		return nil
	})
}

// Complete implements domain.Service.
func (s *Service) Complete(ctx context.Context, serviceID string) error {
	return s.mutate(ctx, serviceID, func(service *clientservicedomain.ClientService) error {
		if service.ProvisioningStatus != clientservicedomain.ProvisioningStatusInProgress {
			return provisioningdomain.ErrNotInProgress
		}
		now := s.clock.Now()
		service.ProvisioningStatus = clientservicedomain.ProvisioningStatusCompleted
		service.ProvisionedAt = &now
		return nil
	})
}

// Fail implements domain.Service.
func (s *Service) Fail(ctx context.Context, serviceID, reason string) error {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, serviceID, func(service *clientservicedomain.ClientService) error {
		service.ProvisioningStatus = clientservicedomain.ProvisioningStatusFailed
		if reason != "" {
			service.ProvisioningError = &reason
		}
		return nil
	})
}

// Status implements domain.Service.
func (s *Service) Status(ctx context.Context, serviceID string) (provisioningdomain.Progress, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return provisioningdomain.Progress{}, provisioningdomain.ErrInvalidCompany
	}
	id, err := s.parseID(serviceID)
	if err != nil {
		return provisioningdomain.Progress{}, err
	}

	service, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return provisioningdomain.Progress{}, err
	}
	if service == nil {
		return provisioningdomain.Progress{}, provisioningdomain.ErrServiceNotFound
	}

	return ProgressOf(service), nil
}

// ProgressOf derives the workflow progress from the service row's fields.
func ProgressOf(service *clientservicedomain.ClientService) provisioningdomain.Progress {
	steps := []provisioningdomain.StepStatus{
		{Name: provisioningdomain.StepServiceCreated, Complete: true},
		{Name: provisioningdomain.StepTechniciansAssigned, Complete: service.AssignedTechnician != nil},
		{Name: provisioningdomain.StepParametersConfigured, Complete: len(service.SLATerms) > 0},
		{Name: provisioningdomain.StepMonitoringEnabled, Complete: service.MonitoringEnabled},
		{Name: provisioningdomain.StepCompleted, Complete: service.ProvisioningStatus == clientservicedomain.ProvisioningStatusCompleted},
	}

	complete := 0
	for _, step := range steps {
		if step.Complete {
			complete++
		}
	}
	return provisioningdomain.Progress{
		Steps:   steps,
		Percent: complete * 100 / len(steps),
	}
}

func (s *Service) mutate(ctx context.Context, serviceID string, fn func(*clientservicedomain.ClientService) error) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return provisioningdomain.ErrInvalidCompany
	}
	id, err := s.parseID(serviceID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		service, err := s.repo.FindByIDForUpdate(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if service == nil {
			return provisioningdomain.ErrServiceNotFound
		}

		if err := fn(service); err != nil {
			return err
		}

		service.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, tx, service); err != nil {
			return err
		}

		s.log.Info("provisioning step applied",
			zap.String("service_id", service.ID.String()),
			zap.String("provisioning_status", string(service.ProvisioningStatus)),
		)
		return nil
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, provisioningdomain.ErrInvalidService
	}
	return id, nil
}
