package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	invitationdomain "github.com/mspforge/mspforge/internal/invitation/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	clientRepo clientdomain.Repository
	events     eventsdomain.Recorder
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	ClientRepo clientdomain.Repository
	Events     eventsdomain.Recorder
}

func NewService(p ServiceParam) invitationdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invitation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		clientRepo: p.ClientRepo,
		events:     p.Events,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, contactID string) (invitationdomain.Invitation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return invitationdomain.Invitation{}, invitationdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(contactID))
	if err != nil || id == 0 {
		return invitationdomain.Invitation{}, invitationdomain.ErrInvalidContact
	}

	var invitation invitationdomain.Invitation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contact, err := s.clientRepo.FindContactByID(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if contact == nil {
			return invitationdomain.ErrInvalidContact
		}

		now := s.clock.Now()

		// An open, unexpired invitation for this contact is reused so only
		// one live code circulates per person.
		var existing invitationdomain.Invitation
		err = tx.Where("company_id = ? AND contact_id = ? AND status = ? AND expires_at > ?",
			companyID, id, invitationdomain.StatusPending, now).
			First(&existing).Error
		if err == nil {
			invitation = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		invitation = invitationdomain.Invitation{
			ID:        s.genID.Generate(),
			CompanyID: companyID,
			ClientID:  contact.ClientID,
			ContactID: contact.ID,
			Email:     contact.Email,
			Code:      uuid.NewString(),
			Status:    invitationdomain.StatusPending,
			ExpiresAt: now.Add(invitationdomain.TTL),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&invitation).Error; err != nil {
			return err
		}

		return s.events.Record(ctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventInvitationCreated,
			Payload: map[string]any{
				"invitation_id": invitation.ID.String(),
				"contact_id":    contact.ID.String(),
				"email":         contact.Email,
			},
		})
	})
	if err != nil {
		return invitationdomain.Invitation{}, err
	}
	return invitation, nil
}

// Accept implements domain.Service.
func (s *Service) Accept(ctx context.Context, code string) (invitationdomain.Invitation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return invitationdomain.Invitation{}, invitationdomain.ErrInvalidCode
	}

	var invitation invitationdomain.Invitation
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invitationdomain.Invitation{}, invitationdomain.ErrInvitationNotFound
		}
		return invitationdomain.Invitation{}, err
	}

	switch invitation.Status {
	case invitationdomain.StatusAccepted:
		// Clicking the link twice is fine.
		return invitation, nil
	case invitationdomain.StatusRevoked:
		return invitationdomain.Invitation{}, invitationdomain.ErrInvitationRevoked
	case invitationdomain.StatusExpired:
		return invitationdomain.Invitation{}, invitationdomain.ErrInvitationExpired
	}

	now := s.clock.Now()
	if invitation.IsExpired(now) {
		// The flip must outlive the sentinel return, so it runs as a
		// plain write instead of inside a rolled-back transaction.
		err := s.db.WithContext(ctx).
			Model(&invitationdomain.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, invitationdomain.StatusPending).
			Updates(map[string]any{
				"status":     invitationdomain.StatusExpired,
				"updated_at": now,
			}).Error
		if err != nil {
			return invitationdomain.Invitation{}, err
		}
		return invitationdomain.Invitation{}, invitationdomain.ErrInvitationExpired
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation.Status = invitationdomain.StatusAccepted
		invitation.AcceptedAt = &now
		invitation.UpdatedAt = now
		if err := tx.Save(&invitation).Error; err != nil {
			return err
		}

		// The accept flow carries no tenant context of its own; the code
		// resolves the company.
		tctx := tenantctx.WithCompanyID(ctx, int64(invitation.CompanyID))
		return s.events.Record(tctx, tx, eventsdomain.Event{
			Type: eventsdomain.EventInvitationAccepted,
			Payload: map[string]any{
				"invitation_id": invitation.ID.String(),
				"contact_id":    invitation.ContactID.String(),
			},
		})
	})
	if err != nil {
		return invitationdomain.Invitation{}, err
	}
	return invitation, nil
}

// Revoke implements domain.Service.
func (s *Service) Revoke(ctx context.Context, invitationID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return invitationdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(invitationID))
	if err != nil || id == 0 {
		return invitationdomain.ErrInvitationNotFound
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).
		Model(&invitationdomain.Invitation{}).
		Where("company_id = ? AND id = ? AND status = ?", companyID, id, invitationdomain.StatusPending).
		Updates(map[string]any{
			"status":     invitationdomain.StatusRevoked,
			"revoked_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invitationdomain.ErrInvitationNotFound
	}
	return nil
}

// ListByClient implements domain.Service.
func (s *Service) ListByClient(ctx context.Context, clientID string) ([]invitationdomain.Invitation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, invitationdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(clientID))
	if err != nil || id == 0 {
		return nil, invitationdomain.ErrInvalidContact
	}

	var invitations []invitationdomain.Invitation
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND client_id = ?", companyID, id).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

// ExpirePending implements domain.Service.
func (s *Service) ExpirePending(ctx context.Context) (invitationdomain.ExpiryReport, error) {
	now := s.clock.Now()
	report := invitationdomain.ExpiryReport{RanAt: now}

	result := s.db.WithContext(ctx).
		Model(&invitationdomain.Invitation{}).
		Where("status = ? AND expires_at <= ?", invitationdomain.StatusPending, now).
		Updates(map[string]any{
			"status":     invitationdomain.StatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return report, result.Error
	}

	report.Expired = int(result.RowsAffected)
	if report.Expired > 0 {
		s.log.Info("invitations expired", zap.Int("count", report.Expired))
	}
	return report, nil
}
