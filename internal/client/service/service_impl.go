package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	"github.com/mspforge/mspforge/internal/clock"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/mspforge/mspforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  clientdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  clientdomain.Repository
}

func NewService(p ServiceParam) clientdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req clientdomain.CreateRequest) (clientdomain.Client, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.Client{}, clientdomain.ErrInvalidCompany
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return clientdomain.Client{}, clientdomain.ErrInvalidName
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	client := clientdomain.Client{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Name:      name,
		Slug:      slug.Make(name),
		Status:    clientdomain.ClientStatusLead,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Currency:  currency,
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &client); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// Same name twice in one company; disambiguate with the ID.
				client.Slug = fmt.Sprintf("%s-%s", client.Slug, client.ID.String())
				return s.repo.Insert(ctx, tx, &client)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return clientdomain.Client{}, err
	}

	s.log.Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("slug", client.Slug),
	)
	return client, nil
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, clientID string) (clientdomain.Client, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.Client{}, clientdomain.ErrInvalidCompany
	}
	id, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return clientdomain.Client{}, err
	}

	client, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if client == nil {
		return clientdomain.Client{}, clientdomain.ErrClientNotFound
	}
	return *client, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, includeArchived bool) ([]clientdomain.Client, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, clientdomain.ErrInvalidCompany
	}
	return s.repo.List(ctx, s.db, companyID, includeArchived)
}

// Archive implements domain.Service.
func (s *Service) Archive(ctx context.Context, clientID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.ErrInvalidCompany
	}
	id, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.repo.FindByID(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if client == nil {
			return clientdomain.ErrClientNotFound
		}
		if client.IsArchived() {
			return nil
		}

		now := s.clock.Now()
		client.Status = clientdomain.ClientStatusArchived
		client.ArchivedAt = &now
		client.UpdatedAt = now
		return s.repo.Save(ctx, tx, client)
	})
}

// AddContact implements domain.Service.
func (s *Service) AddContact(ctx context.Context, clientID string, req clientdomain.AddContactRequest) (clientdomain.Contact, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.Contact{}, clientdomain.ErrInvalidCompany
	}
	id, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return clientdomain.Contact{}, err
	}

	firstName := strings.TrimSpace(req.FirstName)
	email := strings.TrimSpace(req.Email)
	if firstName == "" || email == "" {
		return clientdomain.Contact{}, clientdomain.ErrInvalidContact
	}

	now := s.clock.Now()
	contact := clientdomain.Contact{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		ClientID:  id,
		FirstName: firstName,
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Title:     strings.TrimSpace(req.Title),
		IsPrimary: req.IsPrimary,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireClient(ctx, tx, companyID, id); err != nil {
			return err
		}
		if contact.IsPrimary {
			if err := s.repo.UnsetPrimaryContacts(ctx, tx, companyID, id); err != nil {
				return err
			}
		}
		return s.repo.InsertContact(ctx, tx, &contact)
	})
	if err != nil {
		return clientdomain.Contact{}, err
	}
	return contact, nil
}

// AddLocation implements domain.Service.
func (s *Service) AddLocation(ctx context.Context, clientID string, req clientdomain.AddLocationRequest) (clientdomain.Location, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.Location{}, clientdomain.ErrInvalidCompany
	}
	id, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return clientdomain.Location{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return clientdomain.Location{}, clientdomain.ErrInvalidLocation
	}

	now := s.clock.Now()
	location := clientdomain.Location{
		ID:         s.genID.Generate(),
		CompanyID:  companyID,
		ClientID:   id,
		Name:       name,
		Address:    strings.TrimSpace(req.Address),
		City:       strings.TrimSpace(req.City),
		State:      strings.TrimSpace(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		IsPrimary:  req.IsPrimary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireClient(ctx, tx, companyID, id); err != nil {
			return err
		}
		if location.IsPrimary {
			if err := s.repo.UnsetPrimaryLocations(ctx, tx, companyID, id); err != nil {
				return err
			}
		}
		return s.repo.InsertLocation(ctx, tx, &location)
	})
	if err != nil {
		return clientdomain.Location{}, err
	}
	return location, nil
}

// SetPrimaryContact implements domain.Service.
func (s *Service) SetPrimaryContact(ctx context.Context, clientID, contactID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.ErrInvalidCompany
	}
	cid, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return err
	}
	tid, err := parseID(contactID, clientdomain.ErrInvalidContact)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contact, err := s.repo.FindContact(ctx, tx, companyID, cid, tid)
		if err != nil {
			return err
		}
		if contact == nil {
			return clientdomain.ErrContactNotFound
		}
		if contact.IsPrimary {
			return nil
		}

		if err := s.repo.UnsetPrimaryContacts(ctx, tx, companyID, cid); err != nil {
			return err
		}
		contact.IsPrimary = true
		contact.UpdatedAt = s.clock.Now()
		return s.repo.SaveContact(ctx, tx, contact)
	})
}

// SetPrimaryLocation implements domain.Service.
func (s *Service) SetPrimaryLocation(ctx context.Context, clientID, locationID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return clientdomain.ErrInvalidCompany
	}
	cid, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return err
	}
	lid, err := parseID(locationID, clientdomain.ErrInvalidLocation)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		location, err := s.repo.FindLocation(ctx, tx, companyID, cid, lid)
		if err != nil {
			return err
		}
		if location == nil {
			return clientdomain.ErrLocationNotFound
		}
		if location.IsPrimary {
			return nil
		}

		if err := s.repo.UnsetPrimaryLocations(ctx, tx, companyID, cid); err != nil {
			return err
		}
		location.IsPrimary = true
		location.UpdatedAt = s.clock.Now()
		return s.repo.SaveLocation(ctx, tx, location)
	})
}

// ListContacts implements domain.Service.
func (s *Service) ListContacts(ctx context.Context, clientID string) ([]clientdomain.Contact, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, clientdomain.ErrInvalidCompany
	}
	id, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return nil, err
	}
	return s.repo.ListContacts(ctx, s.db, companyID, id)
}

// ListLocations implements domain.Service.
func (s *Service) ListLocations(ctx context.Context, clientID string) ([]clientdomain.Location, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, clientdomain.ErrInvalidCompany
	}
	id, err := parseID(clientID, clientdomain.ErrInvalidClient)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLocations(ctx, s.db, companyID, id)
}

func (s *Service) requireClient(ctx context.Context, tx *gorm.DB, companyID, clientID snowflake.ID) error {
	client, err := s.repo.FindByID(ctx, tx, companyID, clientID)
	if err != nil {
		return err
	}
	if client == nil {
		return clientdomain.ErrClientNotFound
	}
	if client.IsArchived() {
		return clientdomain.ErrClientArchived
	}
	return nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
