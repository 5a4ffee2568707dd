package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() clientdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *clientdomain.Client) error {
	return db.WithContext(ctx).Create(client).Error
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, client *clientdomain.Client) error {
	return db.WithContext(ctx).Save(client).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, companyID snowflake.ID, slug string) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := db.WithContext(ctx).
		Where("company_id = ? AND slug = ?", companyID, slug).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, includeArchived bool) ([]clientdomain.Client, error) {
	stmt := db.WithContext(ctx).Where("company_id = ?", companyID)
	if !includeArchived {
		stmt = stmt.Where("status <> ?", clientdomain.ClientStatusArchived)
	}

	var clients []clientdomain.Client
	err := stmt.Order("name").Find(&clients).Error
	return clients, err
}

func (r *repo) InsertContact(ctx context.Context, db *gorm.DB, contact *clientdomain.Contact) error {
	return db.WithContext(ctx).Create(contact).Error
}

func (r *repo) FindContact(ctx context.Context, db *gorm.DB, companyID, clientID, contactID snowflake.ID) (*clientdomain.Contact, error) {
	var contact clientdomain.Contact
	err := db.WithContext(ctx).
		Where("company_id = ? AND client_id = ? AND id = ?", companyID, clientID, contactID).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *repo) FindContactByID(ctx context.Context, db *gorm.DB, companyID, contactID snowflake.ID) (*clientdomain.Contact, error) {
	var contact clientdomain.Contact
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, contactID).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *repo) ListContacts(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) ([]clientdomain.Contact, error) {
	var contacts []clientdomain.Contact
	err := db.WithContext(ctx).
		Where("company_id = ? AND client_id = ?", companyID, clientID).
		Order("is_primary DESC, id").
		Find(&contacts).Error
	return contacts, err
}

func (r *repo) UnsetPrimaryContacts(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&clientdomain.Contact{}).
		Where("company_id = ? AND client_id = ? AND is_primary = ?", companyID, clientID, true).
		Update("is_primary", false).Error
}

func (r *repo) SaveContact(ctx context.Context, db *gorm.DB, contact *clientdomain.Contact) error {
	return db.WithContext(ctx).Save(contact).Error
}

func (r *repo) InsertLocation(ctx context.Context, db *gorm.DB, location *clientdomain.Location) error {
	return db.WithContext(ctx).Create(location).Error
}

func (r *repo) FindLocation(ctx context.Context, db *gorm.DB, companyID, clientID, locationID snowflake.ID) (*clientdomain.Location, error) {
	var location clientdomain.Location
	err := db.WithContext(ctx).
		Where("company_id = ? AND client_id = ? AND id = ?", companyID, clientID, locationID).
		First(&location).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &location, nil
}

func (r *repo) ListLocations(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) ([]clientdomain.Location, error) {
	var locations []clientdomain.Location
	err := db.WithContext(ctx).
		Where("company_id = ? AND client_id = ?", companyID, clientID).
		Order("is_primary DESC, id").
		Find(&locations).Error
	return locations, err
}

func (r *repo) UnsetPrimaryLocations(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&clientdomain.Location{}).
		Where("company_id = ? AND client_id = ? AND is_primary = ?", companyID, clientID, true).
		Update("is_primary", false).Error
}

func (r *repo) SaveLocation(ctx context.Context, db *gorm.DB, location *clientdomain.Location) error {
	return db.WithContext(ctx).Save(location).Error
}
