package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists clients and their child rows. Callers own the
// transaction boundary.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	Save(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Client, error)
	FindBySlug(ctx context.Context, db *gorm.DB, companyID snowflake.ID, slug string) (*Client, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, includeArchived bool) ([]Client, error)

	InsertContact(ctx context.Context, db *gorm.DB, contact *Contact) error
	FindContact(ctx context.Context, db *gorm.DB, companyID, clientID, contactID snowflake.ID) (*Contact, error)
	FindContactByID(ctx context.Context, db *gorm.DB, companyID, contactID snowflake.ID) (*Contact, error)
	ListContacts(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) ([]Contact, error)
	UnsetPrimaryContacts(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) error
	SaveContact(ctx context.Context, db *gorm.DB, contact *Contact) error

	InsertLocation(ctx context.Context, db *gorm.DB, location *Location) error
	FindLocation(ctx context.Context, db *gorm.DB, companyID, clientID, locationID snowflake.ID) (*Location, error)
	ListLocations(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) ([]Location, error)
	UnsetPrimaryLocations(ctx context.Context, db *gorm.DB, companyID, clientID snowflake.ID) error
	SaveLocation(ctx context.Context, db *gorm.DB, location *Location) error
}
