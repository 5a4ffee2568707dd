package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidContact   = errors.New("invalid_contact")
	ErrInvalidLocation  = errors.New("invalid_location")
	ErrClientNotFound   = errors.New("client_not_found")
	ErrContactNotFound  = errors.New("contact_not_found")
	ErrLocationNotFound = errors.New("location_not_found")
	ErrClientArchived   = errors.New("client_archived")
	ErrSlugTaken        = errors.New("slug_taken")
)

// CreateRequest creates a new client record.
type CreateRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Currency string         `json:"currency,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddContactRequest attaches a contact to a client.
type AddContactRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Title     string `json:"title,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// AddLocationRequest attaches a delivery site to a client.
type AddLocationRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
}

// Service manages the client roster for a company.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (Client, error)
	GetByID(ctx context.Context, clientID string) (Client, error)
	List(ctx context.Context, includeArchived bool) ([]Client, error)
	Archive(ctx context.Context, clientID string) error

	AddContact(ctx context.Context, clientID string, req AddContactRequest) (Contact, error)
	AddLocation(ctx context.Context, clientID string, req AddLocationRequest) (Location, error)
	SetPrimaryContact(ctx context.Context, clientID, contactID string) error
	SetPrimaryLocation(ctx context.Context, clientID, locationID string) error
	ListContacts(ctx context.Context, clientID string) ([]Contact, error)
	ListLocations(ctx context.Context, clientID string) ([]Location, error)
}
