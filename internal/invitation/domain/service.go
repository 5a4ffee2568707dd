package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCompany     = errors.New("invalid_company")
	ErrInvalidContact     = errors.New("invalid_contact")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvitationNotFound = errors.New("invitation_not_found")
	ErrInvitationExpired  = errors.New("invitation_expired")
	ErrInvitationRevoked  = errors.New("invitation_revoked")
)

// TTL is how long an invitation stays acceptable.
const TTL = 7 * 24 * time.Hour

// ExpiryReport summarizes one expiry sweep.
type ExpiryReport struct {
	Expired int       `json:"expired"`
	RanAt   time.Time `json:"ran_at"`
}

// Service manages portal invitations for client contacts.
type Service interface {
	// Create issues an invitation for a contact. An open invitation for the
	// same contact is reused instead of issuing a second code.
	Create(ctx context.Context, contactID string) (Invitation, error)

	// Accept redeems a code. Accepting an already accepted invitation is a
	// no-op returning the invitation unchanged.
	Accept(ctx context.Context, code string) (Invitation, error)

	Revoke(ctx context.Context, invitationID string) error
	ListByClient(ctx context.Context, clientID string) ([]Invitation, error)

	// ExpirePending marks overdue pending invitations as expired, across all
	// companies.
	ExpirePending(ctx context.Context) (ExpiryReport, error)
}
