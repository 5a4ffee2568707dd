package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidDocument  = errors.New("invalid_document")
	ErrInvalidFramework = errors.New("invalid_framework")
	ErrDocumentNotFound = errors.New("document_not_found")
	ErrDocumentArchived = errors.New("document_archived")
)

// ReviewCycle is how often documentation should be re-reviewed.
const ReviewCycle = 180 * 24 * time.Hour

// CreateRequest creates the first version of a documentation entry.
type CreateRequest struct {
	ClientID   string   `json:"client_id"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Content    string   `json:"content,omitempty"`
	Frameworks []string `json:"frameworks,omitempty"`
	Author     string   `json:"author,omitempty"`
}

// ReviseRequest creates a new version in an existing lineage. Empty fields
// carry over from the revised version.
type ReviseRequest struct {
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content,omitempty"`
	Frameworks []string `json:"frameworks,omitempty"`
	Author     string   `json:"author,omitempty"`
}

// Service manages versioned client IT documentation and compliance grading.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (ITDocumentation, error)
	Get(ctx context.Context, documentID string) (ITDocumentation, error)
	ListByClient(ctx context.Context, clientID string) ([]ITDocumentation, error)

	// NewVersion appends a version to the document's lineage and returns it.
	NewVersion(ctx context.Context, documentID string, req ReviseRequest) (ITDocumentation, error)

	// History returns every version in the document's lineage, oldest first.
	History(ctx context.Context, documentID string) ([]ITDocumentation, error)

	// EvaluateCompliance grades the client's active documentation against a
	// framework's requirement catalog.
	EvaluateCompliance(ctx context.Context, clientID string, framework Framework) (ComplianceReport, error)

	// MarkReviewed stamps the review and schedules the next one.
	MarkReviewed(ctx context.Context, documentID string) error

	// ListOverdueReviews returns this company's documents whose next review
	// date has passed.
	ListOverdueReviews(ctx context.Context) ([]ITDocumentation, error)
}
