package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/mspforge/mspforge/internal/clock"
	itdocdomain "github.com/mspforge/mspforge/internal/itdoc/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
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
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) itdocdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("itdoc.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req itdocdomain.CreateRequest) (itdocdomain.ITDocumentation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidCompany
	}
	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidClient
	}

	title := strings.TrimSpace(req.Title)
	category := strings.TrimSpace(strings.ToLower(req.Category))
	if title == "" || category == "" {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidDocument
	}

	now := s.clock.Now()
	nextReview := now.Add(itdocdomain.ReviewCycle)
	doc := itdocdomain.ITDocumentation{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		ClientID:     clientID,
		Title:        title,
		Category:     category,
		Content:      req.Content,
		Status:       itdocdomain.DocStatusActive,
		Version:      1,
		Frameworks:   datatypes.NewJSONSlice(normalizeFrameworks(req.Frameworks)),
		Author:       strings.TrimSpace(req.Author),
		NextReviewAt: &nextReview,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return itdocdomain.ITDocumentation{}, err
	}

	s.log.Info("documentation created",
		zap.String("document_id", doc.ID.String()),
		zap.String("category", doc.Category),
	)
	return doc, nil
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, documentID string) (itdocdomain.ITDocumentation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(documentID))
	if err != nil || id == 0 {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidDocument
	}
	return s.find(ctx, s.db, companyID, id)
}

func (s *Service) find(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (itdocdomain.ITDocumentation, error) {
	var doc itdocdomain.ITDocumentation
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return itdocdomain.ITDocumentation{}, itdocdomain.ErrDocumentNotFound
		}
		return itdocdomain.ITDocumentation{}, err
	}
	return doc, nil
}

// ListByClient implements domain.Service. Only the newest active version of
// each lineage is returned.
func (s *Service) ListByClient(ctx context.Context, clientID string) ([]itdocdomain.ITDocumentation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, itdocdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(clientID))
	if err != nil || id == 0 {
		return nil, itdocdomain.ErrInvalidClient
	}

	var docs []itdocdomain.ITDocumentation
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND client_id = ? AND status = ?", companyID, id, itdocdomain.DocStatusActive).
		Order("version DESC, id").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}

	// Collapse lineages to their newest version.
	latest := make(map[snowflake.ID]bool, len(docs))
	out := docs[:0]
	for _, doc := range docs {
		root := doc.RootID()
		if latest[root] {
			continue
		}
		latest[root] = true
		out = append(out, doc)
	}
	return out, nil
}

// NewVersion implements domain.Service.
func (s *Service) NewVersion(ctx context.Context, documentID string, req itdocdomain.ReviseRequest) (itdocdomain.ITDocumentation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(documentID))
	if err != nil || id == 0 {
		return itdocdomain.ITDocumentation{}, itdocdomain.ErrInvalidDocument
	}

	var next itdocdomain.ITDocumentation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.find(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status == itdocdomain.DocStatusArchived {
			return itdocdomain.ErrDocumentArchived
		}

		root := current.RootID()

		var maxVersion int
		if err := tx.Model(&itdocdomain.ITDocumentation{}).
			Where("company_id = ? AND (id = ? OR parent_document_id = ?)", companyID, root, root).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		now := s.clock.Now()
		nextReview := now.Add(itdocdomain.ReviewCycle)
		next = current
		next.ID = s.genID.Generate()
		next.Version = maxVersion + 1
		next.ParentDocumentID = &root
		next.LastReviewedAt = nil
		next.NextReviewAt = &nextReview
		next.CreatedAt = now
		next.UpdatedAt = now

		if title := strings.TrimSpace(req.Title); title != "" {
			next.Title = title
		}
		if req.Content != "" {
			next.Content = req.Content
		}
		if len(req.Frameworks) > 0 {
			next.Frameworks = datatypes.NewJSONSlice(normalizeFrameworks(req.Frameworks))
		}
		if author := strings.TrimSpace(req.Author); author != "" {
			next.Author = author
		}

		return tx.Create(&next).Error
	})
	if err != nil {
		return itdocdomain.ITDocumentation{}, err
	}
	return next, nil
}

// History implements domain.Service.
func (s *Service) History(ctx context.Context, documentID string) ([]itdocdomain.ITDocumentation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, itdocdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(documentID))
	if err != nil || id == 0 {
		return nil, itdocdomain.ErrInvalidDocument
	}

	doc, err := s.find(ctx, s.db, companyID, id)
	if err != nil {
		return nil, err
	}
	root := doc.RootID()

	var history []itdocdomain.ITDocumentation
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND (id = ? OR parent_document_id = ?)", companyID, root, root).
		Order("version").
		Find(&history).Error
	return history, err
}

// EvaluateCompliance implements domain.Service.
func (s *Service) EvaluateCompliance(ctx context.Context, clientID string, framework itdocdomain.Framework) (itdocdomain.ComplianceReport, error) {
	if len(itdocdomain.Requirements(framework)) == 0 {
		return itdocdomain.ComplianceReport{}, itdocdomain.ErrInvalidFramework
	}

	docs, err := s.ListByClient(ctx, clientID)
	if err != nil {
		return itdocdomain.ComplianceReport{}, err
	}

	covered := make(map[string]bool)
	for _, doc := range docs {
		for _, claimed := range doc.Frameworks {
			if itdocdomain.Framework(claimed) == framework {
				covered[doc.Category] = true
				break
			}
		}
	}

	return itdocdomain.ScoreCompliance(framework, covered), nil
}

// MarkReviewed implements domain.Service.
func (s *Service) MarkReviewed(ctx context.Context, documentID string) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return itdocdomain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(strings.TrimSpace(documentID))
	if err != nil || id == 0 {
		return itdocdomain.ErrInvalidDocument
	}

	now := s.clock.Now()
	nextReview := now.Add(itdocdomain.ReviewCycle)
	result := s.db.WithContext(ctx).
		Model(&itdocdomain.ITDocumentation{}).
		Where("company_id = ? AND id = ?", companyID, id).
		Updates(map[string]any{
			"last_reviewed_at": now,
			"next_review_at":   nextReview,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return itdocdomain.ErrDocumentNotFound
	}
	return nil
}

// ListOverdueReviews implements domain.Service.
func (s *Service) ListOverdueReviews(ctx context.Context) ([]itdocdomain.ITDocumentation, error) {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, itdocdomain.ErrInvalidCompany
	}

	var docs []itdocdomain.ITDocumentation
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND status = ? AND next_review_at IS NOT NULL AND next_review_at < ?",
			companyID, itdocdomain.DocStatusActive, s.clock.Now()).
		Order("next_review_at").
		Find(&docs).Error
	return docs, err
}

func normalizeFrameworks(frameworks []string) []string {
	out := make([]string, 0, len(frameworks))
	seen := make(map[string]bool, len(frameworks))
	for _, f := range frameworks {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
