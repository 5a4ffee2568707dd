package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/mspforge/mspforge/internal/clock"
	itdocdomain "github.com/mspforge/mspforge/internal/itdoc/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCompanyID = int64(1001)

var (
	now          = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testClientID = snowflake.ID(2001).String()
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&itdocdomain.ITDocumentation{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(now)

	svc := &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: fake,
	}
	return svc, fake, db
}

func tenantCtx() context.Context {
	return tenantctx.WithCompanyID(context.Background(), testCompanyID)
}

func TestVersionLineage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := tenantCtx()

	v1, err := svc.Create(ctx, itdocdomain.CreateRequest{
		ClientID:   testClientID,
		Title:      "Backup runbook",
		Category:   "backup_recovery",
		Content:    "nightly snapshots",
		Frameworks: []string{"soc2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Nil(t, v1.ParentDocumentID)
	assert.Equal(t, []string{"SOC2"}, []string(v1.Frameworks))

	v2, err := svc.NewVersion(ctx, v1.ID.String(), itdocdomain.ReviseRequest{
		Content: "nightly snapshots plus weekly offsite",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	require.NotNil(t, v2.ParentDocumentID)
	assert.Equal(t, v1.ID, *v2.ParentDocumentID)
	assert.Equal(t, "Backup runbook", v2.Title)

	// Revising any version in the lineage appends after the newest one.
	v3, err := svc.NewVersion(ctx, v1.ID.String(), itdocdomain.ReviseRequest{
		Content: "snapshots, offsite and restore drills",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version)
	assert.Equal(t, v1.ID, *v3.ParentDocumentID)

	history, err := svc.History(ctx, v2.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, 3, history[2].Version)
}

func TestListByClientReturnsLatestVersionPerLineage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := tenantCtx()

	doc, err := svc.Create(ctx, itdocdomain.CreateRequest{
		ClientID: testClientID,
		Title:    "Firewall configuration",
		Category: "network_security",
	})
	require.NoError(t, err)
	_, err = svc.NewVersion(ctx, doc.ID.String(), itdocdomain.ReviseRequest{Content: "updated rules"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, itdocdomain.CreateRequest{
		ClientID: testClientID,
		Title:    "Password policy",
		Category: "access_control",
	})
	require.NoError(t, err)

	docs, err := svc.ListByClient(ctx, testClientID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		if d.Category == "network_security" {
			assert.Equal(t, 2, d.Version)
		}
	}
}

func TestScoreCompliance(t *testing.T) {
	// All SOC2 categories covered.
	full := itdocdomain.ScoreCompliance(itdocdomain.FrameworkSOC2, map[string]bool{
		"access_control":    true,
		"change_management": true,
		"backup_recovery":   true,
		"incident_response": true,
		"monitoring":        true,
	})
	assert.Equal(t, 100.0, full.Score)
	assert.Empty(t, full.Missing)

	// Missing both weight-2 categories leaves 3 of 7 weight covered.
	partial := itdocdomain.ScoreCompliance(itdocdomain.FrameworkSOC2, map[string]bool{
		"change_management": true,
		"incident_response": true,
		"monitoring":        true,
	})
	assert.InDelta(t, 42.9, partial.Score, 0.01)
	assert.ElementsMatch(t, []string{"access_control", "backup_recovery"}, partial.Missing)

	empty := itdocdomain.ScoreCompliance(itdocdomain.FrameworkPCI, nil)
	assert.Equal(t, 0.0, empty.Score)
	assert.Len(t, empty.Missing, 5)
}

func TestEvaluateComplianceUsesClaimedFrameworks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := tenantCtx()

	_, err := svc.Create(ctx, itdocdomain.CreateRequest{
		ClientID:   testClientID,
		Title:      "Encryption standard",
		Category:   "encryption",
		Frameworks: []string{"HIPAA", "PCI_DSS"},
	})
	require.NoError(t, err)

	// A document that does not claim the framework does not count.
	_, err = svc.Create(ctx, itdocdomain.CreateRequest{
		ClientID:   testClientID,
		Title:      "Access control matrix",
		Category:   "access_control",
		Frameworks: []string{"SOC2"},
	})
	require.NoError(t, err)

	report, err := svc.EvaluateCompliance(ctx, testClientID, itdocdomain.FrameworkHIPAA)
	require.NoError(t, err)
	assert.InDelta(t, 28.6, report.Score, 0.01)
	assert.Contains(t, report.Missing, "access_control")
	assert.NotContains(t, report.Missing, "encryption")

	_, err = svc.EvaluateCompliance(ctx, testClientID, itdocdomain.Framework("ISO27001"))
	assert.ErrorIs(t, err, itdocdomain.ErrInvalidFramework)
}

func TestReviewScheduling(t *testing.T) {
	svc, fake, _ := newTestService(t)
	ctx := tenantCtx()

	doc, err := svc.Create(ctx, itdocdomain.CreateRequest{
		ClientID: testClientID,
		Title:    "Incident response plan",
		Category: "incident_response",
	})
	require.NoError(t, err)

	overdue, err := svc.ListOverdueReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	fake.Advance(itdocdomain.ReviewCycle + 24*time.Hour)

	overdue, err = svc.ListOverdueReviews(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, doc.ID, overdue[0].ID)

	require.NoError(t, svc.MarkReviewed(ctx, doc.ID.String()))

	overdue, err = svc.ListOverdueReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}
