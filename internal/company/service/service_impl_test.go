package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	companydomain "github.com/mspforge/mspforge/internal/company/domain"
	companyrepo "github.com/mspforge/mspforge/internal/company/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&companydomain.Company{},
		&companydomain.HierarchyLink{},
		&companydomain.SubsidiaryPermission{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		repo:  companyrepo.Provide(),
	}
	return svc, db
}

func mustCreate(t *testing.T, svc *Service, name string) companydomain.Company {
	t.Helper()
	company, err := svc.Create(context.Background(), companydomain.CreateRequest{Name: name})
	require.NoError(t, err)
	return company
}

// buildChain creates root -> mid -> leaf.
func buildChain(t *testing.T, svc *Service) (root, mid, leaf companydomain.Company) {
	t.Helper()
	ctx := context.Background()

	root = mustCreate(t, svc, "Umbrella Holdings")
	mid = mustCreate(t, svc, "Regional Group")
	leaf = mustCreate(t, svc, "Local MSP")

	require.NoError(t, svc.AttachSubsidiary(ctx, root.ID.String(), mid.ID.String()))
	require.NoError(t, svc.AttachSubsidiary(ctx, mid.ID.String(), leaf.ID.String()))
	return root, mid, leaf
}

func TestCreateInsertsSelfLink(t *testing.T) {
	svc, db := newTestService(t)

	company := mustCreate(t, svc, "Umbrella Holdings")
	assert.Equal(t, "umbrella-holdings", company.Slug)

	var link companydomain.HierarchyLink
	require.NoError(t, db.First(&link, "ancestor_id = ? AND descendant_id = ?", company.ID, company.ID).Error)
	assert.Equal(t, 0, link.Depth)
}

func TestAttachBuildsClosureAtDepthTwo(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root, mid, leaf := buildChain(t, svc)

	ancestors, err := svc.Ancestors(ctx, leaf.ID.String())
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	// Nearest first.
	assert.Equal(t, mid.ID, ancestors[0].ID)
	assert.Equal(t, root.ID, ancestors[1].ID)

	descendants, err := svc.Descendants(ctx, root.ID.String())
	require.NoError(t, err)
	require.Len(t, descendants, 2)
	assert.Equal(t, mid.ID, descendants[0].ID)
	assert.Equal(t, leaf.ID, descendants[1].ID)
}

func TestAttachRejectsCyclesAndDoubleParents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root, mid, leaf := buildChain(t, svc)

	// The root inside its own subtree closes a loop.
	err := svc.AttachSubsidiary(ctx, leaf.ID.String(), root.ID.String())
	assert.ErrorIs(t, err, companydomain.ErrHierarchyCycle)

	err = svc.AttachSubsidiary(ctx, root.ID.String(), root.ID.String())
	assert.ErrorIs(t, err, companydomain.ErrSelfReference)

	other := mustCreate(t, svc, "Other Parent")
	err = svc.AttachSubsidiary(ctx, other.ID.String(), mid.ID.String())
	assert.ErrorIs(t, err, companydomain.ErrAlreadyAttached)
}

func TestDetachCutsSubtreeButKeepsItIntact(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root, mid, leaf := buildChain(t, svc)

	require.NoError(t, svc.DetachSubsidiary(ctx, mid.ID.String()))

	descendants, err := svc.Descendants(ctx, root.ID.String())
	require.NoError(t, err)
	assert.Empty(t, descendants)

	// mid -> leaf survives the cut.
	descendants, err = svc.Descendants(ctx, mid.ID.String())
	require.NoError(t, err)
	require.Len(t, descendants, 1)
	assert.Equal(t, leaf.ID, descendants[0].ID)

	assert.ErrorIs(t, svc.DetachSubsidiary(ctx, mid.ID.String()), companydomain.ErrNotAttached)
}

func TestBillingParentDelegation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root, mid, leaf := buildChain(t, svc)

	// Billing can skip the organizational parent entirely.
	require.NoError(t, svc.SetBillingParent(ctx, leaf.ID.String(), root.ID.String()))

	billing, err := svc.BillingCompany(ctx, leaf.ID.String())
	require.NoError(t, err)
	assert.Equal(t, root.ID, billing.ID)

	// Without delegation a company bills itself.
	billing, err = svc.BillingCompany(ctx, mid.ID.String())
	require.NoError(t, err)
	assert.Equal(t, mid.ID, billing.ID)

	require.NoError(t, svc.SetBillingParent(ctx, leaf.ID.String(), ""))
	billing, err = svc.BillingCompany(ctx, leaf.ID.String())
	require.NoError(t, err)
	assert.Equal(t, leaf.ID, billing.ID)

	err = svc.SetBillingParent(ctx, leaf.ID.String(), leaf.ID.String())
	assert.ErrorIs(t, err, companydomain.ErrSelfReference)
}

func TestGrantCascadesAsInherited(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root, mid, leaf := buildChain(t, svc)

	require.NoError(t, svc.GrantPermission(ctx, root.ID.String(), companydomain.GrantRequest{
		Resource: "billing_reports", Permission: "view", Cascade: true,
	}))

	rootPerms, err := svc.ListPermissions(ctx, root.ID.String())
	require.NoError(t, err)
	require.Len(t, rootPerms, 1)
	assert.False(t, rootPerms[0].IsInherited)

	for _, company := range []companydomain.Company{mid, leaf} {
		perms, err := svc.ListPermissions(ctx, company.ID.String())
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.True(t, perms[0].IsInherited)
	}

	ok, err := svc.HasPermission(ctx, leaf.ID.String(), "billing_reports", "view")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevokeSweepsInheritedCopiesOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root, mid, leaf := buildChain(t, svc)

	// leaf gets a direct grant first, then the cascade reaches it.
	require.NoError(t, svc.GrantPermission(ctx, leaf.ID.String(), companydomain.GrantRequest{
		Resource: "billing_reports", Permission: "view",
	}))
	require.NoError(t, svc.GrantPermission(ctx, root.ID.String(), companydomain.GrantRequest{
		Resource: "billing_reports", Permission: "view", Cascade: true,
	}))

	require.NoError(t, svc.RevokePermission(ctx, root.ID.String(), "billing_reports", "view"))

	ok, err := svc.HasPermission(ctx, mid.ID.String(), "billing_reports", "view")
	require.NoError(t, err)
	assert.False(t, ok)

	// The direct grant on leaf survives the sweep.
	ok, err = svc.HasPermission(ctx, leaf.ID.String(), "billing_reports", "view")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrantValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	company := mustCreate(t, svc, "Acme")

	err := svc.GrantPermission(ctx, company.ID.String(), companydomain.GrantRequest{Permission: "view"})
	assert.ErrorIs(t, err, companydomain.ErrInvalidResource)

	err = svc.GrantPermission(ctx, company.ID.String(), companydomain.GrantRequest{Resource: "billing_reports"})
	assert.ErrorIs(t, err, companydomain.ErrInvalidPermission)

	err = svc.GrantPermission(ctx, "999999", companydomain.GrantRequest{Resource: "r", Permission: "p"})
	assert.ErrorIs(t, err, companydomain.ErrCompanyNotFound)
}
