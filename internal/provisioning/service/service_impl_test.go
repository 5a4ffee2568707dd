package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	clientservicerepo "github.com/mspforge/mspforge/internal/clientservice/repository"
	"github.com/mspforge/mspforge/internal/clock"
	provisioningdomain "github.com/mspforge/mspforge/internal/provisioning/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testCompanyID = snowflake.ID(1001)
	testClientID  = snowflake.ID(2001)
	testServiceID = snowflake.ID(3001)
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&clientservicedomain.ClientService{}))

	svc := &Service{
		db:    db,
		log:   zap.NewNop(),
		clock: clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		repo:  clientservicerepo.Provide(),
	}
	return svc, db
}

func seedPendingService(t *testing.T, db *gorm.DB) *clientservicedomain.ClientService {
	t.Helper()

	service := &clientservicedomain.ClientService{
		ID:                 testServiceID,
		CompanyID:          testCompanyID,
		ClientID:           testClientID,
		Name:               "Managed Workstations",
		Status:             clientservicedomain.ServiceStatusPending,
		ProvisioningStatus: clientservicedomain.ProvisioningStatusPending,
		MonthlyCost:        450,
		BillingCycle:       clientservicedomain.BillingCycleMonthly,
		Currency:           "USD",
	}
	require.NoError(t, db.Create(service).Error)
	return service
}

func tenantCtx() context.Context {
	return tenantctx.WithCompanyID(context.Background(), int64(testCompanyID))
}

func TestStatusAfterCreationOnlyFirstStepComplete(t *testing.T) {
	svc, db := newTestService(t)
	seedPendingService(t, db)

	progress, err := svc.Status(tenantCtx(), testServiceID.String())
	require.NoError(t, err)

	require.Len(t, progress.Steps, 5)
	assert.Equal(t, provisioningdomain.StepServiceCreated, progress.Steps[0].Name)
	assert.True(t, progress.Steps[0].Complete)
	for _, step := range progress.Steps[1:] {
		assert.False(t, step.Complete, step.Name)
	}
	assert.Equal(t, 20, progress.Percent)
}

func TestProgressAdvancesStepByStep(t *testing.T) {
	svc, db := newTestService(t)
	seedPendingService(t, db)
	ctx := tenantCtx()
	id := testServiceID.String()

	require.NoError(t, svc.Start(ctx, id))

	require.NoError(t, svc.AssignTechnicians(ctx, id, provisioningdomain.AssignRequest{
		Primary: "alex.rivera",
		Backup:  "sam.okafor",
	}))
	progress, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 40, progress.Percent)

	require.NoError(t, svc.Configure(ctx, id, provisioningdomain.ConfigureRequest{
		SupportHours:    "24x7",
		ResponseMinutes: 30,
	}))
	progress, err = svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 60, progress.Percent)

	require.NoError(t, svc.SetupMonitoring(ctx, id))
	progress, err = svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 80, progress.Percent)

	require.NoError(t, svc.Complete(ctx, id))
	progress, err = svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Percent)
	for _, step := range progress.Steps {
		assert.True(t, step.Complete, step.Name)
	}

	var row clientservicedomain.ClientService
	require.NoError(t, db.First(&row, "id = ?", testServiceID).Error)
	assert.Equal(t, clientservicedomain.ProvisioningStatusCompleted, row.ProvisioningStatus)
	require.NotNil(t, row.ProvisionedAt)
	assert.Equal(t, "alex.rivera", *row.AssignedTechnician)
	assert.Equal(t, "sam.okafor", *row.BackupTechnician)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	svc, db := newTestService(t)
	seedPendingService(t, db)

	err := svc.Complete(tenantCtx(), testServiceID.String())
	assert.ErrorIs(t, err, provisioningdomain.ErrNotInProgress)
}

func TestFailRecordsReason(t *testing.T) {
	svc, db := newTestService(t)
	seedPendingService(t, db)
	ctx := tenantCtx()

	require.NoError(t, svc.Start(ctx, testServiceID.String()))
	require.NoError(t, svc.Fail(ctx, testServiceID.String(), "license activation rejected"))

	var row clientservicedomain.ClientService
	require.NoError(t, db.First(&row, "id = ?", testServiceID).Error)
	assert.Equal(t, clientservicedomain.ProvisioningStatusFailed, row.ProvisioningStatus)
	require.NotNil(t, row.ProvisioningError)
	assert.Equal(t, "license activation rejected", *row.ProvisioningError)
}

func TestAssignTechniciansRejectsEmptyPrimary(t *testing.T) {
	svc, db := newTestService(t)
	seedPendingService(t, db)

	err := svc.AssignTechnicians(tenantCtx(), testServiceID.String(), provisioningdomain.AssignRequest{Primary: "  "})
	assert.ErrorIs(t, err, provisioningdomain.ErrInvalidTechnician)
}

func TestTenantScopingHidesOtherCompanies(t *testing.T) {
	svc, db := newTestService(t)
	seedPendingService(t, db)

	otherCtx := tenantctx.WithCompanyID(context.Background(), int64(testCompanyID)+1)
	_, err := svc.Status(otherCtx, testServiceID.String())
	assert.ErrorIs(t, err, provisioningdomain.ErrServiceNotFound)

	_, err = svc.Status(context.Background(), testServiceID.String())
	assert.ErrorIs(t, err, provisioningdomain.ErrInvalidCompany)
}
