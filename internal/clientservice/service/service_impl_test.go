package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/mspforge/mspforge/internal/billing/domain"
	billingservice "github.com/mspforge/mspforge/internal/billing/service"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	clientrepo "github.com/mspforge/mspforge/internal/client/repository"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	clientservicerepo "github.com/mspforge/mspforge/internal/clientservice/repository"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	eventsservice "github.com/mspforge/mspforge/internal/events/service"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	invoiceservice "github.com/mspforge/mspforge/internal/invoice/service"
	provisioningservice "github.com/mspforge/mspforge/internal/provisioning/service"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCompanyID = int64(1001)

type fixture struct {
	svc    clientservicedomain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	client clientdomain.Client
	tmpl   clientservicedomain.ServiceTemplate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&clientservicedomain.ClientService{},
		&clientservicedomain.ServiceTemplate{},
		&eventsdomain.LifecycleEvent{},
		&billingdomain.Recurring{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	svcRepo := clientservicerepo.Provide()
	events := eventsservice.NewService(eventsservice.ServiceParam{Log: log, GenID: node})
	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{DB: db, Log: log, GenID: node})
	billing := billingservice.NewService(billingservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Invoicesvc: invoices,
	})
	provisioning := provisioningservice.NewService(provisioningservice.ServiceParam{
		DB: db, Log: log, Clock: fake, Repo: svcRepo,
	})

	svc := NewService(ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       svcRepo,
		ClientRepo: clientrepo.Provide(),
		Billing:    billing,
		Provision:  provisioning,
		Events:     events,
	})

	f := &fixture{svc: svc, db: db, clock: fake}

	f.client = clientdomain.Client{
		ID:        node.Generate(),
		CompanyID: snowflake.ID(testCompanyID),
		Name:      "Acme Dental",
		Slug:      "acme-dental",
		Status:    clientdomain.ClientStatusActive,
		Currency:  "USD",
	}
	require.NoError(t, db.Create(&f.client).Error)

	f.tmpl = clientservicedomain.ServiceTemplate{
		ID:           node.Generate(),
		CompanyID:    snowflake.ID(testCompanyID),
		Name:         "Managed Workstations",
		Category:     "managed_it",
		MonthlyCost:  100,
		SetupCost:    250,
		BillingCycle: clientservicedomain.BillingCycleMonthly,
		Currency:     "USD",
		Active:       true,
	}
	require.NoError(t, db.Create(&f.tmpl).Error)

	return f
}

func tenantCtx() context.Context {
	return tenantctx.WithCompanyID(context.Background(), testCompanyID)
}

func (f *fixture) provision(t *testing.T, months int) clientservicedomain.ClientService {
	t.Helper()
	res, err := f.svc.Provision(tenantCtx(), clientservicedomain.ProvisionRequest{
		ClientID:   f.client.ID.String(),
		TemplateID: f.tmpl.ID.String(),
		Months:     months,
	})
	require.NoError(t, err)
	require.Empty(t, res.Degraded)
	return res.Service
}

func (f *fixture) countEvents(t *testing.T, eventType eventsdomain.EventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&eventsdomain.LifecycleEvent{}).
		Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestProvisionFromTemplate(t *testing.T) {
	f := newFixture(t)

	service := f.provision(t, 12)

	assert.Equal(t, clientservicedomain.ServiceStatusPending, service.Status)
	assert.Equal(t, 100.0, service.MonthlyCost)
	assert.Equal(t, 250.0, service.SetupCost)
	assert.Equal(t, "Managed Workstations", service.Name)
	require.NotNil(t, service.EndDate)
	require.NotNil(t, service.RenewalDate)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), *service.EndDate)

	// The provisioning workflow was kicked off right after insert.
	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, clientservicedomain.ProvisioningStatusInProgress, row.ProvisioningStatus)

	assert.Equal(t, int64(1), f.countEvents(t, eventsdomain.EventServiceProvisioned))
}

func TestProvisionAppliesOverrides(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Provision(tenantCtx(), clientservicedomain.ProvisionRequest{
		ClientID:   f.client.ID.String(),
		TemplateID: f.tmpl.ID.String(),
		Name:       "Workstations (Custom)",
		Overrides: map[string]any{
			"monthly_cost":  150.0,
			"billing_cycle": "quarterly",
			"ignored_key":   true,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Workstations (Custom)", res.Service.Name)
	assert.Equal(t, 150.0, res.Service.MonthlyCost)
	assert.Equal(t, clientservicedomain.BillingCycleQuarterly, res.Service.BillingCycle)
	assert.Nil(t, res.Service.EndDate)
}

func TestProvisionRejectsUnknownClientOrTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Provision(tenantCtx(), clientservicedomain.ProvisionRequest{
		ClientID:   "999999999",
		TemplateID: f.tmpl.ID.String(),
	})
	assert.ErrorIs(t, err, clientservicedomain.ErrClientNotFound)

	_, err = f.svc.Provision(tenantCtx(), clientservicedomain.ProvisionRequest{
		ClientID:   f.client.ID.String(),
		TemplateID: "999999999",
	})
	assert.ErrorIs(t, err, clientservicedomain.ErrTemplateNotFound)
}

func TestActivateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	ctx := tenantCtx()

	first, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Empty(t, first.Degraded)

	second, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)
	assert.False(t, second.Changed)

	// Double activation records the activation event at most once and keeps
	// a single recurring schedule.
	assert.Equal(t, int64(1), f.countEvents(t, eventsdomain.EventServiceActivated))

	var schedules int64
	require.NoError(t, f.db.Model(&billingdomain.Recurring{}).
		Where("service_id = ?", service.ID).Count(&schedules).Error)
	assert.Equal(t, int64(1), schedules)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, clientservicedomain.ServiceStatusActive, row.Status)
	require.NotNil(t, row.ActivatedAt)
	assert.True(t, row.HasRecurringBilling())
}

func TestActivateCancelledFails(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 0)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, service.ID.String(), nil)
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, service.ID.String())
	assert.ErrorIs(t, err, clientservicedomain.ErrServiceCancelled)
}

func TestSuspendAppendsReasonAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)

	first, err := f.svc.Suspend(ctx, service.ID.String(), "non-payment")
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := f.svc.Suspend(ctx, service.ID.String(), "non-payment again")
	require.NoError(t, err)
	assert.False(t, second.Changed)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, clientservicedomain.ServiceStatusSuspended, row.Status)
	assert.Contains(t, row.Notes, "SUSPENDED: non-payment")
	assert.NotContains(t, row.Notes, "non-payment again")

	var recurring billingdomain.Recurring
	require.NoError(t, f.db.First(&recurring, "service_id = ?", service.ID).Error)
	assert.Equal(t, billingdomain.RecurringStatusPaused, recurring.Status)
}

func TestResumeNotSuspendedReturnsFalse(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)

	resumed, err := f.svc.Resume(ctx, service.ID.String())
	require.NoError(t, err)
	assert.False(t, resumed)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, clientservicedomain.ServiceStatusActive, row.Status)
	assert.Equal(t, int64(0), f.countEvents(t, eventsdomain.EventServiceResumed))
}

func TestSuspendResumeRoundTrip(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Suspend(ctx, service.ID.String(), "maintenance hold")
	require.NoError(t, err)

	resumed, err := f.svc.Resume(ctx, service.ID.String())
	require.NoError(t, err)
	assert.True(t, resumed)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, clientservicedomain.ServiceStatusActive, row.Status)
	assert.Nil(t, row.SuspendedAt)

	var recurring billingdomain.Recurring
	require.NoError(t, f.db.First(&recurring, "service_id = ?", service.ID).Error)
	assert.Equal(t, billingdomain.RecurringStatusActive, recurring.Status)
}

func TestCancelRecordsFeeAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	// 12 month term starting 2024-01-01; cancelling 2024-07-01 leaves six
	// whole months at 100/month, so the fee is 50% of 600.
	service := f.provision(t, 12)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)

	effective := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	res, err := f.svc.Cancel(ctx, service.ID.String(), &effective)
	require.NoError(t, err)
	assert.Equal(t, 300.0, res.Fee)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, clientservicedomain.ServiceStatusCancelled, row.Status)
	assert.False(t, row.AutoRenewal)
	require.NotNil(t, row.CancellationFee)
	assert.Equal(t, 300.0, *row.CancellationFee)

	again, err := f.svc.Cancel(ctx, service.ID.String(), &effective)
	require.NoError(t, err)
	assert.Equal(t, 300.0, again.Fee)
	assert.Equal(t, int64(1), f.countEvents(t, eventsdomain.EventServiceCancelled))
}

func TestRenewExtendsTwelveMonths(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 0)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)

	renewal := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.db.Model(&clientservicedomain.ClientService{}).
		Where("id = ?", service.ID).
		Update("renewal_date", renewal).Error)

	res, err := f.svc.Renew(ctx, service.ID.String(), 12)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), res.RenewalDate)
	assert.Equal(t, 1, res.RenewalCount)

	_, err = f.svc.Renew(ctx, service.ID.String(), 0)
	assert.ErrorIs(t, err, clientservicedomain.ErrInvalidMonths)
}

func TestTransferToClient(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	ctx := tenantCtx()

	err := f.svc.TransferToClient(ctx, service.ID.String(), f.client.ID.String())
	assert.ErrorIs(t, err, clientservicedomain.ErrSameClient)

	other := clientdomain.Client{
		ID:        service.ID + 1,
		CompanyID: snowflake.ID(testCompanyID),
		Name:      "Northwind",
		Slug:      "northwind",
		Status:    clientdomain.ClientStatusActive,
		Currency:  "USD",
	}
	require.NoError(t, f.db.Create(&other).Error)

	require.NoError(t, f.svc.TransferToClient(ctx, service.ID.String(), other.ID.String()))

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, other.ID, row.ClientID)
	assert.Contains(t, row.Notes, "TRANSFERRED")
	assert.Equal(t, int64(1), f.countEvents(t, eventsdomain.EventServiceTransferred))
}

func TestGetServiceHealthPersistsScoreAndDegradationEvent(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	ctx := tenantCtx()

	_, err := f.svc.Activate(ctx, service.ID.String())
	require.NoError(t, err)

	// Ten breaches hit the SLA penalty cap: 100 - 30 = 70, a 30 point
	// drop. A fresh review date keeps the never-reviewed penalty out of
	// the arithmetic.
	require.NoError(t, f.db.Model(&clientservicedomain.ClientService{}).
		Where("id = ?", service.ID).
		Updates(map[string]any{
			"sla_breaches_count": 10,
			"last_review_date":   f.clock.Now().AddDate(0, 0, -7),
		}).Error)

	res, err := f.svc.GetServiceHealth(ctx, service.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 70.0, res.Score)
	assert.Equal(t, 10, res.Breaches)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	assert.Equal(t, 70.0, row.HealthScore)
	require.NotNil(t, row.HealthCheckedAt)

	assert.Equal(t, int64(1), f.countEvents(t, eventsdomain.EventHealthDegraded))
}

func TestCalculateMRRAndARR(t *testing.T) {
	f := newFixture(t)
	ctx := tenantCtx()

	first := f.provision(t, 12)
	_, err := f.svc.Activate(ctx, first.ID.String())
	require.NoError(t, err)

	res, err := f.svc.Provision(ctx, clientservicedomain.ProvisionRequest{
		ClientID:   f.client.ID.String(),
		TemplateID: f.tmpl.ID.String(),
		Overrides:  map[string]any{"monthly_cost": 200.0},
	})
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, res.Service.ID.String())
	require.NoError(t, err)

	// A cancelled service contributes nothing.
	third := f.provision(t, 0)
	_, err = f.svc.Activate(ctx, third.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, third.ID.String(), nil)
	require.NoError(t, err)

	mrr, err := f.svc.CalculateMRR(ctx, f.client.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 300.0, mrr)

	arr, err := f.svc.CalculateARR(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3600.0, arr)
}

func TestEveryMethodRequiresTenant(t *testing.T) {
	f := newFixture(t)
	service := f.provision(t, 12)
	bare := context.Background()

	_, err := f.svc.Activate(bare, service.ID.String())
	assert.ErrorIs(t, err, clientservicedomain.ErrInvalidCompany)
	_, err = f.svc.GetByID(bare, service.ID.String())
	assert.ErrorIs(t, err, clientservicedomain.ErrInvalidCompany)
	_, err = f.svc.CalculateMRR(bare, "")
	assert.ErrorIs(t, err, clientservicedomain.ErrInvalidCompany)
}
