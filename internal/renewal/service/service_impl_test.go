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
	clientserviceimpl "github.com/mspforge/mspforge/internal/clientservice/service"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	eventsservice "github.com/mspforge/mspforge/internal/events/service"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	invoiceservice "github.com/mspforge/mspforge/internal/invoice/service"
	"github.com/mspforge/mspforge/internal/locks"
	"github.com/mspforge/mspforge/internal/notify"
	provisioningservice "github.com/mspforge/mspforge/internal/provisioning/service"
	renewaldomain "github.com/mspforge/mspforge/internal/renewal/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCompanyID = snowflake.ID(1001)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc  renewaldomain.Service
	db   *gorm.DB
	node *snowflake.Node
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
	fake := clock.NewFakeClock(now)
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
	lifecycle := clientserviceimpl.NewService(clientserviceimpl.ServiceParam{
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

	svc := NewService(ServiceParam{
		DB:        db,
		Log:       log,
		Clock:     fake,
		Repo:      svcRepo,
		Lifecycle: lifecycle,
		Events:    events,
		Deduper:   locks.NewDeduper(nil),
		Notifier:  notify.NewLogNotifier(log),
	})

	return &fixture{svc: svc, db: db, node: node}
}

func (f *fixture) seedService(t *testing.T, mutate func(*clientservicedomain.ClientService)) *clientservicedomain.ClientService {
	t.Helper()

	renewal := now.AddDate(0, 0, -1)
	service := &clientservicedomain.ClientService{
		ID:           f.node.Generate(),
		CompanyID:    testCompanyID,
		ClientID:     snowflake.ID(2001),
		Name:         "Managed Backup",
		Status:       clientservicedomain.ServiceStatusActive,
		MonthlyCost:  100,
		BillingCycle: clientservicedomain.BillingCycleMonthly,
		Currency:     "USD",
		RenewalDate:  &renewal,
		AutoRenewal:  true,
		HealthScore:  100,
	}
	if mutate != nil {
		mutate(service)
	}
	require.NoError(t, f.db.Create(service).Error)
	return service
}

func TestEligible(t *testing.T) {
	renewal := now.AddDate(0, 0, 5)

	tests := []struct {
		name    string
		service clientservicedomain.ClientService
		want    bool
	}{
		{
			"active with renewal date",
			clientservicedomain.ClientService{Status: clientservicedomain.ServiceStatusActive, RenewalDate: &renewal},
			true,
		},
		{
			"at breach ceiling",
			clientservicedomain.ClientService{Status: clientservicedomain.ServiceStatusActive, RenewalDate: &renewal, SLABreachesCount: 5},
			true,
		},
		{
			"over breach ceiling",
			clientservicedomain.ClientService{Status: clientservicedomain.ServiceStatusActive, RenewalDate: &renewal, SLABreachesCount: 6},
			false,
		},
		{
			"no renewal date",
			clientservicedomain.ClientService{Status: clientservicedomain.ServiceStatusActive},
			false,
		},
		{
			"suspended",
			clientservicedomain.ClientService{Status: clientservicedomain.ServiceStatusSuspended, RenewalDate: &renewal},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renewaldomain.Eligible(&tt.service))
		})
	}
}

func TestTermMonths(t *testing.T) {
	assert.Equal(t, 1, renewaldomain.TermMonths(clientservicedomain.BillingCycleWeekly))
	assert.Equal(t, 1, renewaldomain.TermMonths(clientservicedomain.BillingCycleMonthly))
	assert.Equal(t, 3, renewaldomain.TermMonths(clientservicedomain.BillingCycleQuarterly))
	assert.Equal(t, 6, renewaldomain.TermMonths(clientservicedomain.BillingCycleSemiAnnually))
	assert.Equal(t, 12, renewaldomain.TermMonths(clientservicedomain.BillingCycleAnnually))
}

func TestProcessAutoRenewalsPartitionsOutcomes(t *testing.T) {
	f := newFixture(t)

	eligible := f.seedService(t, nil)
	breached := f.seedService(t, func(s *clientservicedomain.ClientService) {
		s.SLABreachesCount = renewaldomain.MaxRenewableBreaches + 1
	})

	report, err := f.svc.ProcessAutoRenewals(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{eligible.ID.String()}, report.Processed)
	assert.Equal(t, []string{breached.ID.String()}, report.Skipped)
	assert.Empty(t, report.Failed)

	// Monthly cycle renews one month from the old renewal date.
	oldRenewal := now.AddDate(0, 0, -1)
	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", eligible.ID).Error)
	require.NotNil(t, row.RenewalDate)
	assert.Equal(t, oldRenewal.AddDate(0, 1, 0), row.RenewalDate.UTC())
	assert.Equal(t, 1, row.RenewalCount)

	// The breached contract must never auto-renew. A fresh struct keeps
	// the previous lookup's primary key out of the query.
	var untouched clientservicedomain.ClientService
	require.NoError(t, f.db.First(&untouched, "id = ?", breached.ID).Error)
	require.NotNil(t, untouched.RenewalDate)
	assert.Equal(t, oldRenewal, untouched.RenewalDate.UTC())
	assert.Equal(t, 0, untouched.RenewalCount)
}

func TestProcessAutoRenewalsRatchetsTemplatePricing(t *testing.T) {
	f := newFixture(t)

	raised := clientservicedomain.ServiceTemplate{
		ID:           f.node.Generate(),
		CompanyID:    testCompanyID,
		Name:         "Managed Backup",
		MonthlyCost:  150,
		BillingCycle: clientservicedomain.BillingCycleMonthly,
		Currency:     "USD",
		Active:       true,
	}
	require.NoError(t, f.db.Create(&raised).Error)

	lowered := clientservicedomain.ServiceTemplate{
		ID:           f.node.Generate(),
		CompanyID:    testCompanyID,
		Name:         "Legacy Backup",
		MonthlyCost:  60,
		BillingCycle: clientservicedomain.BillingCycleMonthly,
		Currency:     "USD",
		Active:       true,
	}
	require.NoError(t, f.db.Create(&lowered).Error)

	up := f.seedService(t, func(s *clientservicedomain.ClientService) { s.TemplateID = raised.ID })
	down := f.seedService(t, func(s *clientservicedomain.ClientService) { s.TemplateID = lowered.ID })

	_, err := f.svc.ProcessAutoRenewals(context.Background(), 0)
	require.NoError(t, err)

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", up.ID).Error)
	assert.Equal(t, 150.0, row.MonthlyCost)

	// Price never ratchets down.
	var kept clientservicedomain.ClientService
	require.NoError(t, f.db.First(&kept, "id = ?", down.ID).Error)
	assert.Equal(t, 100.0, kept.MonthlyCost)
}

func TestSendRenewalRemindersDedupesAcrossRuns(t *testing.T) {
	f := newFixture(t)

	f.seedService(t, func(s *clientservicedomain.ClientService) {
		renewal := now.AddDate(0, 0, 14)
		s.RenewalDate = &renewal
		s.AutoRenewal = false
	})

	report, err := f.svc.SendRenewalReminders(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)

	// Re-running inside the window must not produce a second reminder; the
	// outbox dedupe key absorbs the duplicate.
	_, err = f.svc.SendRenewalReminders(context.Background(), 0)
	require.NoError(t, err)

	var n int64
	require.NoError(t, f.db.Model(&eventsdomain.LifecycleEvent{}).
		Where("event_type = ?", eventsdomain.EventRenewalReminder).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestExtendGracePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithCompanyID(context.Background(), int64(testCompanyID))

	end := now.AddDate(0, 0, -10)
	service := f.seedService(t, func(s *clientservicedomain.ClientService) { s.EndDate = &end })

	grace, err := f.svc.ListGracePeriod(ctx)
	require.NoError(t, err)
	require.Len(t, grace, 1)

	require.NoError(t, f.svc.ExtendGracePeriod(ctx, service.ID.String(), 15))

	var row clientservicedomain.ClientService
	require.NoError(t, f.db.First(&row, "id = ?", service.ID).Error)
	require.NotNil(t, row.EndDate)
	assert.Equal(t, end.AddDate(0, 0, 15), row.EndDate.UTC())

	assert.ErrorIs(t, f.svc.ExtendGracePeriod(ctx, service.ID.String(), 0), renewaldomain.ErrInvalidDays)
}
