package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	clientrepo "github.com/mspforge/mspforge/internal/client/repository"
	"github.com/mspforge/mspforge/internal/clock"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	eventssvc "github.com/mspforge/mspforge/internal/events/service"
	invitationdomain "github.com/mspforge/mspforge/internal/invitation/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCompanyID = int64(1001)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&clientdomain.Contact{},
		&invitationdomain.Invitation{},
		&eventsdomain.LifecycleEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	events := eventssvc.NewService(eventssvc.ServiceParam{
		Log:   zap.NewNop(),
		GenID: node,
	})

	svc := &Service{
		db:         db,
		log:        zap.NewNop(),
		genID:      node,
		clock:      fake,
		clientRepo: clientrepo.Provide(),
		events:     events,
	}
	return &fixture{svc: svc, db: db, clock: fake}
}

func tenantCtx() context.Context {
	return tenantctx.WithCompanyID(context.Background(), testCompanyID)
}

func (f *fixture) seedContact(t *testing.T) clientdomain.Contact {
	t.Helper()

	client := clientdomain.Client{
		ID:        f.svc.genID.Generate(),
		CompanyID: snowflake.ID(testCompanyID),
		Name:      "Acme Dental",
		Slug:      "acme-dental",
		Status:    clientdomain.ClientStatusActive,
		Currency:  "USD",
	}
	require.NoError(t, f.db.Create(&client).Error)

	contact := clientdomain.Contact{
		ID:        f.svc.genID.Generate(),
		CompanyID: snowflake.ID(testCompanyID),
		ClientID:  client.ID,
		FirstName: "Dana",
		Email:     "dana@acme.test",
	}
	require.NoError(t, f.db.Create(&contact).Error)
	return contact
}

func (f *fixture) eventCount(t *testing.T, eventType eventsdomain.EventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&eventsdomain.LifecycleEvent{}).
		Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateIssuesCodeAndEvent(t *testing.T) {
	f := newFixture(t)
	contact := f.seedContact(t)

	inv, err := f.svc.Create(tenantCtx(), contact.ID.String())
	require.NoError(t, err)

	assert.Equal(t, invitationdomain.StatusPending, inv.Status)
	assert.Equal(t, contact.Email, inv.Email)
	assert.NotEmpty(t, inv.Code)
	assert.Equal(t, f.clock.Now().Add(invitationdomain.TTL), inv.ExpiresAt)
	assert.EqualValues(t, 1, f.eventCount(t, eventsdomain.EventInvitationCreated))
}

func TestCreateReusesOpenInvitation(t *testing.T) {
	f := newFixture(t)
	contact := f.seedContact(t)
	ctx := tenantCtx()

	first, err := f.svc.Create(ctx, contact.ID.String())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, contact.ID.String())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Code, second.Code)

	var n int64
	require.NoError(t, f.db.Model(&invitationdomain.Invitation{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestCreateRejectsUnknownContact(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(tenantCtx(), "999999")
	assert.ErrorIs(t, err, invitationdomain.ErrInvalidContact)

	_, err = f.svc.Create(context.Background(), "1")
	assert.ErrorIs(t, err, invitationdomain.ErrInvalidCompany)
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newFixture(t)
	contact := f.seedContact(t)

	inv, err := f.svc.Create(tenantCtx(), contact.ID.String())
	require.NoError(t, err)

	// The accept flow carries no tenant context; the code is the credential.
	accepted, err := f.svc.Accept(context.Background(), inv.Code)
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	again, err := f.svc.Accept(context.Background(), inv.Code)
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusAccepted, again.Status)

	assert.EqualValues(t, 1, f.eventCount(t, eventsdomain.EventInvitationAccepted))
}

func TestAcceptUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Accept(context.Background(), "no-such-code")
	assert.ErrorIs(t, err, invitationdomain.ErrInvitationNotFound)

	_, err = f.svc.Accept(context.Background(), "   ")
	assert.ErrorIs(t, err, invitationdomain.ErrInvalidCode)
}

func TestAcceptAfterDeadlineExpires(t *testing.T) {
	f := newFixture(t)
	contact := f.seedContact(t)

	inv, err := f.svc.Create(tenantCtx(), contact.ID.String())
	require.NoError(t, err)

	f.clock.Advance(invitationdomain.TTL + time.Hour)

	_, err = f.svc.Accept(context.Background(), inv.Code)
	assert.ErrorIs(t, err, invitationdomain.ErrInvitationExpired)

	var got invitationdomain.Invitation
	require.NoError(t, f.db.First(&got, "id = ?", inv.ID).Error)
	assert.Equal(t, invitationdomain.StatusExpired, got.Status)

	// The second attempt hits the already-expired row.
	_, err = f.svc.Accept(context.Background(), inv.Code)
	assert.ErrorIs(t, err, invitationdomain.ErrInvitationExpired)
}

func TestRevokeBlocksAccept(t *testing.T) {
	f := newFixture(t)
	contact := f.seedContact(t)
	ctx := tenantCtx()

	inv, err := f.svc.Create(ctx, contact.ID.String())
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, inv.ID.String()))

	_, err = f.svc.Accept(context.Background(), inv.Code)
	assert.ErrorIs(t, err, invitationdomain.ErrInvitationRevoked)

	// Revoking twice finds nothing pending.
	assert.ErrorIs(t, f.svc.Revoke(ctx, inv.ID.String()), invitationdomain.ErrInvitationNotFound)
}

func TestExpirePendingSweep(t *testing.T) {
	f := newFixture(t)
	contact := f.seedContact(t)
	ctx := tenantCtx()

	stale, err := f.svc.Create(ctx, contact.ID.String())
	require.NoError(t, err)

	f.clock.Advance(invitationdomain.TTL + time.Hour)

	fresh, err := f.svc.Create(ctx, contact.ID.String())
	require.NoError(t, err)
	require.NotEqual(t, stale.ID, fresh.ID)

	report, err := f.svc.ExpirePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	var got invitationdomain.Invitation
	require.NoError(t, f.db.First(&got, "id = ?", stale.ID).Error)
	assert.Equal(t, invitationdomain.StatusExpired, got.Status)

	list, err := f.svc.ListByClient(ctx, contact.ClientID.String())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
