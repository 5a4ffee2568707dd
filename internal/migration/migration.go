// Package migration applies the schema on startup so the app is usable out
// of the box for local and self-hosted installs.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingdomain "github.com/mspforge/mspforge/internal/billing/domain"
	clientdomain "github.com/mspforge/mspforge/internal/client/domain"
	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	companydomain "github.com/mspforge/mspforge/internal/company/domain"
	dunningdomain "github.com/mspforge/mspforge/internal/dunning/domain"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	invitationdomain "github.com/mspforge/mspforge/internal/invitation/domain"
	invoicedomain "github.com/mspforge/mspforge/internal/invoice/domain"
	itdocdomain "github.com/mspforge/mspforge/internal/itdoc/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite and
// mysql where the SQL migration set does not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&companydomain.Company{},
		&companydomain.HierarchyLink{},
		&companydomain.SubsidiaryPermission{},
		&clientdomain.Client{},
		&clientdomain.Contact{},
		&clientdomain.Location{},
		&clientservicedomain.ClientService{},
		&clientservicedomain.ServiceTemplate{},
		&billingdomain.Recurring{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&dunningdomain.DunningAction{},
		&dunningdomain.CollectionNote{},
		&itdocdomain.ITDocumentation{},
		&invitationdomain.Invitation{},
		&eventsdomain.LifecycleEvent{},
	)
}
