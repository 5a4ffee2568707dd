package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/mspforge/mspforge/internal/billing"
	"github.com/mspforge/mspforge/internal/client"
	"github.com/mspforge/mspforge/internal/clientservice"
	"github.com/mspforge/mspforge/internal/clock"
	"github.com/mspforge/mspforge/internal/company"
	"github.com/mspforge/mspforge/internal/config"
	"github.com/mspforge/mspforge/internal/dunning"
	"github.com/mspforge/mspforge/internal/events"
	"github.com/mspforge/mspforge/internal/invitation"
	"github.com/mspforge/mspforge/internal/invoice"
	"github.com/mspforge/mspforge/internal/itdoc"
	"github.com/mspforge/mspforge/internal/locks"
	"github.com/mspforge/mspforge/internal/migration"
	"github.com/mspforge/mspforge/internal/monitoring"
	"github.com/mspforge/mspforge/internal/notify"
	"github.com/mspforge/mspforge/internal/observability"
	"github.com/mspforge/mspforge/internal/provisioning"
	"github.com/mspforge/mspforge/internal/renewal"
	"github.com/mspforge/mspforge/internal/scheduler"
	"github.com/mspforge/mspforge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locks.Module,
		notify.Module,
		migration.Module,

		// Domain modules
		events.Module,
		company.Module,
		client.Module,
		clientservice.Module,
		billing.Module,
		invoice.Module,
		provisioning.Module,
		monitoring.Module,
		renewal.Module,
		dunning.Module,
		itdoc.Module,
		invitation.Module,

		// Background sweeps; no HTTP server in this deployment.
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
