// Package main is the entry point for the substrate ontology store.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/connections"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/groups"
	"github.com/substrate-hq/substrate/domain/health"
	"github.com/substrate-hq/substrate/domain/knowledge"
	"github.com/substrate-hq/substrate/domain/mutations"
	"github.com/substrate-hq/substrate/domain/queries"
	"github.com/substrate-hq/substrate/domain/scheduler"
	"github.com/substrate-hq/substrate/domain/things"
	"github.com/substrate-hq/substrate/domain/typeregistry"
	"github.com/substrate-hq/substrate/domain/webhooks"
	"github.com/substrate-hq/substrate/internal/config"
	"github.com/substrate-hq/substrate/internal/database"
	"github.com/substrate-hq/substrate/internal/migrate"
	"github.com/substrate-hq/substrate/internal/server"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

func main() {
	// Load .env if present (local development only).
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		server.OtelModule,

		// Auth module
		auth.Module,

		// Domain modules
		health.Module,
		authz.Module,
		typeregistry.Module,
		groups.Module,
		things.Module,
		connections.Module,
		knowledge.Module,
		events.Module,
		mutations.Module,
		queries.Module,
		webhooks.Module,

		// Scheduler module (maintenance tasks)
		scheduler.Module,
	).Run()
}
