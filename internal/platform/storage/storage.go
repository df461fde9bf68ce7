// Package storage opens the repository provider selected by STORAGE_DRIVER.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	portsrepo "github.com/SscSPs/credit_ledger_service/internal/core/ports/repositories"
	"github.com/SscSPs/credit_ledger_service/internal/platform/config"
	"github.com/SscSPs/credit_ledger_service/internal/repositories/database/pgsql"
	"github.com/SscSPs/credit_ledger_service/internal/repositories/memory"
	"github.com/SscSPs/credit_ledger_service/pkg/database"
)

// Open builds the repositories for cfg.StorageDriver. For Postgres it creates the pool and,
// when migrate is set, applies pending migrations first. The returned close func releases
// whatever was opened and is never nil.
func Open(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (portsrepo.RepositoryProvider, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		return portsrepo.RepositoryProvider{DebtRepo: memory.NewDebtRepository()}, func() {}, nil

	case config.StoragePostgres:
		if migrate {
			logger.Info("Running database migrations...")
			if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, database.MigrateUp, logger); err != nil {
				return portsrepo.RepositoryProvider{}, func() {}, err
			}
		}

		dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			return portsrepo.RepositoryProvider{}, func() {}, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		return pgsql.NewRepositoryProvider(dbPool), func() { database.ClosePgxPool(dbPool) }, nil

	default:
		return portsrepo.RepositoryProvider{}, func() {}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
