// Package cli implements ledgerctl, the operator CLI for the credit ledger.
package cli

import (
	"context"
	"log/slog"
	"os"

	portssvc "github.com/SscSPs/credit_ledger_service/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_service/internal/core/services"
	"github.com/SscSPs/credit_ledger_service/internal/platform/config"
	"github.com/SscSPs/credit_ledger_service/internal/platform/storage"
	"github.com/spf13/cobra"
)

// ServiceOpener returns the debt service the commands run against and a func that
// releases it.
type ServiceOpener func(ctx context.Context) (portssvc.DebtSvcFacade, func(), error)

// openService is replaced in tests.
var openService ServiceOpener = openConfiguredService

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the customer credit ledger",
	Long: `ledgerctl runs maintenance tasks against the credit ledger database:
schema migrations, debt summaries, cache reconciliation and overdue reports.
Configuration is read from the same environment as the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openConfiguredService(ctx context.Context) (portssvc.DebtSvcFacade, func(), error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	repos, closeStorage, err := storage.Open(ctx, cfg, false, logger)
	if err != nil {
		return nil, nil, err
	}
	container := services.NewServiceContainer(cfg, repos)
	return container.Debt, closeStorage, nil
}
