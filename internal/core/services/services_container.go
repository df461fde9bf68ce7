package services

import (
	portsrepo "github.com/SscSPs/credit_ledger_service/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_service/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_service/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// extra options are applied after the config-derived ones, so callers can attach a
// publisher or metrics.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, extra ...DebtServiceOption) *portssvc.ServiceContainer {
	options := []DebtServiceOption{
		WithDefaultCreditLimit(cfg.DefaultCreditLimit),
		WithReconciliationEpsilon(cfg.ReconciliationEpsilon),
		WithPaymentPatternWindow(cfg.PaymentPatternWindow),
	}
	options = append(options, extra...)

	return &portssvc.ServiceContainer{
		Debt: NewDebtService(repos.DebtRepo, options...),
	}
}
