package services

import (
	"context"

	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreditCheckerSvc defines the credit check and reservation protocol.
type CreditCheckerSvc interface {
	// CheckCreditAvailability checks (currentDebt + orderAmount) <= creditLimit under an
	// exclusive lock on the customer's account and optionally reserves the amount.
	CheckCreditAvailability(ctx context.Context, customerID string, orderAmount decimal.Decimal, opts domain.CreditCheckOptions) (*domain.CreditCheckResult, error)
}

// DebtReaderSvc defines read operations over a customer's debt.
type DebtReaderSvc interface {
	// GetCustomerDebt returns the reconciled debt summary, creating the account if needed.
	GetCustomerDebt(ctx context.Context, customerID string) (*domain.DebtSummary, error)

	// GetDebtHistory returns a page of ledger history, newest first.
	GetDebtHistory(ctx context.Context, customerID string, filter domain.HistoryFilter) ([]domain.LedgerTransaction, *string, error)

	// ListOverdue returns overdue ledger rows across all customers.
	ListOverdue(ctx context.Context) ([]domain.LedgerTransaction, error)

	// GetCreditLimitHistory returns the audit trail of limit changes.
	GetCreditLimitHistory(ctx context.Context, customerID string) ([]domain.CreditLimitChange, error)
}

// DebtWriterSvc defines write operations over a customer's debt and credit settings.
type DebtWriterSvc interface {
	// RecordPayment atomically reduces the debt and appends a PAYMENT ledger row.
	RecordPayment(ctx context.Context, customerID string, payment domain.Payment) (*domain.DebtSummary, error)

	// AddTransaction posts a non-payment ledger entry and applies it to the cached balance.
	AddTransaction(ctx context.Context, customerID string, txnType domain.LedgerTransactionType, amount decimal.Decimal, actorID string, opts domain.TransactionOptions) (*domain.LedgerTransaction, error)

	// UpdateCreditLimit changes the limit of an existing account and records the audit entry.
	UpdateCreditLimit(ctx context.Context, customerID string, newLimit decimal.Decimal, changedBy string, reason string) (*domain.CreditAccount, error)

	// SetBlockStatus blocks or unblocks an existing account.
	SetBlockStatus(ctx context.Context, customerID string, blocked bool, reason string, actorID string) (*domain.CreditAccount, error)
}

// DebtReconcilerSvc defines bulk maintenance operations.
type DebtReconcilerSvc interface {
	// ReconcileAll runs summary reconciliation for every known customer and returns how many were processed.
	ReconcileAll(ctx context.Context) (int, error)
}

// DebtSvcFacade combines all debt-related service interfaces
type DebtSvcFacade interface {
	CreditCheckerSvc
	DebtReaderSvc
	DebtWriterSvc
	DebtReconcilerSvc
}
