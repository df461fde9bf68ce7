package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreditAccountReader defines read operations for credit accounts.
type CreditAccountReader interface {
	// FindByCustomerID returns apperrors.ErrNotFound when the customer has no credit account.
	FindByCustomerID(ctx context.Context, customerID string) (*domain.CreditAccount, error)

	// FindOrCreate returns the account, inserting a default one if absent. No lock is taken.
	FindOrCreate(ctx context.Context, customerID string, defaultLimit decimal.Decimal) (*domain.CreditAccount, error)

	// ListCustomerIDs returns every customer that has a credit account.
	ListCustomerIDs(ctx context.Context) ([]string, error)

	// ListCreditLimitChanges returns the limit audit history, newest first.
	ListCreditLimitChanges(ctx context.Context, customerID string) ([]domain.CreditLimitChange, error)
}

// CreditAccountWriter defines write operations for credit accounts.
type CreditAccountWriter interface {
	// AddDebt increments the cached balance by amount (negative for payments).
	// Returns apperrors.ErrNotFound when the account does not exist.
	AddDebt(ctx context.Context, customerID string, amount decimal.Decimal, actorID string) (*domain.CreditAccount, error)

	// RecordPaymentOnAccount decrements the cached balance and stamps the last payment date.
	RecordPaymentOnAccount(ctx context.Context, customerID string, amount decimal.Decimal, actorID string, paidAt time.Time) (*domain.CreditAccount, error)

	// SetCurrentDebt overwrites the cached balance. Used only by reconciliation.
	SetCurrentDebt(ctx context.Context, customerID string, value decimal.Decimal, actorID string) error

	// UpdateCreditLimit persists the account's new limit together with its audit record.
	UpdateCreditLimit(ctx context.Context, account domain.CreditAccount, change domain.CreditLimitChange) error

	// UpdateBlockStatus persists the block flag and reason.
	UpdateBlockStatus(ctx context.Context, account domain.CreditAccount) error
}

// CreditAccountTransactionSupport defines operations that only make sense inside a unit of work.
type CreditAccountTransactionSupport interface {
	// FindOrCreateWithLock upserts the account and holds an exclusive lock on it until the
	// enclosing unit of work ends, so concurrent callers for the same customer serialize.
	// Outside a unit of work it still upserts but holds no lock.
	FindOrCreateWithLock(ctx context.Context, customerID string, defaultLimit decimal.Decimal) (*domain.CreditAccount, error)
}

// LedgerReader defines read operations over the debt ledger.
type LedgerReader interface {
	// SumLedger returns the sum of every transaction amount for the customer.
	SumLedger(ctx context.Context, customerID string) (decimal.Decimal, error)

	// FindOverdue returns unpaid transactions whose due date is before now.
	// A nil customerID searches across all customers.
	FindOverdue(ctx context.Context, customerID *string, now time.Time) ([]domain.LedgerTransaction, error)

	// ListTransactions returns the customer's history newest first and a token for the next page.
	ListTransactions(ctx context.Context, customerID string, filter domain.HistoryFilter) ([]domain.LedgerTransaction, *string, error)

	// CountPaymentsSince counts PAYMENT rows created at or after since.
	CountPaymentsSince(ctx context.Context, customerID string, since time.Time) (int, error)
}

// LedgerWriter defines the append-only write side of the ledger.
type LedgerWriter interface {
	// AppendTransaction inserts an immutable ledger row. balanceBefore comes from
	// opts.BalanceBefore when set, otherwise from the account's cached balance.
	AppendTransaction(ctx context.Context, customerID string, txnType domain.LedgerTransactionType, amount decimal.Decimal, actorID string, opts domain.TransactionOptions) (*domain.LedgerTransaction, error)
}

// DebtRepositoryFacade is the data-access façade the debt service depends on.
type DebtRepositoryFacade interface {
	CreditAccountReader
	CreditAccountWriter
	CreditAccountTransactionSupport
	LedgerReader
	LedgerWriter
}

// DebtRepositoryWithTx extends DebtRepositoryFacade with unit-of-work support.
type DebtRepositoryWithTx interface {
	DebtRepositoryFacade
	TransactionManager
}
