// Package memory provides an in-process debt repository for development and tests.
// It honours the same locking contract as the Postgres repository: accounts locked in
// a unit of work stay locked until it ends, and a failed unit of work is undone.
// Unlike Postgres, readers outside the unit of work can observe uncommitted writes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/apperrors"
	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_service/internal/core/ports/repositories"
	"github.com/SscSPs/credit_ledger_service/internal/utils/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppendHook runs before a ledger row is stored; a non-nil error aborts the append.
type AppendHook func(ctx context.Context, customerID string, txnType domain.LedgerTransactionType) error

// DebtRepository keeps credit accounts, limit changes and the ledger in maps.
type DebtRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.CreditAccount
	changes  map[string][]domain.CreditLimitChange
	ledger   map[string][]domain.LedgerTransaction
	locks    map[string]chan struct{}

	appendHook AppendHook
	now        func() time.Time
}

// NewDebtRepository creates an empty repository.
func NewDebtRepository() *DebtRepository {
	return &DebtRepository{
		accounts: make(map[string]*domain.CreditAccount),
		changes:  make(map[string][]domain.CreditLimitChange),
		ledger:   make(map[string][]domain.LedgerTransaction),
		locks:    make(map[string]chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ portsrepo.DebtRepositoryWithTx = (*DebtRepository)(nil)

// SetAppendHook installs hook; nil removes it.
func (r *DebtRepository) SetAppendHook(hook AppendHook) {
	r.mu.Lock()
	r.appendHook = hook
	r.mu.Unlock()
}

// SetClock overrides the time used for createdAt stamps.
func (r *DebtRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SeedTransaction stores a ledger row as is, bypassing the account balance. It exists to
// build fixtures such as overdue entries or a drifted cache.
func (r *DebtRepository) SeedTransaction(txn domain.LedgerTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn.TransactionID == "" {
		txn.TransactionID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = r.now()
	}
	r.ledger[txn.CustomerID] = append(r.ledger[txn.CustomerID], txn)
}

func cloneAccount(a *domain.CreditAccount) *domain.CreditAccount {
	c := *a
	return &c
}

// mutateAccount applies fn to the stored account under the customer lock, recording an
// undo entry when a unit of work is active.
func (r *DebtRepository) mutateAccount(ctx context.Context, customerID string, fn func(a *domain.CreditAccount) error) (*domain.CreditAccount, error) {
	release, err := r.lockCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer release()

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[customerID]
	if !ok {
		return nil, fmt.Errorf("credit account for customer %s: %w", customerID, apperrors.ErrNotFound)
	}
	before := *account
	if err := fn(account); err != nil {
		*account = before
		return nil, err
	}
	if tx := txFromCtx(ctx); tx != nil {
		tx.onRollback(func() { *r.accounts[customerID] = before })
	}
	return cloneAccount(account), nil
}

// FindByCustomerID returns the account or apperrors.ErrNotFound.
func (r *DebtRepository) FindByCustomerID(_ context.Context, customerID string) (*domain.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[customerID]
	if !ok {
		return nil, fmt.Errorf("credit account for customer %s: %w", customerID, apperrors.ErrNotFound)
	}
	return cloneAccount(account), nil
}

func (r *DebtRepository) findOrCreateLocked(ctx context.Context, customerID string, defaultLimit decimal.Decimal) *domain.CreditAccount {
	if account, ok := r.accounts[customerID]; ok {
		return cloneAccount(account)
	}
	account := domain.NewCreditAccount(customerID, defaultLimit, r.now())
	r.accounts[customerID] = &account
	if tx := txFromCtx(ctx); tx != nil {
		tx.onRollback(func() { delete(r.accounts, customerID) })
	}
	return cloneAccount(&account)
}

// FindOrCreate returns the account, creating a default one if absent.
func (r *DebtRepository) FindOrCreate(ctx context.Context, customerID string, defaultLimit decimal.Decimal) (*domain.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(ctx, customerID, defaultLimit), nil
}

// FindOrCreateWithLock creates the account if absent and locks it for the rest of the
// unit of work in ctx. Outside a unit of work no lock is kept.
func (r *DebtRepository) FindOrCreateWithLock(ctx context.Context, customerID string, defaultLimit decimal.Decimal) (*domain.CreditAccount, error) {
	release, err := r.lockCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer release()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(ctx, customerID, defaultLimit), nil
}

// ListCustomerIDs returns every known customer, sorted.
func (r *DebtRepository) ListCustomerIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListCreditLimitChanges returns the audit history, newest first.
func (r *DebtRepository) ListCreditLimitChanges(_ context.Context, customerID string) ([]domain.CreditLimitChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.changes[customerID]
	out := make([]domain.CreditLimitChange, len(stored))
	for i := range stored {
		out[len(stored)-1-i] = stored[i]
	}
	return out, nil
}

// AddDebt moves the cached balance by amount.
func (r *DebtRepository) AddDebt(ctx context.Context, customerID string, amount decimal.Decimal, actorID string) (*domain.CreditAccount, error) {
	now := r.clock()
	return r.mutateAccount(ctx, customerID, func(a *domain.CreditAccount) error {
		a.AddDebt(amount, actorID, now)
		return nil
	})
}

// RecordPaymentOnAccount reduces the cached balance and stamps the payment date.
func (r *DebtRepository) RecordPaymentOnAccount(ctx context.Context, customerID string, amount decimal.Decimal, actorID string, paidAt time.Time) (*domain.CreditAccount, error) {
	return r.mutateAccount(ctx, customerID, func(a *domain.CreditAccount) error {
		a.RecordPayment(amount, actorID, paidAt)
		return nil
	})
}

// SetCurrentDebt overwrites the cached balance.
func (r *DebtRepository) SetCurrentDebt(ctx context.Context, customerID string, value decimal.Decimal, actorID string) error {
	now := r.clock()
	_, err := r.mutateAccount(ctx, customerID, func(a *domain.CreditAccount) error {
		a.AddDebt(value.Sub(a.CurrentDebt), actorID, now)
		return nil
	})
	return err
}

// UpdateCreditLimit stores the new limit and appends change to the audit history.
func (r *DebtRepository) UpdateCreditLimit(ctx context.Context, account domain.CreditAccount, change domain.CreditLimitChange) error {
	_, err := r.mutateAccount(ctx, account.CustomerID, func(a *domain.CreditAccount) error {
		a.CreditLimit = account.CreditLimit
		a.LastUpdatedAt = account.LastUpdatedAt
		a.LastUpdatedBy = account.LastUpdatedBy
		a.Version++

		// r.mu is held by mutateAccount.
		r.changes[account.CustomerID] = append(r.changes[account.CustomerID], change)
		if tx := txFromCtx(ctx); tx != nil {
			tx.onRollback(func() { r.removeChange(account.CustomerID, change.ChangeID) })
		}
		return nil
	})
	return err
}

func (r *DebtRepository) removeChange(customerID, changeID string) {
	stored := r.changes[customerID]
	for i := range stored {
		if stored[i].ChangeID == changeID {
			r.changes[customerID] = append(stored[:i:i], stored[i+1:]...)
			return
		}
	}
}

// UpdateBlockStatus stores the block flag and reason.
func (r *DebtRepository) UpdateBlockStatus(ctx context.Context, account domain.CreditAccount) error {
	_, err := r.mutateAccount(ctx, account.CustomerID, func(a *domain.CreditAccount) error {
		a.IsBlocked = account.IsBlocked
		a.BlockReason = account.BlockReason
		a.LastUpdatedAt = account.LastUpdatedAt
		a.LastUpdatedBy = account.LastUpdatedBy
		a.Version++
		return nil
	})
	return err
}

// AppendTransaction stores an immutable ledger row.
func (r *DebtRepository) AppendTransaction(ctx context.Context, customerID string, txnType domain.LedgerTransactionType, amount decimal.Decimal, actorID string, opts domain.TransactionOptions) (*domain.LedgerTransaction, error) {
	if !txnType.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, txnType)
	}

	r.mu.Lock()
	hook := r.appendHook
	r.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, customerID, txnType); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[customerID]
	if !ok {
		return nil, fmt.Errorf("credit account for customer %s: %w", customerID, apperrors.ErrNotFound)
	}
	balanceBefore := account.CurrentDebt
	if opts.BalanceBefore != nil {
		balanceBefore = *opts.BalanceBefore
	}

	now := r.now()
	txn := domain.LedgerTransaction{
		TransactionID:   uuid.NewString(),
		CustomerID:      customerID,
		TransactionType: txnType,
		Amount:          amount,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceBefore.Add(amount),
		OrderID:         opts.OrderID,
		DueDate:         opts.DueDate,
		Notes:           opts.Notes,
		CreatedBy:       actorID,
		CreatedAt:       now,
	}
	if txnType == domain.LedgerPayment {
		paidAt := now
		txn.PaidDate = &paidAt
	}

	r.ledger[customerID] = append(r.ledger[customerID], txn)
	if tx := txFromCtx(ctx); tx != nil {
		tx.onRollback(func() { r.removeTransaction(customerID, txn.TransactionID) })
	}
	out := txn
	return &out, nil
}

func (r *DebtRepository) removeTransaction(customerID, transactionID string) {
	stored := r.ledger[customerID]
	for i := range stored {
		if stored[i].TransactionID == transactionID {
			r.ledger[customerID] = append(stored[:i:i], stored[i+1:]...)
			return
		}
	}
}

// SumLedger returns the sum of the customer's ledger amounts.
func (r *DebtRepository) SumLedger(_ context.Context, customerID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.SumAmounts(r.ledger[customerID]), nil
}

// FindOverdue returns unpaid rows due before now, oldest due date first.
func (r *DebtRepository) FindOverdue(_ context.Context, customerID *string, now time.Time) ([]domain.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.LedgerTransaction
	collect := func(txns []domain.LedgerTransaction) {
		for _, t := range txns {
			if t.IsOverdue(now) {
				out = append(out, t)
			}
		}
	}
	if customerID != nil {
		collect(r.ledger[*customerID])
	} else {
		for _, txns := range r.ledger {
			collect(txns)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(*out[j].DueDate) {
			return out[i].DueDate.Before(*out[j].DueDate)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out, nil
}

// newerFirst orders by (CreatedAt DESC, TransactionID DESC), the same order the
// Postgres repository pages in.
func newerFirst(a, b domain.LedgerTransaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.TransactionID > b.TransactionID
}

// ListTransactions returns one page of history, newest first.
func (r *DebtRepository) ListTransactions(_ context.Context, customerID string, filter domain.HistoryFilter) ([]domain.LedgerTransaction, *string, error) {
	var (
		cursorAt time.Time
		cursorID string
	)
	if filter.NextToken != nil && *filter.NextToken != "" {
		var err error
		cursorAt, cursorID, err = pagination.DecodeHistoryToken(*filter.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
	}

	r.mu.Lock()
	matched := make([]domain.LedgerTransaction, 0)
	for _, t := range r.ledger[customerID] {
		if filter.TransactionType != nil && t.TransactionType != *filter.TransactionType {
			continue
		}
		if filter.From != nil && t.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.CreatedAt.After(*filter.To) {
			continue
		}
		if cursorID != "" && !newerFirst(domain.LedgerTransaction{CreatedAt: cursorAt, TransactionID: cursorID}, t) {
			continue
		}
		matched = append(matched, t)
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return newerFirst(matched[i], matched[j]) })

	if filter.Limit <= 0 || len(matched) <= filter.Limit {
		return matched, nil, nil
	}
	page := matched[:filter.Limit]
	last := page[len(page)-1]
	token := pagination.EncodeHistoryToken(last.CreatedAt, last.TransactionID)
	return page, &token, nil
}

// CountPaymentsSince counts PAYMENT rows created at or after since.
func (r *DebtRepository) CountPaymentsSince(_ context.Context, customerID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.ledger[customerID] {
		if t.TransactionType == domain.LedgerPayment && !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *DebtRepository) clock() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now()
}
