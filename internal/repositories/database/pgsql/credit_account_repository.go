package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/apperrors"
	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/SscSPs/credit_ledger_service/internal/models"
	"github.com/SscSPs/credit_ledger_service/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const creditAccountColumns = `customer_id, credit_limit, current_debt, is_blocked, block_reason, last_payment_date,
	created_at, created_by, last_updated_at, last_updated_by, version`

const insertDefaultAccountQuery = `
	INSERT INTO credit_accounts (customer_id, credit_limit, current_debt, is_blocked, block_reason,
		created_at, created_by, last_updated_at, last_updated_by, version)
	VALUES ($1, $2, 0, FALSE, '', $3, $4, $3, $4, 1)
	ON CONFLICT (customer_id) DO NOTHING;
`

// PgxCreditAccountRepository reads and writes credit_accounts and credit_limit_changes.
type PgxCreditAccountRepository struct {
	BaseRepository
}

func newPgxCreditAccountRepository(pool *pgxpool.Pool) *PgxCreditAccountRepository {
	return &PgxCreditAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

func scanCreditAccount(row pgx.Row) (*domain.CreditAccount, error) {
	var m models.CreditAccount
	err := row.Scan(
		&m.CustomerID,
		&m.CreditLimit,
		&m.CurrentDebt,
		&m.IsBlocked,
		&m.BlockReason,
		&m.LastPaymentDate,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
		&m.Version,
	)
	if err != nil {
		return nil, err
	}
	d := mapping.ToDomainCreditAccount(m)
	return &d, nil
}

// FindByCustomerID retrieves the credit account of a customer.
func (r *PgxCreditAccountRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.CreditAccount, error) {
	query := `SELECT ` + creditAccountColumns + ` FROM credit_accounts WHERE customer_id = $1;`
	account, err := scanCreditAccount(r.conn(ctx).QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(customerID)
		}
		return nil, fmt.Errorf("failed to find credit account %s: %w", customerID, err)
	}
	return account, nil
}

// FindOrCreate inserts a default account when none exists and returns the stored row.
func (r *PgxCreditAccountRepository) FindOrCreate(ctx context.Context, customerID string, defaultLimit decimal.Decimal) (*domain.CreditAccount, error) {
	return r.findOrCreate(ctx, customerID, defaultLimit, false)
}

// FindOrCreateWithLock does the same as FindOrCreate and takes a row lock that lasts
// until the surrounding transaction ends. Outside a transaction it upserts without locking.
func (r *PgxCreditAccountRepository) FindOrCreateWithLock(ctx context.Context, customerID string, defaultLimit decimal.Decimal) (*domain.CreditAccount, error) {
	return r.findOrCreate(ctx, customerID, defaultLimit, inTx(ctx))
}

// selectCreditAccountQuery reads one account, taking the row lock when lock is set.
// The lock is only meaningful inside a transaction.
func selectCreditAccountQuery(lock bool) string {
	query := `SELECT ` + creditAccountColumns + ` FROM credit_accounts WHERE customer_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return query
}

func (r *PgxCreditAccountRepository) findOrCreate(ctx context.Context, customerID string, defaultLimit decimal.Decimal, lock bool) (*domain.CreditAccount, error) {
	batch := &pgx.Batch{}
	batch.Queue(insertDefaultAccountQuery, customerID, defaultLimit, time.Now().UTC(), domain.SystemActor)
	batch.Queue(selectCreditAccountQuery(lock), customerID)

	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return nil, fmt.Errorf("failed to create credit account %s: %w", customerID, err)
	}
	account, err := scanCreditAccount(br.QueryRow())
	if err != nil {
		return nil, fmt.Errorf("failed to load credit account %s: %w", customerID, err)
	}
	return account, nil
}

// ListCustomerIDs returns every customer with a credit account.
func (r *PgxCreditAccountRepository) ListCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT customer_id FROM credit_accounts ORDER BY customer_id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer ids: %w", err)
	}
	return ids, nil
}

// ListCreditLimitChanges returns the limit audit trail, newest first.
func (r *PgxCreditAccountRepository) ListCreditLimitChanges(ctx context.Context, customerID string) ([]domain.CreditLimitChange, error) {
	query := `
		SELECT change_id, customer_id, previous_limit, new_limit, changed_by, reason, changed_at
		FROM credit_limit_changes
		WHERE customer_id = $1
		ORDER BY changed_at DESC, change_id DESC;
	`
	rows, err := r.conn(ctx).Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit limit changes for %s: %w", customerID, err)
	}
	changes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CreditLimitChange, error) {
		var m models.CreditLimitChange
		err := row.Scan(&m.ChangeID, &m.CustomerID, &m.PreviousLimit, &m.NewLimit, &m.ChangedBy, &m.Reason, &m.ChangedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan credit limit changes for %s: %w", customerID, err)
	}
	return mapping.ToDomainCreditLimitChanges(changes), nil
}

func (r *PgxCreditAccountRepository) updateReturning(ctx context.Context, customerID, setClause string, args ...any) (*domain.CreditAccount, error) {
	query := `UPDATE credit_accounts SET ` + setClause + `, version = version + 1
		WHERE customer_id = $1 RETURNING ` + creditAccountColumns + `;`
	account, err := scanCreditAccount(r.conn(ctx).QueryRow(ctx, query, append([]any{customerID}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(customerID)
		}
		return nil, fmt.Errorf("failed to update credit account %s: %w", customerID, err)
	}
	return account, nil
}

// AddDebt increments the cached balance.
func (r *PgxCreditAccountRepository) AddDebt(ctx context.Context, customerID string, amount decimal.Decimal, actorID string) (*domain.CreditAccount, error) {
	return r.updateReturning(ctx, customerID,
		`current_debt = current_debt + $2, last_updated_at = $3, last_updated_by = $4`,
		amount, time.Now().UTC(), actorID)
}

// RecordPaymentOnAccount subtracts the payment and stamps last_payment_date.
func (r *PgxCreditAccountRepository) RecordPaymentOnAccount(ctx context.Context, customerID string, amount decimal.Decimal, actorID string, paidAt time.Time) (*domain.CreditAccount, error) {
	return r.updateReturning(ctx, customerID,
		`current_debt = current_debt - $2, last_payment_date = $3, last_updated_at = $3, last_updated_by = $4`,
		amount.Abs(), paidAt, actorID)
}

// SetCurrentDebt overwrites the cached balance.
func (r *PgxCreditAccountRepository) SetCurrentDebt(ctx context.Context, customerID string, value decimal.Decimal, actorID string) error {
	_, err := r.updateReturning(ctx, customerID,
		`current_debt = $2, last_updated_at = $3, last_updated_by = $4`,
		value, time.Now().UTC(), actorID)
	return err
}

// UpdateCreditLimit stores the new limit and its audit row in one transaction.
func (r *PgxCreditAccountRepository) UpdateCreditLimit(ctx context.Context, account domain.CreditAccount, change domain.CreditLimitChange) error {
	acc := mapping.ToModelCreditAccount(account)
	m := mapping.ToModelCreditLimitChange(change)
	return r.RunInTx(ctx, func(ctx context.Context) error {
		_, err := r.updateReturning(ctx, acc.CustomerID,
			`credit_limit = $2, last_updated_at = $3, last_updated_by = $4`,
			acc.CreditLimit, acc.LastUpdatedAt, acc.LastUpdatedBy)
		if err != nil {
			if pgErrorCode(err) == pgCheckViolation {
				return fmt.Errorf("%w: %v", apperrors.ErrValidation, domain.ErrNegativeCreditLimit)
			}
			return err
		}

		query := `
			INSERT INTO credit_limit_changes (change_id, customer_id, previous_limit, new_limit, changed_by, reason, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7);
		`
		if _, err := r.conn(ctx).Exec(ctx, query,
			m.ChangeID, m.CustomerID, m.PreviousLimit, m.NewLimit, m.ChangedBy, m.Reason, m.ChangedAt,
		); err != nil {
			return fmt.Errorf("failed to insert credit limit change for %s: %w", acc.CustomerID, err)
		}
		return nil
	})
}

// UpdateBlockStatus stores the block flag and reason.
func (r *PgxCreditAccountRepository) UpdateBlockStatus(ctx context.Context, account domain.CreditAccount) error {
	acc := mapping.ToModelCreditAccount(account)
	_, err := r.updateReturning(ctx, acc.CustomerID,
		`is_blocked = $2, block_reason = $3, last_updated_at = $4, last_updated_by = $5`,
		acc.IsBlocked, acc.BlockReason, acc.LastUpdatedAt, acc.LastUpdatedBy)
	return err
}
