package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/apperrors"
	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/SscSPs/credit_ledger_service/internal/models"
	"github.com/SscSPs/credit_ledger_service/internal/utils/mapping"
	"github.com/SscSPs/credit_ledger_service/internal/utils/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `transaction_id, customer_id, transaction_type, amount, balance_before, balance_after,
	order_id, due_date, paid_date, notes, created_by, created_at`

// PgxLedgerRepository appends to and queries ledger_transactions.
type PgxLedgerRepository struct {
	BaseRepository
}

func newPgxLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

func scanLedgerTransaction(row pgx.CollectableRow) (domain.LedgerTransaction, error) {
	var m models.LedgerTransaction
	err := row.Scan(
		&m.TransactionID,
		&m.CustomerID,
		&m.TransactionType,
		&m.Amount,
		&m.BalanceBefore,
		&m.BalanceAfter,
		&m.OrderID,
		&m.DueDate,
		&m.PaidDate,
		&m.Notes,
		&m.CreatedBy,
		&m.CreatedAt,
	)
	if err != nil {
		return domain.LedgerTransaction{}, err
	}
	return mapping.ToDomainLedgerTransaction(m), nil
}

// AppendTransaction inserts one immutable ledger row.
func (r *PgxLedgerRepository) AppendTransaction(ctx context.Context, customerID string, txnType domain.LedgerTransactionType, amount decimal.Decimal, actorID string, opts domain.TransactionOptions) (*domain.LedgerTransaction, error) {
	if !txnType.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, txnType)
	}

	var balanceBefore decimal.Decimal
	if opts.BalanceBefore != nil {
		balanceBefore = *opts.BalanceBefore
	} else {
		err := r.conn(ctx).QueryRow(ctx, `SELECT current_debt FROM credit_accounts WHERE customer_id = $1;`, customerID).Scan(&balanceBefore)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFound(customerID)
			}
			return nil, fmt.Errorf("failed to read balance for %s: %w", customerID, err)
		}
	}

	now := time.Now().UTC()
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
		txn.PaidDate = &now
	}
	m := mapping.ToModelLedgerTransaction(txn)

	query := `INSERT INTO ledger_transactions (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
	_, err := r.conn(ctx).Exec(ctx, query,
		m.TransactionID,
		m.CustomerID,
		m.TransactionType,
		m.Amount,
		m.BalanceBefore,
		m.BalanceAfter,
		m.OrderID,
		m.DueDate,
		m.PaidDate,
		m.Notes,
		m.CreatedBy,
		m.CreatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, notFound(customerID)
		}
		return nil, fmt.Errorf("failed to append %s transaction for %s: %w", txnType, customerID, err)
	}
	return &txn, nil
}

// SumLedger returns the sum of every amount in the customer's ledger.
func (r *PgxLedgerRepository) SumLedger(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions WHERE customer_id = $1;`
	if err := r.conn(ctx).QueryRow(ctx, query, customerID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger for %s: %w", customerID, err)
	}
	return total, nil
}

// FindOverdue returns unpaid rows due before now, oldest due date first.
func (r *PgxLedgerRepository) FindOverdue(ctx context.Context, customerID *string, now time.Time) ([]domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions
		WHERE due_date < $1 AND paid_date IS NULL`
	args := []any{now}
	if customerID != nil {
		query += ` AND customer_id = $2`
		args = append(args, *customerID)
	}
	query += ` ORDER BY due_date ASC, transaction_id ASC;`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue transactions: %w", err)
	}
	txns, err := pgx.CollectRows(rows, scanLedgerTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to scan overdue transactions: %w", err)
	}
	return txns, nil
}

// CountPaymentsSince counts PAYMENT rows created at or after since.
func (r *PgxLedgerRepository) CountPaymentsSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM ledger_transactions
		WHERE customer_id = $1 AND transaction_type = 'PAYMENT' AND created_at >= $2;`
	if err := r.conn(ctx).QueryRow(ctx, query, customerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payments for %s: %w", customerID, err)
	}
	return count, nil
}

// buildHistoryQuery returns the keyset-paginated history query. It asks for one row
// more than limit so the caller can tell whether another page exists.
func buildHistoryQuery(customerID string, filter domain.HistoryFilter, cursorAt *time.Time, cursorID string) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + ledgerColumns + ` FROM ledger_transactions WHERE customer_id = $1`)
	args := []any{customerID}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.TransactionType != nil {
		sb.WriteString(" AND transaction_type = " + arg(string(*filter.TransactionType)))
	}
	if filter.From != nil {
		sb.WriteString(" AND created_at >= " + arg(*filter.From))
	}
	if filter.To != nil {
		sb.WriteString(" AND created_at <= " + arg(*filter.To))
	}
	if cursorAt != nil {
		at := arg(*cursorAt)
		id := arg(cursorID)
		sb.WriteString(" AND (created_at, transaction_id) < (" + at + ", " + id + ")")
	}
	sb.WriteString(" ORDER BY created_at DESC, transaction_id DESC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(filter.Limit+1))
	}
	sb.WriteString(";")
	return sb.String(), args
}

// ListTransactions returns one page of the customer's ledger, newest first.
func (r *PgxLedgerRepository) ListTransactions(ctx context.Context, customerID string, filter domain.HistoryFilter) ([]domain.LedgerTransaction, *string, error) {
	var cursorAt *time.Time
	var cursorID string
	if filter.NextToken != nil && *filter.NextToken != "" {
		at, id, err := pagination.DecodeHistoryToken(*filter.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		cursorAt, cursorID = &at, id
	}

	query, args := buildHistoryQuery(customerID, filter, cursorAt, cursorID)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list transactions for %s: %w", customerID, err)
	}
	txns, err := pgx.CollectRows(rows, scanLedgerTransaction)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan transactions for %s: %w", customerID, err)
	}

	if filter.Limit <= 0 || len(txns) <= filter.Limit {
		return txns, nil, nil
	}
	page := txns[:filter.Limit]
	last := page[len(page)-1]
	token := pagination.EncodeHistoryToken(last.CreatedAt, last.TransactionID)
	return page, &token, nil
}
