package pgsql

import (
	portsrepo "github.com/SscSPs/credit_ledger_service/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxDebtRepository joins the credit account and ledger repositories behind one
// transaction manager. All three share the pool, so a transaction opened by RunInTx
// is visible to both.
type PgxDebtRepository struct {
	BaseRepository
	*PgxCreditAccountRepository
	*PgxLedgerRepository
}

// newPgxDebtRepository creates the debt repository façade.
func newPgxDebtRepository(pool *pgxpool.Pool) *PgxDebtRepository {
	return &PgxDebtRepository{
		BaseRepository:             BaseRepository{Pool: pool},
		PgxCreditAccountRepository: newPgxCreditAccountRepository(pool),
		PgxLedgerRepository:        newPgxLedgerRepository(pool),
	}
}

// Ensure PgxDebtRepository implements portsrepo.DebtRepositoryWithTx
var _ portsrepo.DebtRepositoryWithTx = (*PgxDebtRepository)(nil)
