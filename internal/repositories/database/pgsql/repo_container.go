package pgsql

import (
	portsrepo "github.com/SscSPs/credit_ledger_service/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		DebtRepo: newPgxDebtRepository(dbPool),
	}
}
