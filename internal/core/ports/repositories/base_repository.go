package repositories

import (
	"context"
)

// TransactionManager runs a unit of work. The transaction travels inside the
// context handed to fn; repository calls made with that context join it.
// fn's error (or a panic) rolls back every write made through the context.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RepositoryWithTx is a marker interface for repositories that support transactions
type RepositoryWithTx interface {
	TransactionManager
}
