package memory

import (
	"context"
	"fmt"
	"sync"
)

type txCtxKey struct{}

// memTx is the in-memory unit of work. Writes push undo closures; customer locks
// taken during the unit of work are held until it ends, like row locks.
type memTx struct {
	mu     sync.Mutex
	undo   []func()
	locked map[string]chan struct{}
}

func txFromCtx(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txCtxKey{}).(*memTx)
	return tx
}

func (tx *memTx) onRollback(fn func()) {
	tx.mu.Lock()
	tx.undo = append(tx.undo, fn)
	tx.mu.Unlock()
}

// RunInTx runs fn in a unit of work. A nested call joins the outer unit of work.
func (r *DebtRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFromCtx(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{locked: make(map[string]chan struct{})}
	txCtx := context.WithValue(ctx, txCtxKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			r.rollback(tx)
			panic(p)
		}
		if err != nil {
			r.rollback(tx)
			return
		}
		r.release(tx)
	}()

	return fn(txCtx)
}

func (r *DebtRepository) rollback(tx *memTx) {
	r.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	r.mu.Unlock()
	r.release(tx)
}

func (r *DebtRepository) release(tx *memTx) {
	for _, lock := range tx.locked {
		<-lock
	}
	tx.locked = nil
}

func (r *DebtRepository) customerLock(customerID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[customerID]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[customerID] = lock
	}
	return lock
}

// lockCustomer takes the customer's exclusive lock. Inside a unit of work the lock is
// kept until the unit of work ends and the returned release is a no-op; outside one
// the caller must call release when its single write is done.
func (r *DebtRepository) lockCustomer(ctx context.Context, customerID string) (func(), error) {
	tx := txFromCtx(ctx)
	if tx != nil {
		tx.mu.Lock()
		_, held := tx.locked[customerID]
		tx.mu.Unlock()
		if held {
			return func() {}, nil
		}
	}

	lock := r.customerLock(customerID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for lock on customer %s: %w", customerID, ctx.Err())
	}

	if tx == nil {
		return func() { <-lock }, nil
	}
	tx.mu.Lock()
	tx.locked[customerID] = lock
	tx.mu.Unlock()
	return func() {}, nil
}
