package store

import (
	"context"
	"database/sql"
	"time"

	"purchasegate/internal/audit"
	"purchasegate/internal/consent/metrics"
	"purchasegate/internal/consent/models"
	"purchasegate/internal/platform/database"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	platformsync "purchasegate/pkg/platform/sync"
)

// TxFunc runs inside a per-child transaction. The audit trail handed to it
// commits or rolls back together with the consent writes.
type TxFunc func(ctx context.Context, store Store, trail audit.Store) error

const defaultTxTimeout = 5 * time.Second

// InMemoryTx serializes writes per child with a sharded mutex and undoes the
// store writes of a failed transaction.
type InMemoryTx struct {
	mu      *platformsync.ShardedMutex
	store   *InMemoryStore
	trail   audit.Store
	timeout time.Duration
}

func NewInMemoryTx(store *InMemoryStore, trail audit.Store) *InMemoryTx {
	return &InMemoryTx{
		mu:      platformsync.NewShardedMutex(),
		store:   store,
		trail:   trail,
		timeout: defaultTxTimeout,
	}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, childID domain.ChildID, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	key := childID.String()
	waited, err := t.mu.LockContext(ctx, key)
	metrics.ObserveShardLockWait(waited.Seconds())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: child is locked")
	}
	defer t.mu.Unlock(key)

	tx := &undoStore{InMemoryStore: t.store}
	if err := fn(ctx, tx, t.trail); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// undoStore records compensations for each successful write.
type undoStore struct {
	*InMemoryStore
	undo []func()
}

func (u *undoStore) Insert(ctx context.Context, record *models.Record) error {
	if err := u.InMemoryStore.Insert(ctx, record); err != nil {
		return err
	}
	id := record.ID
	u.undo = append(u.undo, func() { u.InMemoryStore.remove(id) })
	return nil
}

func (u *undoStore) MarkWithdrawn(ctx context.Context, consentID domain.ConsentID, at time.Time) error {
	if err := u.InMemoryStore.MarkWithdrawn(ctx, consentID, at); err != nil {
		return err
	}
	u.undo = append(u.undo, func() { u.InMemoryStore.reopen(consentID) })
	return nil
}

func (u *undoStore) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
}

// PostgresTx runs each consent transaction in a database transaction; the
// active row is locked with SELECT ... FOR UPDATE and the partial unique
// index settles races on a child's first record.
type PostgresTx struct {
	db *sql.DB
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ domain.ChildID, fn TxFunc) error {
	return database.RunInTx(ctx, t.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewPostgresTx(tx), audit.NewPostgresTx(tx))
	})
}
