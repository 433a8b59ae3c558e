package store

import (
	"context"
	"database/sql"
	"time"

	"purchasegate/internal/audit"
	entmodels "purchasegate/internal/entitlement/models"
	entstore "purchasegate/internal/entitlement/store"
	ledgermodels "purchasegate/internal/ledger/models"
	ledgerstore "purchasegate/internal/ledger/store"
	"purchasegate/internal/platform/database"
	"purchasegate/internal/purchase/metrics"
	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	platformsync "purchasegate/pkg/platform/sync"
)

// TxStores are the stores a purchase commit writes through. Everything
// written via them commits or rolls back together.
type TxStores struct {
	Attempts     Store
	Ledger       ledgerstore.Store
	Entitlements entstore.Store
	Audit        audit.Store
}

type TxFunc func(ctx context.Context, stores TxStores) error

const defaultTxTimeout = 5 * time.Second

// InMemoryTx serializes commits per child with a sharded mutex and undoes
// the writes of a failed commit in reverse order. Audit events are appended
// last so they never need undoing.
type InMemoryTx struct {
	mu           *platformsync.ShardedMutex
	attempts     *InMemoryStore
	ledger       *ledgerstore.InMemoryStore
	entitlements *entstore.InMemoryStore
	trail        audit.Store
	timeout      time.Duration
}

func NewInMemoryTx(attempts *InMemoryStore, ledger *ledgerstore.InMemoryStore, entitlements *entstore.InMemoryStore, trail audit.Store) *InMemoryTx {
	return &InMemoryTx{
		mu:           platformsync.NewShardedMutex(),
		attempts:     attempts,
		ledger:       ledger,
		entitlements: entitlements,
		trail:        trail,
		timeout:      defaultTxTimeout,
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
	metrics.ObserveCommitLockWait(waited.Seconds())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: child is locked")
	}
	defer t.mu.Unlock(key)

	u := &undoLog{}
	stores := TxStores{
		Attempts:     &undoAttempts{InMemoryStore: t.attempts, log: u},
		Ledger:       &undoLedger{InMemoryStore: t.ledger, log: u},
		Entitlements: &undoEntitlements{InMemoryStore: t.entitlements, log: u},
		Audit:        t.trail,
	}
	if err := fn(ctx, stores); err != nil {
		u.rollback()
		return err
	}
	return nil
}

type undoLog struct {
	steps []func()
}

func (u *undoLog) push(step func()) { u.steps = append(u.steps, step) }

func (u *undoLog) rollback() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
}

type undoAttempts struct {
	*InMemoryStore
	log *undoLog
}

func (s *undoAttempts) Update(ctx context.Context, id domain.PurchaseID, fn UpdateFunc) (*models.Attempt, error) {
	prior, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.InMemoryStore.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.log.push(func() { s.InMemoryStore.restore(prior) })
	return updated, nil
}

type undoLedger struct {
	*ledgerstore.InMemoryStore
	log *undoLog
}

func (s *undoLedger) Append(ctx context.Context, entry *ledgermodels.Entry) error {
	if err := s.InMemoryStore.Append(ctx, entry); err != nil {
		return err
	}
	purchaseID, kind := entry.PurchaseID, entry.Kind
	s.log.push(func() { s.InMemoryStore.Remove(purchaseID, kind) })
	return nil
}

type undoEntitlements struct {
	*entstore.InMemoryStore
	log *undoLog
}

func (s *undoEntitlements) Insert(ctx context.Context, rec *entmodels.Record) error {
	if err := s.InMemoryStore.Insert(ctx, rec); err != nil {
		return err
	}
	purchaseID := rec.PurchaseID
	s.log.push(func() { s.InMemoryStore.Remove(purchaseID) })
	return nil
}

func (s *undoEntitlements) MarkRefunded(ctx context.Context, id domain.EntitlementID, at time.Time) error {
	if err := s.InMemoryStore.MarkRefunded(ctx, id, at); err != nil {
		return err
	}
	s.log.push(func() { s.InMemoryStore.Reactivate(id) })
	return nil
}

// PostgresTx runs each commit in one database transaction. The ledger takes
// an advisory lock on the child so concurrent commits see each other's spend.
type PostgresTx struct {
	db *sql.DB
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ domain.ChildID, fn TxFunc) error {
	return database.RunInTx(ctx, t.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, TxStores{
			Attempts:     NewPostgresTx(tx),
			Ledger:       ledgerstore.NewPostgresTx(tx),
			Entitlements: entstore.NewPostgresTx(tx),
			Audit:        audit.NewPostgresTx(tx),
		})
	})
}
