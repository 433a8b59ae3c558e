package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"purchasegate/internal/ledger/models"
	"purchasegate/internal/platform/database"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// PostgresStore persists ledger entries in PostgreSQL. The UNIQUE
// (purchase_id, kind) constraint makes spend recording idempotent.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to a transaction so entries commit together
// with the entitlement they pay for.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.Entry) error {
	err := s.execer().QueryRowContext(ctx, `
		INSERT INTO ledger_entries (id, child_id, pack_id, purchase_id, amount, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING sequence
	`,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ChildID),
		uuid.UUID(entry.PackID),
		uuid.UUID(entry.PurchaseID),
		entry.Amount,
		string(entry.Kind),
		entry.Timestamp,
	).Scan(&entry.Sequence)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return dErrors.New(dErrors.CodeDuplicatePurchase, "ledger entry already recorded for purchase")
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumBetween(ctx context.Context, childID domain.ChildID, from, to time.Time) (int64, error) {
	var total int64
	err := s.execer().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE child_id = $1 AND created_at >= $2 AND created_at < $3
	`, uuid.UUID(childID), from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return total, nil
}

const entryColumns = `id, child_id, pack_id, purchase_id, amount, kind, created_at, sequence`

func (s *PostgresStore) ListBetween(ctx context.Context, childID domain.ChildID, from, to time.Time) ([]*models.Entry, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE child_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY sequence
	`, uuid.UUID(childID), from, to)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) FindByPurchase(ctx context.Context, purchaseID domain.PurchaseID, kind models.Kind) (*models.Entry, error) {
	e, err := scanEntry(s.execer().QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE purchase_id = $1 AND kind = $2
	`, uuid.UUID(purchaseID), string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ledger entry not found")
		}
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	return e, nil
}

// LockChild takes a transaction-scoped advisory lock on the child so two
// purchase commits cannot both pass the monthly limit check. Outside a
// transaction it is a no-op.
func (s *PostgresStore) LockChild(ctx context.Context, childID domain.ChildID) error {
	if s.tx == nil {
		return nil
	}
	if _, err := s.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, childID.String()); err != nil {
		return fmt.Errorf("lock child ledger: %w", err)
	}
	return nil
}

type entryRow interface {
	Scan(dest ...any) error
}

func scanEntry(row entryRow) (*models.Entry, error) {
	var (
		id, childID, packID, purchaseID uuid.UUID
		kind                            string
		e                               models.Entry
	)
	if err := row.Scan(&id, &childID, &packID, &purchaseID, &e.Amount, &kind, &e.Timestamp, &e.Sequence); err != nil {
		return nil, err
	}
	e.ID = domain.EntryID(id)
	e.ChildID = domain.ChildID(childID)
	e.PackID = domain.PackID(packID)
	e.PurchaseID = domain.PurchaseID(purchaseID)
	e.Kind = models.Kind(kind)
	return &e, nil
}
