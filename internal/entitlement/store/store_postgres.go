package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"purchasegate/internal/entitlement/models"
	"purchasegate/internal/platform/database"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

const activeScopeIndex = "idx_entitlements_active"

// PostgresStore persists entitlements in PostgreSQL. The partial unique index
// on active (family, child, pack) scopes enforces single ownership.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to the purchase commit transaction.
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

func (s *PostgresStore) Insert(ctx context.Context, rec *models.Record) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO entitlements (id, family_id, child_id, pack_id, purchase_id, purchased_at, status, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.FamilyID),
		nullableChild(rec.ChildID),
		uuid.UUID(rec.PackID),
		uuid.UUID(rec.PurchaseID),
		rec.PurchasedAt,
		string(rec.Status),
		rec.RefundedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			if database.ConstraintName(err) == activeScopeIndex {
				return dErrors.ErrAlreadyOwned
			}
			return dErrors.New(dErrors.CodeDuplicatePurchase, "purchase already granted an entitlement")
		}
		return fmt.Errorf("insert entitlement: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasActive(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID, packID domain.PackID) (bool, error) {
	var exists bool
	err := s.execer().QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM entitlements
			WHERE family_id = $1 AND pack_id = $2 AND status = 'active'
			  AND (child_id IS NULL OR child_id = $3)
		)
	`, uuid.UUID(familyID), uuid.UUID(packID), uuid.UUID(childID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return exists, nil
}

const recordColumns = `id, family_id, child_id, pack_id, purchase_id, purchased_at, status, refunded_at`

func (s *PostgresStore) FindByPurchase(ctx context.Context, purchaseID domain.PurchaseID) (*models.Record, error) {
	rec, err := scanRecord(s.execer().QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM entitlements
		WHERE purchase_id = $1
	`, uuid.UUID(purchaseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entitlement not found")
		}
		return nil, fmt.Errorf("find entitlement: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) MarkRefunded(ctx context.Context, id domain.EntitlementID, at time.Time) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE entitlements SET status = 'refunded', refunded_at = $2
		WHERE id = $1 AND status = 'active'
	`, uuid.UUID(id), at)
	if err != nil {
		return fmt.Errorf("refund entitlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refund entitlement rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var status string
	err = s.execer().QueryRowContext(ctx, `SELECT status FROM entitlements WHERE id = $1`, uuid.UUID(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.New(dErrors.CodeNotFound, "entitlement not found")
	}
	if err != nil {
		return fmt.Errorf("read entitlement status: %w", err)
	}
	return dErrors.New(dErrors.CodeConflict, "entitlement already refunded")
}

func (s *PostgresStore) ListForChild(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID) ([]*models.Record, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM entitlements
		WHERE family_id = $1 AND (child_id IS NULL OR child_id = $2)
		ORDER BY purchased_at
	`, uuid.UUID(familyID), uuid.UUID(childID))
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	defer rows.Close()

	out := []*models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entitlements: %w", err)
	}
	return out, nil
}

func nullableChild(id *domain.ChildID) any {
	if id == nil {
		return nil
	}
	return uuid.UUID(*id)
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		id, familyID, packID, purchaseID uuid.UUID
		childID                          uuid.NullUUID
		status                           string
		refundedAt                       sql.NullTime
		rec                              models.Record
	)
	if err := row.Scan(&id, &familyID, &childID, &packID, &purchaseID, &rec.PurchasedAt, &status, &refundedAt); err != nil {
		return nil, err
	}
	rec.ID = domain.EntitlementID(id)
	rec.FamilyID = domain.FamilyID(familyID)
	if childID.Valid {
		c := domain.ChildID(childID.UUID)
		rec.ChildID = &c
	}
	rec.PackID = domain.PackID(packID)
	rec.PurchaseID = domain.PurchaseID(purchaseID)
	rec.Status = models.Status(status)
	if refundedAt.Valid {
		t := refundedAt.Time
		rec.RefundedAt = &t
	}
	return &rec, nil
}
