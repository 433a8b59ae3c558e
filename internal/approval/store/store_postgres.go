package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"purchasegate/internal/approval/models"
	"purchasegate/internal/platform/database"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// PostgresStore persists approval requests in PostgreSQL. Update locks the
// row with SELECT ... FOR UPDATE for the duration of the callback.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `token, purchase_id, child_id, pack_id, parent_id, amount, status, created_at, expires_at, resolved_at, redeemed_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		req.Token.String(),
		uuid.UUID(req.PurchaseID),
		uuid.UUID(req.ChildID),
		uuid.UUID(req.PackID),
		uuid.UUID(req.ParentID),
		req.Amount,
		string(req.Status),
		req.CreatedAt,
		req.ExpiresAt,
		req.ResolvedAt,
		req.RedeemedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return dErrors.New(dErrors.CodeConflict, "approval already requested for purchase")
		}
		return fmt.Errorf("insert approval request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, token domain.ApprovalToken) (*models.Request, error) {
	return s.find(ctx, s.db, token, false)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) find(ctx context.Context, q queryRower, token domain.ApprovalToken, forUpdate bool) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE token = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	r, err := scanRequest(q.QueryRowContext(ctx, query, token.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find approval request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, token domain.ApprovalToken, fn UpdateFunc) (*models.Request, error) {
	var updated *models.Request
	err := database.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.find(ctx, tx, token, true)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE approval_requests
			SET status = $2, resolved_at = $3, redeemed_at = $4
			WHERE token = $1
		`, token.String(), string(current.Status), current.ResolvedAt, current.RedeemedAt)
		if err != nil {
			return fmt.Errorf("update approval request: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) ListPendingByParent(ctx context.Context, parentID domain.ParentID) ([]*models.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM approval_requests
		WHERE parent_id = $1 AND status = 'pending'
		ORDER BY created_at
	`, uuid.UUID(parentID))
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	defer rows.Close()

	out := []*models.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approval requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListStale(ctx context.Context, now time.Time, limit int) ([]domain.ApprovalToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM approval_requests
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale approvals: %w", err)
	}
	defer rows.Close()

	var out []domain.ApprovalToken
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan stale token: %w", err)
		}
		out = append(out, domain.ApprovalToken(token))
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM approval_requests
		WHERE status <> 'pending' AND expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete resolved approvals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.Request, error) {
	var (
		token                                 string
		purchaseID, childID, packID, parentID uuid.UUID
		status                                string
		resolvedAt, redeemedAt                sql.NullTime
		r                                     models.Request
	)
	err := row.Scan(&token, &purchaseID, &childID, &packID, &parentID, &r.Amount, &status,
		&r.CreatedAt, &r.ExpiresAt, &resolvedAt, &redeemedAt)
	if err != nil {
		return nil, err
	}
	r.Token = domain.ApprovalToken(token)
	r.PurchaseID = domain.PurchaseID(purchaseID)
	r.ChildID = domain.ChildID(childID)
	r.PackID = domain.PackID(packID)
	r.ParentID = domain.ParentID(parentID)
	r.Status = models.Status(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		r.RedeemedAt = &t
	}
	return &r, nil
}
