package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"purchasegate/internal/platform/database"
	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// PostgresStore persists attempts in the purchase_attempts table.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction. Update then locks
// the row inside that transaction instead of opening its own.
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

const attemptColumns = `id, family_id, child_id, parent_id, pack_id, family_wide, amount, currency,
	payment_method_token, state, reject_reason, approval_token, creator_share, platform_share,
	processor_ref, client_ip, client_user_agent, client_device, created_at, updated_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, a *models.Attempt) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO purchase_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		uuid.UUID(a.ID),
		uuid.UUID(a.FamilyID),
		uuid.UUID(a.ChildID),
		uuid.UUID(a.ParentID),
		uuid.UUID(a.PackID),
		a.FamilyWide,
		a.Amount,
		a.Currency,
		a.PaymentMethodToken,
		string(a.State),
		string(a.RejectReason),
		a.ApprovalToken.String(),
		a.CreatorShare,
		a.PlatformShare,
		a.ProcessorRef,
		a.Client.IP,
		a.Client.UserAgent,
		a.Client.Device,
		a.CreatedAt,
		a.UpdatedAt,
		a.CompletedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return dErrors.New(dErrors.CodeConflict, "purchase attempt already exists")
		}
		return fmt.Errorf("insert purchase attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.PurchaseID) (*models.Attempt, error) {
	return s.find(ctx, s.execer(), id, false)
}

func (s *PostgresStore) find(ctx context.Context, q dbExecutor, id domain.PurchaseID, forUpdate bool) (*models.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM purchase_attempts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAttempt(q.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "purchase not found")
		}
		return nil, fmt.Errorf("find purchase attempt: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, id domain.PurchaseID, fn UpdateFunc) (*models.Attempt, error) {
	var updated *models.Attempt
	apply := func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.find(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE purchase_attempts
			SET state = $2, reject_reason = $3, approval_token = $4, creator_share = $5,
			    platform_share = $6, processor_ref = $7, updated_at = $8, completed_at = $9
			WHERE id = $1
		`,
			uuid.UUID(id),
			string(current.State),
			string(current.RejectReason),
			current.ApprovalToken.String(),
			current.CreatorShare,
			current.PlatformShare,
			current.ProcessorRef,
			current.UpdatedAt,
			current.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("update purchase attempt: %w", err)
		}
		updated = current
		return nil
	}

	var err error
	if s.tx != nil {
		err = apply(ctx, s.tx)
	} else {
		err = database.RunInTx(ctx, s.db, nil, apply)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) ListByChild(ctx context.Context, childID domain.ChildID, limit int) ([]*models.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.execer().QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM purchase_attempts
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, uuid.UUID(childID), limit)
	if err != nil {
		return nil, fmt.Errorf("list purchase attempts: %w", err)
	}
	defer rows.Close()

	out := []*models.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase attempts: %w", err)
	}
	return out, nil
}

type attemptRow interface {
	Scan(dest ...any) error
}

func scanAttempt(row attemptRow) (*models.Attempt, error) {
	var (
		id, familyID, childID, parentID, packID uuid.UUID
		state, reason, token                    string
		completedAt                             sql.NullTime
		a                                       models.Attempt
	)
	err := row.Scan(
		&id, &familyID, &childID, &parentID, &packID, &a.FamilyWide, &a.Amount, &a.Currency,
		&a.PaymentMethodToken, &state, &reason, &token, &a.CreatorShare, &a.PlatformShare,
		&a.ProcessorRef, &a.Client.IP, &a.Client.UserAgent, &a.Client.Device, &a.CreatedAt, &a.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ID = domain.PurchaseID(id)
	a.FamilyID = domain.FamilyID(familyID)
	a.ChildID = domain.ChildID(childID)
	a.ParentID = domain.ParentID(parentID)
	a.PackID = domain.PackID(packID)
	a.State = models.State(state)
	a.RejectReason = dErrors.Code(reason)
	a.ApprovalToken = domain.ApprovalToken(token)
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return &a, nil
}
