package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"purchasegate/internal/consent/models"
	"purchasegate/internal/platform/database"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// PostgresStore persists consent records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed consent store bound to a
// transaction. FindActive locks the returned row.
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

const consentColumns = `id, child_id, parent_id, purchases_allowed, analytics_allowed,
	personalization_allowed, spending_limit, allowed_categories, consent_given_at,
	withdrawn_at, supersedes`

func (s *PostgresStore) FindActive(ctx context.Context, childID domain.ChildID) (*models.Record, error) {
	query := `SELECT ` + consentColumns + `
		FROM consent_records
		WHERE child_id = $1 AND withdrawn_at IS NULL`
	if s.tx != nil {
		query += " FOR UPDATE"
	}
	record, err := scanConsent(s.execer().QueryRowContext(ctx, query, uuid.UUID(childID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active consent")
		}
		return nil, fmt.Errorf("find active consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Insert(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	categories, err := json.Marshal(nonNil(record.AllowedCategories))
	if err != nil {
		return fmt.Errorf("marshal allowed categories: %w", err)
	}
	var supersedes *uuid.UUID
	if record.Supersedes != nil {
		v := uuid.UUID(*record.Supersedes)
		supersedes = &v
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO consent_records (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.ChildID),
		uuid.UUID(record.ParentID),
		record.PurchasesAllowed,
		record.AnalyticsAllowed,
		record.PersonalizationAllowed,
		record.SpendingLimit,
		categories,
		record.ConsentGivenAt,
		record.WithdrawnAt,
		supersedes,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return dErrors.New(dErrors.CodeConflict, "child already has an active consent")
		}
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkWithdrawn(ctx context.Context, consentID domain.ConsentID, at time.Time) error {
	var withdrawnAt sql.NullTime
	err := s.execer().QueryRowContext(ctx, `
		SELECT withdrawn_at FROM consent_records WHERE id = $1
	`, uuid.UUID(consentID)).Scan(&withdrawnAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		return fmt.Errorf("read consent: %w", err)
	}
	res, err := s.execer().ExecContext(ctx, `
		UPDATE consent_records SET withdrawn_at = $2
		WHERE id = $1 AND withdrawn_at IS NULL
	`, uuid.UUID(consentID), at)
	if err != nil {
		return fmt.Errorf("withdraw consent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdraw consent rows affected: %w", err)
	}
	if rows == 0 {
		return dErrors.New(dErrors.CodeConflict, "consent already withdrawn")
	}
	return nil
}

func (s *PostgresStore) ListByChild(ctx context.Context, childID domain.ChildID) ([]*models.Record, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_records
		WHERE child_id = $1
		ORDER BY consent_given_at, id
	`, uuid.UUID(childID))
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	records := []*models.Record{}
	for rows.Next() {
		record, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

type consentRow interface {
	Scan(dest ...any) error
}

func scanConsent(row consentRow) (*models.Record, error) {
	var (
		id, childID, parentID uuid.UUID
		spendingLimit         sql.NullInt64
		categories            []byte
		withdrawnAt           sql.NullTime
		supersedes            uuid.NullUUID
		record                models.Record
	)
	if err := row.Scan(
		&id,
		&childID,
		&parentID,
		&record.PurchasesAllowed,
		&record.AnalyticsAllowed,
		&record.PersonalizationAllowed,
		&spendingLimit,
		&categories,
		&record.ConsentGivenAt,
		&withdrawnAt,
		&supersedes,
	); err != nil {
		return nil, err
	}
	record.ID = domain.ConsentID(id)
	record.ChildID = domain.ChildID(childID)
	record.ParentID = domain.ParentID(parentID)
	if spendingLimit.Valid {
		v := spendingLimit.Int64
		record.SpendingLimit = &v
	}
	record.AllowedCategories = []string{}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &record.AllowedCategories); err != nil {
			return nil, fmt.Errorf("unmarshal allowed categories: %w", err)
		}
	}
	if withdrawnAt.Valid {
		t := withdrawnAt.Time
		record.WithdrawnAt = &t
	}
	if supersedes.Valid {
		v := domain.ConsentID(supersedes.UUID)
		record.Supersedes = &v
	}
	return &record, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
