package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PostgresStore persists audit events in the audit_events table.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs an audit store bound to a transaction, so the
// event commits or rolls back with the change it describes.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	changes, err := json.Marshal(event.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO audit_events (occurred_at, actor_id, subject_id, action, decision, reason, request_id, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.Timestamp, event.ActorID, event.SubjectID, event.Action, event.Decision, event.Reason, event.RequestID, changes)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	args := []any{filter.SubjectID}
	where := []string{"subject_id = $1"}
	if len(filter.Actions) > 0 {
		args = append(args, filter.Actions)
		where = append(where, fmt.Sprintf("action = ANY($%d)", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	args = append(args, filter.limit())

	// Newest page first, flipped back to append order by the outer select.
	rows, err := s.execer().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, occurred_at, actor_id, subject_id, action, decision, reason, request_id, changes
		FROM (
			SELECT * FROM audit_events
			WHERE %s
			ORDER BY id DESC
			LIMIT $%d
		) page
		ORDER BY id
	`, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var changes []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.SubjectID, &e.Action, &e.Decision, &e.Reason, &e.RequestID, &changes); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("decode audit changes: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
