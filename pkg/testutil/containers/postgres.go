//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"purchasegate/migrations"
	"purchasegate/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container with migrations applied.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("purchasegate_test"),
		postgres.WithUsername("purchasegate"),
		postgres.WithPassword("purchasegate_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// The container is shared through Manager; Ryuk removes it when the
	// test process exits.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables clears all data from the specified tables.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll empties every table in the schema.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx,
		"purchase_attempts",
		"entitlements",
		"approval_requests",
		"ledger_entries",
		"audit_events",
		"consent_records",
		"children",
		"parents",
		"families",
	)
}

// Family is a seeded family with one parent and one child.
type Family struct {
	FamilyID domain.FamilyID
	ParentID domain.ParentID
	ChildID  domain.ChildID
}

// CreateTestFamily inserts a family, a parent and a child born on birthDate.
// Fails the test if insertion fails.
func (p *PostgresContainer) CreateTestFamily(ctx context.Context, t testing.TB, birthDate time.Time) Family {
	t.Helper()
	f := Family{
		FamilyID: domain.FamilyID(uuid.New()),
		ParentID: domain.ParentID(uuid.New()),
		ChildID:  domain.ChildID(uuid.New()),
	}
	if _, err := p.DB.ExecContext(ctx, `INSERT INTO families (id) VALUES ($1)`, uuid.UUID(f.FamilyID)); err != nil {
		t.Fatalf("CreateTestFamily: family: %v", err)
	}
	if _, err := p.DB.ExecContext(ctx, `
		INSERT INTO parents (id, family_id, email, display_name) VALUES ($1, $2, $3, 'Test Parent')
	`, uuid.UUID(f.ParentID), uuid.UUID(f.FamilyID), "parent-"+uuid.NewString()+"@example.com"); err != nil {
		t.Fatalf("CreateTestFamily: parent: %v", err)
	}
	if _, err := p.DB.ExecContext(ctx, `
		INSERT INTO children (id, family_id, display_name, birth_date) VALUES ($1, $2, 'Test Child', $3)
	`, uuid.UUID(f.ChildID), uuid.UUID(f.FamilyID), birthDate); err != nil {
		t.Fatalf("CreateTestFamily: child: %v", err)
	}
	return f
}
