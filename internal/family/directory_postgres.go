package family

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// PostgresDirectory reads the family directory from the parents and children
// tables.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) IsParentOf(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) (bool, error) {
	var ok bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM parents p
			JOIN children c ON c.family_id = p.family_id
			WHERE p.id = $1 AND c.id = $2
		)
	`, uuid.UUID(parentID), uuid.UUID(childID)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check parent of child: %w", err)
	}
	return ok, nil
}

func (d *PostgresDirectory) Child(ctx context.Context, childID domain.ChildID) (*Child, error) {
	var (
		id, familyID uuid.UUID
		c            Child
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, family_id, display_name, birth_date
		FROM children
		WHERE id = $1
	`, uuid.UUID(childID)).Scan(&id, &familyID, &c.DisplayName, &c.BirthDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "child not found")
		}
		return nil, fmt.Errorf("find child: %w", err)
	}
	c.ID = domain.ChildID(id)
	c.FamilyID = domain.FamilyID(familyID)
	return &c, nil
}

func (d *PostgresDirectory) ParentContact(ctx context.Context, parentID domain.ParentID) (*Parent, error) {
	var (
		id, familyID uuid.UUID
		p            Parent
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, family_id, email, display_name
		FROM parents
		WHERE id = $1
	`, uuid.UUID(parentID)).Scan(&id, &familyID, &p.Email, &p.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "parent not found")
		}
		return nil, fmt.Errorf("find parent: %w", err)
	}
	p.ID = domain.ParentID(id)
	p.FamilyID = domain.FamilyID(familyID)
	return &p, nil
}

// AddParent upserts the parent and its family. Used by the dev seeder.
func (d *PostgresDirectory) AddParent(ctx context.Context, p *Parent) error {
	if err := d.ensureFamily(ctx, p.FamilyID); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO parents (id, family_id, email, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, display_name = EXCLUDED.display_name
	`, uuid.UUID(p.ID), uuid.UUID(p.FamilyID), p.Email, p.DisplayName)
	if err != nil {
		return fmt.Errorf("upsert parent: %w", err)
	}
	return nil
}

// AddChild upserts the child and its family. Used by the dev seeder.
func (d *PostgresDirectory) AddChild(ctx context.Context, c *Child) error {
	if err := d.ensureFamily(ctx, c.FamilyID); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO children (id, family_id, display_name, birth_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, birth_date = EXCLUDED.birth_date
	`, uuid.UUID(c.ID), uuid.UUID(c.FamilyID), c.DisplayName, c.BirthDate)
	if err != nil {
		return fmt.Errorf("upsert child: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) ensureFamily(ctx context.Context, familyID domain.FamilyID) error {
	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO families (id) VALUES ($1) ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(familyID)); err != nil {
		return fmt.Errorf("ensure family: %w", err)
	}
	return nil
}
