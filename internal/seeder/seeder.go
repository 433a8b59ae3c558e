// Package seeder loads a demo family for local development so the purchase
// flow can be exercised without an account service.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	consentmodels "purchasegate/internal/consent/models"
	"purchasegate/internal/family"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

// Fixed demo identities. cmd/tokengen mints sessions for DemoParentID by
// default.
var (
	DemoFamilyID = domain.FamilyID(uuid.MustParse("f0000000-0000-4000-8000-000000000001"))
	DemoParentID = domain.ParentID(uuid.MustParse("f0000000-0000-4000-8000-0000000000a1"))
	DemoChildIDs = []domain.ChildID{
		domain.ChildID(uuid.MustParse("f0000000-0000-4000-8000-0000000000c1")),
		domain.ChildID(uuid.MustParse("f0000000-0000-4000-8000-0000000000c2")),
		domain.ChildID(uuid.MustParse("f0000000-0000-4000-8000-0000000000c3")),
	}
)

// ConsentStore is the slice of the consent service the seeder needs.
type ConsentStore interface {
	Get(ctx context.Context, childID domain.ChildID) (*consentmodels.Record, error)
	Update(ctx context.Context, childID domain.ChildID, parentID domain.ParentID, changes consentmodels.Changes) (*consentmodels.Record, error)
}

// Seeder populates the directory and consent registry with demo data.
type Seeder struct {
	directory family.Writer
	consent   ConsentStore
	logger    *slog.Logger
}

func New(directory family.Writer, consent ConsentStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		directory: directory,
		consent:   consent,
		logger:    logger,
	}
}

type demoChild struct {
	name    string
	age     int
	consent *consentmodels.Changes
}

// SeedAll is idempotent: existing consent is left as is.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.InfoContext(ctx, "seeding demo family...")
	now := requestcontext.Now(ctx)

	if err := s.directory.AddParent(ctx, &family.Parent{
		ID:          DemoParentID,
		FamilyID:    DemoFamilyID,
		Email:       "alex.rivera@example.com",
		DisplayName: "Alex Rivera",
	}); err != nil {
		return fmt.Errorf("failed to seed parent: %w", err)
	}

	yes := true
	limit := int64(2000)
	categories := []string{"stickers", "stories", "games"}
	children := []demoChild{
		{name: "Mia", age: 7, consent: &consentmodels.Changes{
			PurchasesAllowed:  &yes,
			SpendingLimit:     &limit,
			AllowedCategories: &categories,
		}},
		// No consent: every purchase is rejected with consent_required.
		{name: "Leo", age: 10},
		// 13+: COPPA gating does not apply.
		{name: "Sam", age: 14},
	}

	for i, c := range children {
		child := &family.Child{
			ID:          DemoChildIDs[i],
			FamilyID:    DemoFamilyID,
			DisplayName: c.name,
			BirthDate:   birthDate(c.age, now),
		}
		if err := s.directory.AddChild(ctx, child); err != nil {
			return fmt.Errorf("failed to seed child %s: %w", c.name, err)
		}
		if c.consent == nil {
			continue
		}
		if err := s.seedConsent(ctx, child.ID, *c.consent); err != nil {
			return fmt.Errorf("failed to seed consent for %s: %w", c.name, err)
		}
	}

	s.logger.InfoContext(ctx, "demo family seeded",
		"family_id", DemoFamilyID.String(),
		"parent_id", DemoParentID.String(),
		"children", len(children),
	)
	return nil
}

func (s *Seeder) seedConsent(ctx context.Context, childID domain.ChildID, changes consentmodels.Changes) error {
	_, err := s.consent.Get(ctx, childID)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, dErrors.ErrNotFound):
		return err
	}
	_, err = s.consent.Update(ctx, childID, DemoParentID, changes)
	return err
}

// birthDate returns a birthday that makes the child age years old, with a
// few months to spare so the demo does not age out mid-session.
func birthDate(age int, now time.Time) time.Time {
	y, m, d := now.AddDate(-age, -3, 0).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
