//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"purchasegate/internal/audit"
	"purchasegate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = audit.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	child := uuid.NewString()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	actions := []string{
		audit.ActionConsentUpdated,
		audit.ActionPurchaseInitiated,
		audit.ActionEntitlementGranted,
		audit.ActionPurchaseRefunded,
	}
	for i, action := range actions {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			SubjectID: child,
			Action:    action,
			Changes:   []audit.FieldChange{{Field: "step", Prior: "", Current: action}},
		}))
	}
	s.Require().NoError(s.store.Append(ctx, audit.Event{Timestamp: base, SubjectID: uuid.NewString(), Action: audit.ActionPurchaseInitiated}))

	all, err := s.store.List(ctx, audit.BySubject(child))
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Less(all[0].ID, all[3].ID)
	s.Equal(audit.ActionConsentUpdated, all[0].Changes[0].Current)

	byAction, err := s.store.List(ctx, audit.Filter{
		SubjectID: child,
		Actions:   []string{audit.ActionEntitlementGranted, audit.ActionPurchaseRefunded},
	})
	s.Require().NoError(err)
	s.Len(byAction, 2)

	since, err := s.store.List(ctx, audit.Filter{SubjectID: child, Since: base.Add(2 * time.Hour)})
	s.Require().NoError(err)
	s.Len(since, 2)

	newest, err := s.store.List(ctx, audit.Filter{SubjectID: child, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(newest, 1)
	s.Equal(audit.ActionPurchaseRefunded, newest[0].Action)
}
