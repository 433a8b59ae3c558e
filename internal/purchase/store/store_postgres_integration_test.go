//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"purchasegate/internal/audit"
	entmodels "purchasegate/internal/entitlement/models"
	ledgermodels "purchasegate/internal/ledger/models"
	"purchasegate/internal/purchase/models"
	"purchasegate/internal/purchase/store"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/testutil"
	"purchasegate/pkg/testutil/containers"
)

type PostgresPurchaseSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	tx       *store.PostgresTx
	child    domain.ChildID
}

func TestPostgresPurchaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPurchaseSuite))
}

func (s *PostgresPurchaseSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.tx = store.NewPostgresTxRunner(s.postgres.DB)
}

func (s *PostgresPurchaseSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"purchase_attempts", "ledger_entries", "entitlements", "audit_events"))
	s.child = domain.ChildID(uuid.New())
}

func (s *PostgresPurchaseSuite) attempt(created time.Time) *models.Attempt {
	return &models.Attempt{
		ID:                 domain.NewPurchaseID(),
		FamilyID:           testutil.TestIDs.FamilyID1,
		ChildID:            s.child,
		ParentID:           testutil.TestIDs.ParentID1,
		PackID:             testutil.TestIDs.PackID1,
		Amount:             499,
		Currency:           "USD",
		PaymentMethodToken: "tok_visa",
		State:              models.StateApprovalResolved,
		ApprovalToken:      "tok-approval",
		CreatorShare:       374,
		PlatformShare:      125,
		Client:             models.Client{IP: "203.0.113.7", UserAgent: "KidsApp/3.1", Device: "iPad"},
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func (s *PostgresPurchaseSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	a := s.attempt(testutil.FixedNow)
	s.Require().NoError(s.store.Create(ctx, a))

	got, err := s.store.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Amount, got.Amount)
	s.Equal(a.ApprovalToken, got.ApprovalToken)
	s.Equal(a.Client, got.Client)
	s.Equal(int64(374), got.CreatorShare)
	s.Nil(got.CompletedAt)
	s.True(a.CreatedAt.Equal(got.CreatedAt))

	_, err = s.store.Get(ctx, domain.NewPurchaseID())
	s.ErrorIs(err, dErrors.ErrNotFound)
}

func (s *PostgresPurchaseSuite) TestUpdate() {
	ctx := context.Background()
	a := s.attempt(testutil.FixedNow)
	s.Require().NoError(s.store.Create(ctx, a))

	s.Run("persists the mutation", func() {
		later := testutil.FixedNow.Add(time.Minute)
		updated, err := s.store.Update(ctx, a.ID, func(cur *models.Attempt) error {
			cur.ProcessorRef = "sbx_1"
			return cur.Advance(models.StateEntitlementGranted, later)
		})
		s.Require().NoError(err)
		s.Equal(models.StateEntitlementGranted, updated.State)

		got, err := s.store.Get(ctx, a.ID)
		s.Require().NoError(err)
		s.Equal("sbx_1", got.ProcessorRef)
		s.Require().NotNil(got.CompletedAt)
		s.True(later.Equal(*got.CompletedAt))
	})

	s.Run("failed mutation writes nothing", func() {
		_, err := s.store.Update(ctx, a.ID, func(cur *models.Attempt) error {
			cur.ProcessorRef = "partial"
			return errors.New("boom")
		})
		s.Require().Error(err)

		got, err := s.store.Get(ctx, a.ID)
		s.Require().NoError(err)
		s.Equal("sbx_1", got.ProcessorRef)
	})
}

func (s *PostgresPurchaseSuite) TestListByChildNewestFirst() {
	ctx := context.Background()
	older := s.attempt(testutil.FixedNow)
	newer := s.attempt(testutil.FixedNow.Add(time.Hour))
	s.Require().NoError(s.store.Create(ctx, older))
	s.Require().NoError(s.store.Create(ctx, newer))

	list, err := s.store.ListByChild(ctx, s.child, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
}

func (s *PostgresPurchaseSuite) TestTxRollsBackEveryStore() {
	ctx := context.Background()
	a := s.attempt(testutil.FixedNow)
	s.Require().NoError(s.store.Create(ctx, a))

	boom := errors.New("boom")
	err := s.tx.RunInTx(ctx, a.ChildID, func(ctx context.Context, tx store.TxStores) error {
		s.Require().NoError(tx.Ledger.LockChild(ctx, a.ChildID))
		childID := a.ChildID
		s.Require().NoError(tx.Entitlements.Insert(ctx, &entmodels.Record{
			ID:          domain.NewEntitlementID(),
			FamilyID:    a.FamilyID,
			ChildID:     &childID,
			PackID:      a.PackID,
			PurchaseID:  a.ID,
			PurchasedAt: testutil.FixedNow,
			Status:      entmodels.StatusActive,
		}))
		s.Require().NoError(tx.Ledger.Append(ctx, &ledgermodels.Entry{
			ID:         domain.NewEntryID(),
			ChildID:    a.ChildID,
			PackID:     a.PackID,
			PurchaseID: a.ID,
			Amount:     a.Amount,
			Kind:       ledgermodels.KindSpend,
			Timestamp:  testutil.FixedNow,
		}))
		_, err := tx.Attempts.Update(ctx, a.ID, func(cur *models.Attempt) error {
			return cur.Advance(models.StateEntitlementGranted, testutil.FixedNow)
		})
		s.Require().NoError(err)
		s.Require().NoError(tx.Audit.Append(ctx, audit.Event{
			Timestamp: testutil.FixedNow,
			SubjectID: a.ChildID.String(),
			Action:    audit.ActionEntitlementGranted,
		}))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	got, err := s.store.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StateApprovalResolved, got.State)

	var entitlements, entries, events int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM entitlements`).Scan(&entitlements))
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&entries))
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&events))
	s.Zero(entitlements)
	s.Zero(entries)
	s.Zero(events)
}
