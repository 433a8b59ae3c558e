package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"purchasegate/internal/entitlement/metrics"
	"purchasegate/internal/entitlement/models"
	"purchasegate/internal/entitlement/store"
	"purchasegate/internal/platform/logger"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
	"purchasegate/pkg/testutil"
)

type EntitlementServiceSuite struct {
	suite.Suite
	service *Service
	family  domain.FamilyID
	child   domain.ChildID
	sibling domain.ChildID
	pack    domain.PackID
}

func TestEntitlementServiceSuite(t *testing.T) {
	suite.Run(t, new(EntitlementServiceSuite))
}

func (s *EntitlementServiceSuite) SetupTest() {
	s.service = New(store.NewInMemory(),
		WithMetrics(metrics.New()),
		WithLogger(logger.Discard()),
	)
	s.family = testutil.TestIDs.FamilyID1
	s.child = testutil.TestIDs.ChildID1
	s.sibling = testutil.TestIDs.ChildID2
	s.pack = testutil.TestIDs.PackID1
}

func at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *EntitlementServiceSuite) TestGrant() {
	s.Run("records purchase time from context", func() {
		s.SetupTest()
		rec, err := s.service.Grant(at(testutil.FixedNow), s.family, &s.child, s.pack, domain.NewPurchaseID())
		s.Require().NoError(err)
		s.Equal(testutil.FixedNow, rec.PurchasedAt)
		s.Equal(models.StatusActive, rec.Status)
	})

	s.Run("duplicate active grant is already owned", func() {
		s.SetupTest()
		ctx := at(testutil.FixedNow)
		_, err := s.service.Grant(ctx, s.family, &s.child, s.pack, domain.NewPurchaseID())
		s.Require().NoError(err)
		_, err = s.service.Grant(ctx, s.family, &s.child, s.pack, domain.NewPurchaseID())
		s.True(errors.Is(err, dErrors.ErrAlreadyOwned))
	})

	s.Run("rejects missing identifiers", func() {
		s.SetupTest()
		_, err := s.service.Grant(context.Background(), domain.FamilyID{}, &s.child, s.pack, domain.NewPurchaseID())
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		_, err = s.service.Grant(context.Background(), s.family, &s.child, s.pack, domain.PurchaseID{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *EntitlementServiceSuite) TestHasEntitlement() {
	ctx := at(testutil.FixedNow)
	_, err := s.service.Grant(ctx, s.family, nil, s.pack, domain.NewPurchaseID())
	s.Require().NoError(err)

	owned, err := s.service.HasEntitlement(ctx, s.family, s.sibling, s.pack)
	s.Require().NoError(err)
	s.True(owned, "family-wide grant satisfies any child")

	owned, err = s.service.HasEntitlement(ctx, testutil.TestIDs.FamilyID2, s.child, s.pack)
	s.Require().NoError(err)
	s.False(owned)
}

func (s *EntitlementServiceSuite) TestRefund() {
	s.Run("flips status and frees the pack", func() {
		s.SetupTest()
		purchase := domain.NewPurchaseID()
		_, err := s.service.Grant(at(testutil.FixedNow), s.family, &s.child, s.pack, purchase)
		s.Require().NoError(err)

		later := testutil.FixedNow.Add(time.Hour)
		rec, err := s.service.Refund(at(later), purchase)
		s.Require().NoError(err)
		s.Equal(models.StatusRefunded, rec.Status)
		s.Equal(later, *rec.RefundedAt)

		owned, err := s.service.HasEntitlement(at(later), s.family, s.child, s.pack)
		s.Require().NoError(err)
		s.False(owned)
	})

	s.Run("unknown purchase is not found", func() {
		s.SetupTest()
		_, err := s.service.Refund(context.Background(), domain.NewPurchaseID())
		s.True(errors.Is(err, dErrors.ErrNotFound))
	})

	s.Run("second refund is not found", func() {
		s.SetupTest()
		purchase := domain.NewPurchaseID()
		_, err := s.service.Grant(at(testutil.FixedNow), s.family, &s.child, s.pack, purchase)
		s.Require().NoError(err)
		_, err = s.service.Refund(at(testutil.FixedNow), purchase)
		s.Require().NoError(err)
		_, err = s.service.Refund(at(testutil.FixedNow), purchase)
		s.True(errors.Is(err, dErrors.ErrNotFound))
	})
}

func (s *EntitlementServiceSuite) TestLibrary() {
	ctx := at(testutil.FixedNow)
	_, err := s.service.Grant(ctx, s.family, &s.child, s.pack, domain.NewPurchaseID())
	s.Require().NoError(err)
	_, err = s.service.Grant(ctx, s.family, nil, testutil.TestIDs.PackID2, domain.NewPurchaseID())
	s.Require().NoError(err)

	lib, err := s.service.Library(ctx, s.family, s.child)
	s.Require().NoError(err)
	s.Len(lib, 2)

	lib, err = s.service.Library(ctx, s.family, s.sibling)
	s.Require().NoError(err)
	s.Require().Len(lib, 1)
	s.True(lib[0].IsFamilyWide())
}

func (s *EntitlementServiceSuite) TestLibraryStats() {
	ctx := at(testutil.FixedNow)
	_, err := s.service.Grant(ctx, s.family, &s.child, s.pack, domain.NewPurchaseID())
	s.Require().NoError(err)
	shared := domain.NewPurchaseID()
	_, err = s.service.Grant(ctx, s.family, nil, testutil.TestIDs.PackID2, shared)
	s.Require().NoError(err)

	stats, err := s.service.LibraryStats(ctx, s.family, s.sibling)
	s.Require().NoError(err)
	s.Equal(1, stats.TotalItems)
	s.Equal(1, stats.FamilyWide)

	_, err = s.service.Refund(at(testutil.FixedNow.Add(time.Hour)), shared)
	s.Require().NoError(err)
	stats, err = s.service.LibraryStats(ctx, s.family, s.child)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalItems)
	s.Equal(1, stats.Active)
	s.Equal(1, stats.Refunded)
	s.Zero(stats.FamilyWide)
	s.Require().NotEmpty(stats.Recent)
	s.Equal(models.ActivityRefunded, stats.Recent[0].Kind)

	_, err = s.service.LibraryStats(ctx, domain.FamilyID{}, s.child)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
