package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"purchasegate/internal/ledger/metrics"
	"purchasegate/internal/ledger/models"
	"purchasegate/internal/ledger/store"
	"purchasegate/internal/platform/logger"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
	"purchasegate/pkg/testutil"
)

type LedgerServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	service *Service
	child   domain.ChildID
	pack    domain.PackID
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store,
		WithMetrics(metrics.New()),
		WithLogger(logger.Discard()),
	)
	s.child = testutil.TestIDs.ChildID1
	s.pack = testutil.TestIDs.PackID1
}

func at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *LedgerServiceSuite) spend(t time.Time, amount int64) domain.PurchaseID {
	id := domain.NewPurchaseID()
	_, err := s.service.RecordSpend(at(t), s.child, amount, s.pack, id)
	s.Require().NoError(err)
	return id
}

func (s *LedgerServiceSuite) TestRecordSpend_DuplicatePurchase() {
	id := domain.NewPurchaseID()
	ctx := at(testutil.FixedNow)

	first, err := s.service.RecordSpend(ctx, s.child, 300, s.pack, id)
	s.Require().NoError(err)
	s.Equal(int64(1), first.Sequence)

	_, err = s.service.RecordSpend(ctx, s.child, 300, s.pack, id)
	s.True(errors.Is(err, dErrors.ErrDuplicatePurchase))

	total, err := s.service.MonthlySpend(ctx, s.child, testutil.FixedNow)
	s.Require().NoError(err)
	s.Equal(int64(300), total)
}

func (s *LedgerServiceSuite) TestRecordSpend_ConcurrentRetries() {
	id := domain.NewPurchaseID()
	ctx := at(testutil.FixedNow)

	result := testutil.RunConcurrent(25, func(int) error {
		_, err := s.service.RecordSpend(ctx, s.child, 150, s.pack, id)
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(24), result.Code(dErrors.CodeDuplicatePurchase))
}

func (s *LedgerServiceSuite) TestRecordSpend_Validation() {
	ctx := at(testutil.FixedNow)
	_, err := s.service.RecordSpend(ctx, s.child, 0, s.pack, domain.NewPurchaseID())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.RecordSpend(ctx, s.child, 10, s.pack, domain.PurchaseID{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *LedgerServiceSuite) TestMonthlySpend_MonthBoundary() {
	endOfJan := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	startOfFeb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	s.spend(endOfJan, 400)
	s.spend(startOfFeb, 250)

	jan, err := s.service.MonthlySpend(at(startOfFeb), s.child, endOfJan)
	s.Require().NoError(err)
	s.Equal(int64(400), jan)

	feb, err := s.service.MonthlySpend(at(startOfFeb), s.child, startOfFeb.Add(10*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(250), feb, "January entries must not count toward February")
}

func (s *LedgerServiceSuite) TestMonthlySpend_IsPerChild() {
	s.spend(testutil.FixedNow, 800)
	total, err := s.service.MonthlySpend(at(testutil.FixedNow), testutil.TestIDs.ChildID2, testutil.FixedNow)
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *LedgerServiceSuite) TestMonthlySpend_Location() {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		s.T().Skip("tzdata unavailable")
	}
	svc := New(s.store, WithLocation(tokyo), WithLogger(logger.Discard()))

	// 20:00 UTC on Jan 31 is already Feb 1 in Tokyo.
	ts := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)
	s.spend(ts, 500)

	feb, err := svc.MonthlySpend(at(ts), s.child, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(int64(500), feb)
}

func (s *LedgerServiceSuite) TestRecordRefund_Window() {
	purchasedAt := testutil.FixedNow

	s.Run("23 hours after purchase succeeds", func() {
		id := s.spend(purchasedAt, 300)
		refund, err := s.service.RecordRefund(at(purchasedAt.Add(23*time.Hour)), id)
		s.Require().NoError(err)
		s.Equal(int64(-300), refund.Amount)
		s.Equal(models.KindRefund, refund.Kind)
		s.Equal(id, refund.PurchaseID)
	})

	s.Run("25 hours after purchase is rejected", func() {
		id := s.spend(purchasedAt, 300)
		_, err := s.service.RecordRefund(at(purchasedAt.Add(25*time.Hour)), id)
		s.True(errors.Is(err, dErrors.ErrRefundWindowExpired))

		_, err = s.store.FindByPurchase(context.Background(), id, models.KindRefund)
		s.True(errors.Is(err, dErrors.ErrNotFound), "no refund entry may be written")
	})

	s.Run("exactly at the window edge succeeds", func() {
		id := s.spend(purchasedAt, 100)
		_, err := s.service.RecordRefund(at(purchasedAt.Add(24*time.Hour)), id)
		s.NoError(err)
	})

	s.Run("configurable window", func() {
		short := New(s.store, WithRefundWindow(time.Hour), WithLogger(logger.Discard()))
		id := s.spend(purchasedAt, 100)
		_, err := short.RecordRefund(at(purchasedAt.Add(2*time.Hour)), id)
		s.True(errors.Is(err, dErrors.ErrRefundWindowExpired))
	})
}

func (s *LedgerServiceSuite) TestRecordRefund_Failures() {
	s.Run("unknown purchase", func() {
		_, err := s.service.RecordRefund(at(testutil.FixedNow), domain.NewPurchaseID())
		s.True(errors.Is(err, dErrors.ErrNotFound))
	})

	s.Run("second refund conflicts", func() {
		id := s.spend(testutil.FixedNow, 200)
		_, err := s.service.RecordRefund(at(testutil.FixedNow.Add(time.Hour)), id)
		s.Require().NoError(err)
		_, err = s.service.RecordRefund(at(testutil.FixedNow.Add(2*time.Hour)), id)
		s.True(errors.Is(err, dErrors.ErrConflict))
	})
}

func (s *LedgerServiceSuite) TestRefundReducesMonthOfRefund() {
	lateJan := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)
	id := s.spend(lateJan, 600)

	refundAt := lateJan.Add(6 * time.Hour) // Feb 1, 02:00
	_, err := s.service.RecordRefund(at(refundAt), id)
	s.Require().NoError(err)

	jan, err := s.service.MonthlySpend(at(refundAt), s.child, lateJan)
	s.Require().NoError(err)
	s.Equal(int64(600), jan)

	feb, err := s.service.MonthlySpend(at(refundAt), s.child, refundAt)
	s.Require().NoError(err)
	s.Equal(int64(-600), feb)
}

func (s *LedgerServiceSuite) TestStatement() {
	s.spend(testutil.FixedNow, 100)
	s.spend(testutil.FixedNow.Add(time.Minute), 250)
	s.spend(testutil.FixedNow.AddDate(0, 1, 0), 999)

	stmt, err := s.service.Statement(at(testutil.FixedNow), s.child, testutil.FixedNow)
	s.Require().NoError(err)
	s.Equal(int64(350), stmt.Total)
	s.Require().Len(stmt.Entries, 2)
	s.Less(stmt.Entries[0].Sequence, stmt.Entries[1].Sequence)
	s.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), stmt.Period.Start)
}

func (s *LedgerServiceSuite) TestEntries_InvalidRange() {
	_, err := s.service.Entries(at(testutil.FixedNow), s.child, testutil.FixedNow, testutil.FixedNow)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
