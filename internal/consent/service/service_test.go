package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"purchasegate/internal/audit"
	"purchasegate/internal/consent/models"
	"purchasegate/internal/consent/service/mocks"
	"purchasegate/internal/consent/store"
	"purchasegate/internal/family"
	"purchasegate/internal/platform/logger"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
	"purchasegate/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks FamilyAuthorizer

type ConsentServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	trail   *audit.InMemoryStore
	family  *family.InMemoryDirectory
	service *Service

	parentID   domain.ParentID
	strangerID domain.ParentID
	childID    domain.ChildID
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testutil.FixedNow)
	s.store = store.NewInMemory()
	s.trail = audit.NewInMemoryStore()
	s.family = family.NewInMemoryDirectory()
	s.parentID = testutil.TestIDs.ParentID1
	s.strangerID = testutil.TestIDs.ParentID2
	s.childID = testutil.TestIDs.ChildID1

	s.Require().NoError(s.family.AddParent(s.ctx, &family.Parent{ID: s.parentID, FamilyID: testutil.TestIDs.FamilyID1}))
	s.Require().NoError(s.family.AddParent(s.ctx, &family.Parent{ID: s.strangerID, FamilyID: testutil.TestIDs.FamilyID2}))
	s.Require().NoError(s.family.AddChild(s.ctx, &family.Child{
		ID:        s.childID,
		FamilyID:  testutil.TestIDs.FamilyID1,
		BirthDate: testutil.BirthDateForAge(9, testutil.FixedNow),
	}))

	s.service = New(s.store, store.NewInMemoryTx(s.store, s.trail), s.family, WithLogger(logger.Discard()))
}

func allowPurchases(limit int64, categories ...string) models.Changes {
	cats := categories
	if cats == nil {
		cats = []string{}
	}
	return models.Changes{
		PurchasesAllowed:  testutil.Ptr(true),
		SpendingLimit:     testutil.Ptr(limit),
		AllowedCategories: &cats,
	}
}

func (s *ConsentServiceSuite) TestGet() {
	s.Run("no record returns not_found", func() {
		_, err := s.service.Get(s.ctx, s.childID)
		s.True(errors.Is(err, dErrors.ErrNotFound))
	})

	s.Run("nil child is a bad request", func() {
		_, err := s.service.Get(s.ctx, domain.ChildID{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ConsentServiceSuite) TestUpdate() {
	s.Run("first update creates the effective record", func() {
		rec, err := s.service.Update(s.ctx, s.childID, s.parentID, allowPurchases(1000, "Puzzles", "art", "puzzles"))
		s.Require().NoError(err)

		s.True(rec.PurchasesAllowed)
		s.False(rec.AnalyticsAllowed)
		s.Equal(int64(1000), *rec.SpendingLimit)
		s.Equal([]string{"art", "puzzles"}, rec.AllowedCategories)
		s.Nil(rec.Supersedes)
		s.Equal(testutil.FixedNow, rec.ConsentGivenAt)

		got, err := s.service.Get(s.ctx, s.childID)
		s.Require().NoError(err)
		s.Equal(rec.ID, got.ID)
	})

	s.Run("second update supersedes and carries unchanged fields", func() {
		first, err := s.service.Get(s.ctx, s.childID)
		s.Require().NoError(err)

		later := requestcontext.WithTime(s.ctx, testutil.FixedNow.Add(time.Hour))
		rec, err := s.service.Update(later, s.childID, s.parentID, models.Changes{AnalyticsAllowed: testutil.Ptr(true)})
		s.Require().NoError(err)

		s.Require().NotNil(rec.Supersedes)
		s.Equal(first.ID, *rec.Supersedes)
		s.True(rec.PurchasesAllowed)
		s.True(rec.AnalyticsAllowed)
		s.Equal(int64(1000), *rec.SpendingLimit)

		history, err := s.service.History(s.ctx, s.childID, s.parentID)
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Require().NotNil(history[0].WithdrawnAt)
		s.Equal(testutil.FixedNow.Add(time.Hour), *history[0].WithdrawnAt)
		s.Nil(history[1].WithdrawnAt)
	})

	s.Run("each update appends an audit entry with field diffs", func() {
		events, err := s.trail.List(s.ctx, audit.BySubject(s.childID.String()))
		s.Require().NoError(err)
		s.Require().Len(events, 2)

		s.Equal(audit.ActionConsentUpdated, events[0].Action)
		s.Equal(s.parentID.String(), events[0].ActorID)
		s.Equal(models.AuditDecisionGranted, events[0].Decision)
		s.Contains(events[0].Changes, audit.FieldChange{Field: "spending_limit", Prior: "none", Current: "1000"})

		s.Equal([]audit.FieldChange{{Field: "analytics_allowed", Prior: "false", Current: "true"}}, events[1].Changes)
	})

	s.Run("remove spending limit", func() {
		rec, err := s.service.Update(s.ctx, s.childID, s.parentID, models.Changes{RemoveSpendingLimit: true})
		s.Require().NoError(err)
		s.Nil(rec.SpendingLimit)
	})
}

func (s *ConsentServiceSuite) TestUpdate_Rejections() {
	s.Run("parent outside the family is forbidden", func() {
		_, err := s.service.Update(s.ctx, s.childID, s.strangerID, allowPurchases(500))
		s.True(errors.Is(err, dErrors.ErrForbidden))
		s.Equal(0, s.store.CountActive(s.childID))
	})

	s.Run("empty change set", func() {
		_, err := s.service.Update(s.ctx, s.childID, s.parentID, models.Changes{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("negative limit", func() {
		_, err := s.service.Update(s.ctx, s.childID, s.parentID, models.Changes{SpendingLimit: testutil.Ptr(int64(-1))})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("limit and removal together", func() {
		_, err := s.service.Update(s.ctx, s.childID, s.parentID, models.Changes{
			SpendingLimit:       testutil.Ptr(int64(10)),
			RemoveSpendingLimit: true,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing parent is unauthorized", func() {
		_, err := s.service.Update(s.ctx, s.childID, domain.ParentID{}, allowPurchases(500))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ConsentServiceSuite) TestUpdate_FamilyLookupFailure() {
	ctrl := gomock.NewController(s.T())
	fam := mocks.NewMockFamilyAuthorizer(ctrl)
	fam.EXPECT().IsParentOf(gomock.Any(), s.parentID, s.childID).Return(false, errors.New("directory down"))

	svc := New(s.store, store.NewInMemoryTx(s.store, s.trail), fam, WithLogger(logger.Discard()))
	_, err := svc.Update(s.ctx, s.childID, s.parentID, allowPurchases(500))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type failingTrail struct {
	audit.Store
}

func (failingTrail) Append(context.Context, audit.Event) error {
	return errors.New("audit sink unavailable")
}

func (s *ConsentServiceSuite) TestUpdate_AuditFailureRollsBack() {
	_, err := s.service.Update(s.ctx, s.childID, s.parentID, allowPurchases(1000))
	s.Require().NoError(err)
	before, err := s.service.Get(s.ctx, s.childID)
	s.Require().NoError(err)

	broken := New(s.store, store.NewInMemoryTx(s.store, failingTrail{}), s.family, WithLogger(logger.Discard()))
	_, err = broken.Update(s.ctx, s.childID, s.parentID, models.Changes{PurchasesAllowed: testutil.Ptr(false)})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	after, err := s.service.Get(s.ctx, s.childID)
	s.Require().NoError(err)
	s.Equal(before.ID, after.ID, "prior record must stay effective")
	s.True(after.PurchasesAllowed)

	history, err := s.service.History(s.ctx, s.childID, s.parentID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *ConsentServiceSuite) TestConcurrentUpdates_SingleActiveRecord() {
	const writers = 50

	result := testutil.RunConcurrent(writers, func(idx int) error {
		purchases := idx%2 == 0
		_, err := s.service.Update(s.ctx, s.childID, s.parentID, models.Changes{
			PurchasesAllowed: &purchases,
			SpendingLimit:    testutil.Ptr(int64(100 * idx)),
		})
		return err
	})

	s.Equal(int32(writers), result.Successes)
	s.Equal(1, s.store.CountActive(s.childID))

	history, err := s.service.History(s.ctx, s.childID, s.parentID)
	s.Require().NoError(err)
	s.Len(history, writers)

	// Every record but the first supersedes exactly one earlier record, and
	// no record is superseded twice.
	superseded := make(map[domain.ConsentID]int)
	for _, rec := range history {
		if rec.Supersedes != nil {
			superseded[*rec.Supersedes]++
		}
	}
	s.Len(superseded, writers-1)
	for id, n := range superseded {
		s.Equal(1, n, "record %s superseded more than once", id)
	}
}

func (s *ConsentServiceSuite) TestWithdraw() {
	s.Run("nothing to withdraw", func() {
		_, err := s.service.Withdraw(s.ctx, s.childID, s.parentID)
		s.True(errors.Is(err, dErrors.ErrNotFound))
	})

	s.Run("withdraws the active record", func() {
		_, err := s.service.Update(s.ctx, s.childID, s.parentID, allowPurchases(1000))
		s.Require().NoError(err)

		rec, err := s.service.Withdraw(s.ctx, s.childID, s.parentID)
		s.Require().NoError(err)
		s.Require().NotNil(rec.WithdrawnAt)

		_, err = s.service.Get(s.ctx, s.childID)
		s.True(errors.Is(err, dErrors.ErrNotFound))

		events, err := s.trail.List(s.ctx, audit.BySubject(s.childID.String()))
		s.Require().NoError(err)
		last := events[len(events)-1]
		s.Equal(audit.ActionConsentWithdrawn, last.Action)
		s.Equal(models.AuditDecisionWithdrawn, last.Decision)
	})

	s.Run("stranger cannot withdraw", func() {
		_, err := s.service.Withdraw(s.ctx, s.childID, s.strangerID)
		s.True(errors.Is(err, dErrors.ErrForbidden))
	})
}

func (s *ConsentServiceSuite) TestStatus() {
	s.Run("under 13 without consent cannot purchase", func() {
		st, err := s.service.Status(s.ctx, s.childID)
		s.Require().NoError(err)
		s.True(st.COPPAApplicable)
		s.Equal(9, st.Age)
		s.False(st.HasConsent)
		s.False(st.CanPurchase())
	})

	s.Run("under 13 with purchases allowed", func() {
		_, err := s.service.Update(s.ctx, s.childID, s.parentID, allowPurchases(2500))
		s.Require().NoError(err)

		st, err := s.service.Status(s.ctx, s.childID)
		s.Require().NoError(err)
		s.True(st.HasConsent)
		s.True(st.CanPurchase())
		s.Equal(int64(2500), *st.SpendingLimit)
	})

	s.Run("13 and over is not gated", func() {
		teen := domain.ChildID(uuid.New())
		s.Require().NoError(s.family.AddChild(s.ctx, &family.Child{
			ID:        teen,
			FamilyID:  testutil.TestIDs.FamilyID1,
			BirthDate: testutil.BirthDateForAge(14, testutil.FixedNow),
		}))
		st, err := s.service.Status(s.ctx, teen)
		s.Require().NoError(err)
		s.False(st.COPPAApplicable)
		s.True(st.CanPurchase())
	})

	s.Run("unknown child", func() {
		_, err := s.service.Status(s.ctx, domain.ChildID(uuid.New()))
		s.True(errors.Is(err, dErrors.ErrNotFound))
	})
}
