package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"purchasegate/internal/approval/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/testutil"
)

// storeSuite runs the same behavioral checks against every backend that can
// run without a database container.
type storeSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	now      time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(*testing.T) Store { return NewInMemory() }})
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedis(client)
	}})
}

func (s *storeSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.now = time.Now().UTC().Truncate(time.Second)
}

func (s *storeSuite) pending(parentID domain.ParentID, createdAt time.Time) *models.Request {
	return &models.Request{
		Token:      domain.ApprovalToken("tok-" + uuid.NewString()),
		PurchaseID: domain.NewPurchaseID(),
		ChildID:    domain.ChildID(uuid.New()),
		PackID:     domain.PackID(uuid.New()),
		ParentID:   parentID,
		Amount:     300,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(15 * time.Minute),
		Status:     models.StatusPending,
	}
}

func (s *storeSuite) TestCreateAndGet() {
	ctx := context.Background()
	req := s.pending(domain.ParentID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(ctx, req))

	got, err := s.store.Get(ctx, req.Token)
	s.Require().NoError(err)
	s.Equal(req.PurchaseID, got.PurchaseID)
	s.Equal(req.ParentID, got.ParentID)
	s.Equal(models.StatusPending, got.Status)
	s.True(req.ExpiresAt.Equal(got.ExpiresAt))
	s.Nil(got.RedeemedAt)
}

func (s *storeSuite) TestUnknownToken() {
	_, err := s.store.Get(context.Background(), "nope")
	s.ErrorIs(err, dErrors.ErrTokenNotFound)

	_, err = s.store.Update(context.Background(), "nope", func(*models.Request) error { return nil })
	s.ErrorIs(err, dErrors.ErrTokenNotFound)
}

func (s *storeSuite) TestOneRequestPerPurchase() {
	ctx := context.Background()
	first := s.pending(domain.ParentID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(ctx, first))

	second := s.pending(first.ParentID, s.now)
	second.PurchaseID = first.PurchaseID
	err := s.store.Create(ctx, second)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *storeSuite) TestUpdateCallbackErrorWritesNothing() {
	ctx := context.Background()
	req := s.pending(domain.ParentID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(ctx, req))

	_, err := s.store.Update(ctx, req.Token, func(r *models.Request) error {
		r.Status = models.StatusApproved
		return dErrors.ErrTokenAlreadyResolved
	})
	s.ErrorIs(err, dErrors.ErrTokenAlreadyResolved)

	got, err := s.store.Get(ctx, req.Token)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
}

func (s *storeSuite) TestConcurrentRedeemSingleWinner() {
	ctx := context.Background()
	req := s.pending(domain.ParentID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(ctx, req))
	_, err := s.store.Update(ctx, req.Token, func(r *models.Request) error {
		_, err := r.Resolve(models.DecisionApprove, s.now.Add(time.Minute))
		return err
	})
	s.Require().NoError(err)

	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.store.Update(ctx, req.Token, func(r *models.Request) error {
			_, err := r.Redeem(s.now.Add(2*time.Minute), time.Hour)
			return err
		})
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(19), result.Code(dErrors.CodeAlreadyRedeemed))
}

func (s *storeSuite) TestPendingInboxDropsResolved() {
	ctx := context.Background()
	parentID := domain.ParentID(uuid.New())
	older := s.pending(parentID, s.now.Add(-2*time.Minute))
	newer := s.pending(parentID, s.now)
	other := s.pending(domain.ParentID(uuid.New()), s.now)
	for _, r := range []*models.Request{newer, older, other} {
		s.Require().NoError(s.store.Create(ctx, r))
	}

	inbox, err := s.store.ListPendingByParent(ctx, parentID)
	s.Require().NoError(err)
	s.Require().Len(inbox, 2)
	s.Equal(older.Token, inbox[0].Token)
	s.Equal(newer.Token, inbox[1].Token)

	_, err = s.store.Update(ctx, older.Token, func(r *models.Request) error {
		_, err := r.Resolve(models.DecisionDeny, s.now)
		return err
	})
	s.Require().NoError(err)

	inbox, err = s.store.ListPendingByParent(ctx, parentID)
	s.Require().NoError(err)
	s.Require().Len(inbox, 1)
	s.Equal(newer.Token, inbox[0].Token)
}

func (s *storeSuite) TestListStale() {
	ctx := context.Background()
	parentID := domain.ParentID(uuid.New())
	stale := s.pending(parentID, s.now.Add(-time.Hour))
	fresh := s.pending(parentID, s.now)
	s.Require().NoError(s.store.Create(ctx, stale))
	s.Require().NoError(s.store.Create(ctx, fresh))

	tokens, err := s.store.ListStale(ctx, s.now, 10)
	s.Require().NoError(err)
	s.Equal([]domain.ApprovalToken{stale.Token}, tokens)

	_, err = s.store.Update(ctx, stale.Token, func(r *models.Request) error {
		r.Expire(s.now)
		return nil
	})
	s.Require().NoError(err)

	tokens, err = s.store.ListStale(ctx, s.now, 10)
	s.Require().NoError(err)
	s.Empty(tokens)
}
