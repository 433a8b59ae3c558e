package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/entitlement/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/testutil"
)

func record(childID *domain.ChildID, packID domain.PackID) *models.Record {
	return &models.Record{
		ID:          domain.NewEntitlementID(),
		FamilyID:    testutil.TestIDs.FamilyID1,
		ChildID:     childID,
		PackID:      packID,
		PurchaseID:  domain.NewPurchaseID(),
		PurchasedAt: testutil.FixedNow,
		Status:      models.StatusActive,
	}
}

func TestInMemoryInsert(t *testing.T) {
	ctx := context.Background()
	child := testutil.TestIDs.ChildID1
	sibling := testutil.TestIDs.ChildID2

	t.Run("second active grant for same scope is already owned", func(t *testing.T) {
		st := NewInMemory()
		require.NoError(t, st.Insert(ctx, record(&child, testutil.TestIDs.PackID1)))
		err := st.Insert(ctx, record(&child, testutil.TestIDs.PackID1))
		assert.ErrorIs(t, err, dErrors.ErrAlreadyOwned)
	})

	t.Run("sibling may own the same pack", func(t *testing.T) {
		st := NewInMemory()
		require.NoError(t, st.Insert(ctx, record(&child, testutil.TestIDs.PackID1)))
		require.NoError(t, st.Insert(ctx, record(&sibling, testutil.TestIDs.PackID1)))
	})

	t.Run("purchase can grant once", func(t *testing.T) {
		st := NewInMemory()
		rec := record(&child, testutil.TestIDs.PackID1)
		require.NoError(t, st.Insert(ctx, rec))
		again := record(&sibling, testutil.TestIDs.PackID2)
		again.PurchaseID = rec.PurchaseID
		assert.ErrorIs(t, st.Insert(ctx, again), dErrors.ErrDuplicatePurchase)
	})

	t.Run("refunded record frees the scope", func(t *testing.T) {
		st := NewInMemory()
		rec := record(&child, testutil.TestIDs.PackID1)
		require.NoError(t, st.Insert(ctx, rec))
		require.NoError(t, st.MarkRefunded(ctx, rec.ID, testutil.FixedNow))
		require.NoError(t, st.Insert(ctx, record(&child, testutil.TestIDs.PackID1)))
	})

	t.Run("concurrent grants produce one owner", func(t *testing.T) {
		st := NewInMemory()
		res := testutil.RunConcurrent(20, func(int) error {
			return st.Insert(ctx, record(&child, testutil.TestIDs.PackID1))
		})
		assert.Equal(t, int32(1), res.Successes)
		assert.Equal(t, int32(19), res.Code(dErrors.CodeAlreadyOwned))
	})
}

func TestInMemoryHasActiveAndList(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	child := testutil.TestIDs.ChildID1
	sibling := testutil.TestIDs.ChildID2

	wide := record(nil, testutil.TestIDs.PackID1)
	own := record(&child, testutil.TestIDs.PackID2)
	own.PurchasedAt = testutil.FixedNow.Add(-1)
	require.NoError(t, st.Insert(ctx, wide))
	require.NoError(t, st.Insert(ctx, own))

	ok, err := st.HasActive(ctx, testutil.TestIDs.FamilyID1, sibling, testutil.TestIDs.PackID1)
	require.NoError(t, err)
	assert.True(t, ok, "family-wide grant covers siblings")

	ok, err = st.HasActive(ctx, testutil.TestIDs.FamilyID1, sibling, testutil.TestIDs.PackID2)
	require.NoError(t, err)
	assert.False(t, ok)

	lib, err := st.ListForChild(ctx, testutil.TestIDs.FamilyID1, child)
	require.NoError(t, err)
	require.Len(t, lib, 2)
	assert.Equal(t, own.ID, lib[0].ID)
	assert.Equal(t, wide.ID, lib[1].ID)

	lib, err = st.ListForChild(ctx, testutil.TestIDs.FamilyID1, sibling)
	require.NoError(t, err)
	assert.Len(t, lib, 1)
}

func TestInMemoryMarkRefundedAndRemove(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	child := testutil.TestIDs.ChildID1
	rec := record(&child, testutil.TestIDs.PackID1)
	require.NoError(t, st.Insert(ctx, rec))

	assert.ErrorIs(t, st.MarkRefunded(ctx, domain.NewEntitlementID(), testutil.FixedNow), dErrors.ErrNotFound)
	require.NoError(t, st.MarkRefunded(ctx, rec.ID, testutil.FixedNow))
	assert.ErrorIs(t, st.MarkRefunded(ctx, rec.ID, testutil.FixedNow), dErrors.ErrConflict)

	got, err := st.FindByPurchase(ctx, rec.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, got.Status)
	require.NotNil(t, got.RefundedAt)

	st.Remove(rec.PurchaseID)
	_, err = st.FindByPurchase(ctx, rec.PurchaseID)
	assert.ErrorIs(t, err, dErrors.ErrNotFound)
}
