package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/audit"
	"purchasegate/internal/consent/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/testutil"
)

func newRecord(childID domain.ChildID) *models.Record {
	return &models.Record{
		ID:                domain.NewConsentID(),
		ChildID:           childID,
		ParentID:          testutil.TestIDs.ParentID1,
		PurchasesAllowed:  true,
		AllowedCategories: []string{"art"},
		ConsentGivenAt:    testutil.FixedNow,
	}
}

func TestInMemoryStore_SingleActivePerChild(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	child := testutil.TestIDs.ChildID1

	first := newRecord(child)
	require.NoError(t, st.Insert(ctx, first))

	err := st.Insert(ctx, newRecord(child))
	assert.True(t, errors.Is(err, dErrors.ErrConflict))

	require.NoError(t, st.MarkWithdrawn(ctx, first.ID, testutil.FixedNow))
	require.NoError(t, st.Insert(ctx, newRecord(child)))
	assert.Equal(t, 1, st.CountActive(child))

	err = st.MarkWithdrawn(ctx, first.ID, testutil.FixedNow)
	assert.True(t, errors.Is(err, dErrors.ErrConflict))

	err = st.MarkWithdrawn(ctx, domain.NewConsentID(), testutil.FixedNow)
	assert.True(t, errors.Is(err, dErrors.ErrNotFound))
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	rec := newRecord(testutil.TestIDs.ChildID1)
	require.NoError(t, st.Insert(ctx, rec))

	rec.AllowedCategories[0] = "mutated"
	got, err := st.FindActive(ctx, rec.ChildID)
	require.NoError(t, err)
	assert.Equal(t, []string{"art"}, got.AllowedCategories)

	got.PurchasesAllowed = false
	again, err := st.FindActive(ctx, rec.ChildID)
	require.NoError(t, err)
	assert.True(t, again.PurchasesAllowed)
}

func TestInMemoryTx_UndoesWritesOnError(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	child := testutil.TestIDs.ChildID1
	prior := newRecord(child)
	require.NoError(t, st.Insert(ctx, prior))

	tx := NewInMemoryTx(st, audit.NewInMemoryStore())
	boom := errors.New("boom")
	err := tx.RunInTx(ctx, child, func(ctx context.Context, s Store, _ audit.Store) error {
		require.NoError(t, s.MarkWithdrawn(ctx, prior.ID, testutil.FixedNow.Add(time.Minute)))
		require.NoError(t, s.Insert(ctx, newRecord(child)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	active, err := st.FindActive(ctx, child)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, active.ID)

	all, err := st.ListByChild(ctx, child)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInMemoryTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tx := NewInMemoryTx(NewInMemory(), audit.NewInMemoryStore())
	err := tx.RunInTx(ctx, testutil.TestIDs.ChildID1, func(context.Context, Store, audit.Store) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}
