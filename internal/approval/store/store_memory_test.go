package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/approval/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

func TestInMemoryStore_DeleteResolvedBefore(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	mk := func(status models.Status, expiresAt time.Time) *models.Request {
		return &models.Request{
			Token:      domain.ApprovalToken(uuid.NewString()),
			PurchaseID: domain.NewPurchaseID(),
			ParentID:   domain.ParentID(uuid.New()),
			Status:     status,
			CreatedAt:  expiresAt.Add(-15 * time.Minute),
			ExpiresAt:  expiresAt,
		}
	}
	oldDenied := mk(models.StatusDenied, now.Add(-48*time.Hour))
	oldPending := mk(models.StatusPending, now.Add(-48*time.Hour))
	recentApproved := mk(models.StatusApproved, now.Add(-time.Hour))
	for _, r := range []*models.Request{oldDenied, oldPending, recentApproved} {
		require.NoError(t, st.Create(ctx, r))
	}

	n, err := st.DeleteResolvedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = st.Get(ctx, oldDenied.Token)
	assert.ErrorIs(t, err, dErrors.ErrTokenNotFound)
	_, err = st.Get(ctx, oldPending.Token)
	assert.NoError(t, err, "pending requests are expired by the sweep first, never purged directly")

	// The purchase slot is freed with the request.
	again := mk(models.StatusPending, now)
	again.PurchaseID = oldDenied.PurchaseID
	assert.NoError(t, st.Create(ctx, again))
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	req := &models.Request{Token: "t1", PurchaseID: domain.NewPurchaseID(), Status: models.StatusPending}
	require.NoError(t, st.Create(ctx, req))

	got, err := st.Get(ctx, "t1")
	require.NoError(t, err)
	got.Status = models.StatusApproved

	again, err := st.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
}
