package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "purchasegate/pkg/domain-errors"
)

var created = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func pending() *Request {
	return &Request{
		Token:     "tok",
		Amount:    500,
		CreatedAt: created,
		ExpiresAt: created.Add(15 * time.Minute),
		Status:    StatusPending,
	}
}

func TestResolve(t *testing.T) {
	t.Run("approve within ttl", func(t *testing.T) {
		r := pending()
		expired, err := r.Resolve(DecisionApprove, created.Add(5*time.Minute))
		require.NoError(t, err)
		assert.False(t, expired)
		assert.Equal(t, StatusApproved, r.Status)
		require.NotNil(t, r.ResolvedAt)
	})

	t.Run("deny within ttl", func(t *testing.T) {
		r := pending()
		_, err := r.Resolve(DecisionDeny, created.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, StatusDenied, r.Status)
	})

	t.Run("exactly at expiry still resolves", func(t *testing.T) {
		r := pending()
		_, err := r.Resolve(DecisionApprove, r.ExpiresAt)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, r.Status)
	})

	t.Run("past ttl expires as a side effect", func(t *testing.T) {
		r := pending()
		expired, err := r.Resolve(DecisionApprove, created.Add(16*time.Minute))
		require.NoError(t, err)
		assert.True(t, expired)
		assert.Equal(t, StatusExpired, r.Status)
	})

	t.Run("already expired", func(t *testing.T) {
		r := pending()
		r.Status = StatusExpired
		_, err := r.Resolve(DecisionApprove, created)
		assert.ErrorIs(t, err, dErrors.ErrTokenExpired)
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		for _, s := range []Status{StatusApproved, StatusDenied} {
			r := pending()
			r.Status = s
			_, err := r.Resolve(DecisionDeny, created)
			assert.ErrorIs(t, err, dErrors.ErrTokenAlreadyResolved)
			assert.Equal(t, s, r.Status)
		}
	})

	t.Run("resolved requests past ttl report expiry", func(t *testing.T) {
		for _, s := range []Status{StatusApproved, StatusDenied} {
			r := pending()
			r.Status = s
			expired, err := r.Resolve(DecisionApprove, created.Add(16*time.Minute))
			assert.ErrorIs(t, err, dErrors.ErrTokenExpired)
			assert.False(t, expired)
			assert.Equal(t, s, r.Status, "a decided request is not rewritten to expired")
		}
	})
}

func TestRedeem(t *testing.T) {
	window := 24 * time.Hour
	approved := func() *Request {
		r := pending()
		_, err := r.Resolve(DecisionApprove, created.Add(time.Minute))
		require.NoError(t, err)
		return r
	}

	t.Run("approved redeems once", func(t *testing.T) {
		r := approved()
		_, err := r.Redeem(created.Add(2*time.Minute), window)
		require.NoError(t, err)
		require.NotNil(t, r.RedeemedAt)

		_, err = r.Redeem(created.Add(3*time.Minute), window)
		assert.ErrorIs(t, err, dErrors.ErrAlreadyRedeemed)
	})

	t.Run("pending is not approved", func(t *testing.T) {
		_, err := pending().Redeem(created.Add(time.Minute), window)
		assert.ErrorIs(t, err, dErrors.ErrNotApproved)
	})

	t.Run("denied is not approved", func(t *testing.T) {
		r := pending()
		_, _ = r.Resolve(DecisionDeny, created)
		_, err := r.Redeem(created.Add(time.Minute), window)
		assert.ErrorIs(t, err, dErrors.ErrNotApproved)
	})

	t.Run("stale pending expires", func(t *testing.T) {
		r := pending()
		expired, err := r.Redeem(created.Add(16*time.Minute), window)
		require.NoError(t, err)
		assert.True(t, expired)
		assert.Equal(t, StatusExpired, r.Status)
	})

	t.Run("redeem window counts from approval", func(t *testing.T) {
		r := approved()
		_, err := r.Redeem(r.ResolvedAt.Add(window+time.Second), window)
		assert.ErrorIs(t, err, dErrors.ErrTokenExpired)
		assert.Nil(t, r.RedeemedAt)
		assert.Equal(t, StatusApproved, r.Status)
	})

	t.Run("ticket mirrors the request", func(t *testing.T) {
		r := approved()
		_, err := r.Redeem(created.Add(2*time.Minute), window)
		require.NoError(t, err)
		ticket := r.Ticket()
		assert.Equal(t, r.Token, ticket.Token)
		assert.Equal(t, created.Add(2*time.Minute), ticket.RedeemedAt)
	})
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("approve")
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	_, err = ParseDecision("maybe")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
