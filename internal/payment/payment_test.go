package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/platform/logger"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/circuit"
)

func charge(token string) ChargeRequest {
	return ChargeRequest{PurchaseID: domain.NewPurchaseID(), Amount: 300, Currency: "USD", PaymentMethodToken: token}
}

func TestSandbox(t *testing.T) {
	ctx := context.Background()

	t.Run("charge is idempotent per purchase", func(t *testing.T) {
		sb := NewSandbox()
		req := charge("tok_visa")
		first, err := sb.Charge(ctx, req)
		require.NoError(t, err)
		second, err := sb.Charge(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.ProcessorRef, second.ProcessorRef)
		assert.True(t, sb.Charged(req.PurchaseID))
	})

	t.Run("decline token fails", func(t *testing.T) {
		_, err := NewSandbox().Charge(ctx, charge(TokenDecline))
		assert.ErrorIs(t, err, dErrors.ErrPaymentFailed)
	})

	t.Run("refund lifecycle", func(t *testing.T) {
		sb := NewSandbox()
		req := charge("tok_visa")
		_, err := sb.Charge(ctx, req)
		require.NoError(t, err)

		assert.ErrorIs(t, sb.Refund(ctx, domain.NewPurchaseID(), 300), dErrors.ErrNotFound)
		assert.True(t, dErrors.HasCode(sb.Refund(ctx, req.PurchaseID, 1), dErrors.CodeValidation))
		require.NoError(t, sb.Refund(ctx, req.PurchaseID, 300))
		assert.NoError(t, sb.Refund(ctx, req.PurchaseID, 300), "repeat refunds of one charge succeed")
		assert.False(t, sb.Charged(req.PurchaseID))
		assert.False(t, sb.Charged(req.PurchaseID))
	})
}

type failingPlatform struct {
	err   error
	calls int
}

func (f *failingPlatform) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	f.calls++
	return nil, f.err
}

func (f *failingPlatform) Refund(context.Context, domain.PurchaseID, int64) error { return f.err }

func TestGuarded_TimeoutSurfaces(t *testing.T) {
	g := NewGuarded(NewSandbox(), circuit.New("payment-timeout"), WithTimeout(10*time.Millisecond), WithLogger(logger.Discard()))
	_, err := g.Charge(context.Background(), charge(TokenTimeout))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestGuarded_OpensOnInfrastructureFailures(t *testing.T) {
	next := &failingPlatform{err: errors.New("connection reset")}
	b := circuit.New("payment-infra", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	g := NewGuarded(next, b, WithLogger(logger.Discard()))

	for range 2 {
		_, err := g.Charge(context.Background(), charge("tok_visa"))
		require.Error(t, err)
	}
	assert.Equal(t, circuit.StateOpen, b.State())

	_, err := g.Charge(context.Background(), charge("tok_visa"))
	assert.ErrorIs(t, err, dErrors.ErrPaymentFailed)
	assert.Equal(t, 2, next.calls, "open circuit short-circuits the provider")
	assert.EqualError(t, g.Health(context.Background()), "payment-infra circuit open")
}

func TestGuarded_DeclinesDoNotTrip(t *testing.T) {
	b := circuit.New("payment-declines", circuit.WithFailureThreshold(2))
	g := NewGuarded(NewSandbox(), b, WithLogger(logger.Discard()))
	for range 5 {
		_, err := g.Charge(context.Background(), charge(TokenDecline))
		assert.ErrorIs(t, err, dErrors.ErrPaymentFailed)
	}
	assert.Equal(t, circuit.StateClosed, b.State())
	assert.NoError(t, g.Health(context.Background()))
}
