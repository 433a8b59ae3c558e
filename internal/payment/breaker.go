package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/circuit"
)

const defaultTimeout = 10 * time.Second

// Guarded wraps a Platform with a call timeout and a circuit breaker. Only
// infrastructure failures count against the circuit; a decline means the
// provider is healthy.
type Guarded struct {
	next    Platform
	breaker *circuit.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

type GuardOption func(*Guarded)

func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGuarded(next Platform, breaker *circuit.Breaker, opts ...GuardOption) *Guarded {
	g := &Guarded{
		next:    next,
		breaker: breaker,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	breakerState.WithLabelValues(breaker.Name()).Set(float64(circuit.StateClosed))
	return g
}

func (g *Guarded) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if !g.breaker.Allow() {
		charges.WithLabelValues("circuit_open").Inc()
		return nil, dErrors.New(dErrors.CodePaymentFailed, "payment platform unavailable")
	}
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := g.next.Charge(callCtx, req)
	chargeLatency.Observe(time.Since(start).Seconds())
	g.record(ctx, err)
	if err != nil {
		charges.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		return nil, err
	}
	charges.WithLabelValues("charged").Inc()
	return res, nil
}

func (g *Guarded) Refund(ctx context.Context, purchaseID domain.PurchaseID, amount int64) error {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	err := g.next.Refund(callCtx, purchaseID, amount)
	if err != nil {
		refunds.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		return err
	}
	refunds.WithLabelValues("refunded").Inc()
	return nil
}

func (g *Guarded) record(ctx context.Context, err error) {
	var change circuit.StateChange
	if err == nil || !isInfrastructure(err) {
		change = g.breaker.RecordSuccess()
	} else {
		change = g.breaker.RecordFailure()
	}
	switch {
	case change.Opened:
		breakerState.WithLabelValues(g.breaker.Name()).Set(float64(circuit.StateOpen))
		g.logger.WarnContext(ctx, "payment circuit opened", "circuit", g.breaker.Name(), "error", err)
	case change.Closed:
		breakerState.WithLabelValues(g.breaker.Name()).Set(float64(circuit.StateClosed))
		g.logger.InfoContext(ctx, "payment circuit closed", "circuit", g.breaker.Name())
	}
}

func isInfrastructure(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodePaymentFailed, dErrors.CodeValidation, dErrors.CodeConflict, dErrors.CodeNotFound:
		return false
	}
	return true
}

// Health fails while the circuit is open. Readiness treats it as optional:
// approvals still flow, only completions are refused.
func (g *Guarded) Health(context.Context) error {
	if state := g.breaker.State(); state == circuit.StateOpen {
		return fmt.Errorf("%s circuit %s", g.breaker.Name(), state)
	}
	return nil
}
