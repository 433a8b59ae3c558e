package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

// Sandbox payment method tokens.
const (
	TokenDecline = "tok_decline"
	TokenTimeout = "tok_timeout"
)

type sandboxCharge struct {
	result   ChargeResult
	amount   int64
	refunded bool
}

// Sandbox is an in-process payment platform for development and tests. Any
// token other than the sandbox failure tokens succeeds.
type Sandbox struct {
	mu      sync.Mutex
	charges map[domain.PurchaseID]*sandboxCharge
}

func NewSandbox() *Sandbox {
	return &Sandbox{charges: make(map[domain.PurchaseID]*sandboxCharge)}
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	switch req.PaymentMethodToken {
	case TokenDecline:
		return nil, dErrors.New(dErrors.CodePaymentFailed, "card declined")
	case TokenTimeout:
		<-ctx.Done()
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "payment platform timed out")
	}
	if req.Amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "charge amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.charges[req.PurchaseID]; ok {
		res := c.result
		return &res, nil
	}
	c := &sandboxCharge{
		result: ChargeResult{ProcessorRef: "sbx_" + randomRef(), ChargedAt: requestcontext.Now(ctx)},
		amount: req.Amount,
	}
	s.charges[req.PurchaseID] = c
	res := c.result
	return &res, nil
}

func (s *Sandbox) Refund(_ context.Context, purchaseID domain.PurchaseID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[purchaseID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "charge not found")
	}
	if amount != c.amount {
		return dErrors.New(dErrors.CodeValidation, "refund must match the charged amount")
	}
	c.refunded = true
	return nil
}

// Charged reports whether purchaseID holds an unrefunded charge.
func (s *Sandbox) Charged(purchaseID domain.PurchaseID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[purchaseID]
	return ok && !c.refunded
}

func randomRef() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
