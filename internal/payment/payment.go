// Package payment delegates money movement to the payment platform. The
// purchase flow only sees success or a typed failure.
package payment

import (
	"context"
	"time"

	"purchasegate/pkg/domain"
)

type ChargeRequest struct {
	PurchaseID         domain.PurchaseID
	Amount             int64
	Currency           string
	PaymentMethodToken string
	Description        string
}

type ChargeResult struct {
	ProcessorRef string
	ChargedAt    time.Time
}

// Platform is the payment provider port.
// Error Contract:
//   - Charge returns payment_failed when the provider declines, timeout when
//     it does not answer in time, and is idempotent per PurchaseID
//   - Refund returns not_found for purchases never charged and is idempotent
//     per PurchaseID: refunding a refunded charge again succeeds
type Platform interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, purchaseID domain.PurchaseID, amount int64) error
}
