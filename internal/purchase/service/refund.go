package service

import (
	"context"

	"purchasegate/internal/audit"
	"purchasegate/internal/notification"
	"purchasegate/internal/platform/tracer"
	"purchasegate/internal/purchase/models"
	"purchasegate/internal/purchase/store"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

// Refund reverses a completed purchase inside the refund window: a negative
// ledger entry, the entitlement marked refunded and the charge returned on
// the payment platform, all in one transaction. The refund is dated now, so
// it reduces the month it is issued in.
//
// The platform refund is idempotent per purchase, so a retried transaction
// or a later Refund call after a failed commit settles the same charge.
func (s *Service) Refund(ctx context.Context, purchaseID domain.PurchaseID, parentID domain.ParentID) (attempt *models.Attempt, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.refund", tracer.String("purchase_id", purchaseID.String()))
	defer func() { span.End(err) }()

	a, err := s.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, parentID, a.ChildID); err != nil {
		return nil, err
	}
	switch a.State {
	case models.StateEntitlementGranted:
	case models.StateRefunded:
		return nil, dErrors.New(dErrors.CodeConflict, "purchase already refunded")
	default:
		return nil, dErrors.New(dErrors.CodeConflict, "purchase was never completed")
	}

	now := requestcontext.Now(ctx)
	var (
		refunded         *models.Attempt
		platformRefunded bool
	)
	err = s.tx.RunInTx(ctx, a.ChildID, func(ctx context.Context, tx store.TxStores) error {
		ledger := s.ledger.WithStore(tx.Ledger)
		entitlements := s.entitlements.WithStore(tx.Entitlements)

		if err := ledger.LockChild(ctx, a.ChildID); err != nil {
			return err
		}
		if a.Amount > 0 {
			if _, err := ledger.RecordRefund(ctx, a.ID); err != nil {
				return err
			}
		} else if a.CompletedAt != nil && now.Sub(*a.CompletedAt) > s.ledger.RefundWindow() {
			return dErrors.ErrRefundWindowExpired
		}
		if _, err := entitlements.Refund(ctx, a.ID); err != nil {
			return err
		}
		updated, err := tx.Attempts.Update(ctx, a.ID, func(cur *models.Attempt) error {
			return cur.Advance(models.StateRefunded, now)
		})
		if err != nil {
			return err
		}
		if a.Amount > 0 {
			if err := s.payments.Refund(ctx, a.ID, a.Amount); err != nil {
				return paymentFailed(err)
			}
			platformRefunded = true
		}
		if err := tx.Audit.Append(ctx, audit.Event{
			Timestamp: now,
			ActorID:   parentID.String(),
			SubjectID: a.ChildID.String(),
			Action:    audit.ActionPurchaseRefunded,
			Decision:  string(models.StateRefunded),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append refund audit")
		}
		refunded = updated
		return nil
	})
	if err != nil {
		if platformRefunded {
			s.uncommittedRefund(ctx, a, parentID, err)
		}
		if s.metrics != nil {
			s.metrics.IncrementRefund(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRefund("refunded")
	}
	s.notifier.Notify(ctx, refunded.ParentID, notification.EventPurchaseRefunded, notification.Payload{
		PurchaseID: refunded.ID.String(),
		ChildID:    refunded.ChildID.String(),
		PackID:     refunded.PackID.String(),
		Amount:     refunded.Amount,
		Currency:   refunded.Currency,
	})
	s.logger.InfoContext(ctx, "purchase refunded",
		"purchase_id", refunded.ID.String(),
		"parent_id", parentID.String(),
		"amount", refunded.Amount,
	)
	return refunded, nil
}

// uncommittedRefund records a platform refund whose transaction rolled back.
// The purchase still reads as granted until Refund is called again.
func (s *Service) uncommittedRefund(ctx context.Context, a *models.Attempt, parentID domain.ParentID, cause error) {
	if s.metrics != nil {
		s.metrics.IncrementRefund("uncommitted")
	}
	s.logger.ErrorContext(ctx, "platform refund issued but purchase refund did not commit",
		"purchase_id", a.ID.String(),
		"amount", a.Amount,
		"error", cause,
	)
	s.emit(ctx, audit.Event{
		ActorID:   parentID.String(),
		SubjectID: a.ChildID.String(),
		Action:    audit.ActionPurchaseRefunded,
		Decision:  "uncommitted",
		Reason:    string(dErrors.CodeOf(cause)),
		RequestID: requestcontext.RequestID(ctx),
	})
}
