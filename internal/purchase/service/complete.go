package service

import (
	"context"
	"errors"
	"time"

	"purchasegate/internal/audit"
	ledgersvc "purchasegate/internal/ledger/service"
	"purchasegate/internal/notification"
	"purchasegate/internal/payment"
	"purchasegate/internal/platform/tracer"
	"purchasegate/internal/purchase/models"
	"purchasegate/internal/purchase/store"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

// Complete finishes an approved purchase. It redeems the approval, which
// only one caller can do, re-checks ownership and the spending limit, charges
// the payment platform and commits the entitlement and spend in one
// transaction. The limit is checked again under the child's commit lock.
//
// Once the approval is redeemed no retry can reach this attempt again, so
// every later failure rejects it: gate outcomes keep their code, anything
// else becomes payment_failed. That leg runs detached from the caller's
// cancellation, bounded by the settle timeout. A charge whose commit fails is
// refunded on the platform. Calling Complete on a granted attempt returns it
// unchanged.
func (s *Service) Complete(ctx context.Context, purchaseID domain.PurchaseID) (attempt *models.Attempt, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.complete", tracer.String("purchase_id", purchaseID.String()))
	defer func() { span.End(err) }()
	start := time.Now()

	a, err := s.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	switch a.State {
	case models.StateEntitlementGranted:
		return a, nil
	case models.StateRejected:
		return nil, a.RejectionError()
	case models.StateRefunded:
		return nil, dErrors.New(dErrors.CodeConflict, "purchase was refunded")
	case models.StateApprovalPending, models.StateApprovalResolved:
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purchase in unexpected state "+string(a.State))
	}

	ticket, err := s.approvals.Redeem(ctx, a.ApprovalToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTokenExpired) {
			return nil, s.reject(ctx, a, err)
		}
		return nil, err
	}
	span.AddEvent("approval_redeemed")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settleTimeout)
	defer cancel()

	if ticket.PurchaseID != a.ID {
		return nil, s.reject(ctx, a, paymentFailed(
			dErrors.New(dErrors.CodeInvariantViolation, "approval belongs to another purchase")))
	}
	if err := s.precheck(ctx, a); err != nil {
		return nil, s.commitFailed(ctx, a, err, false)
	}

	charge, err := s.payments.Charge(ctx, payment.ChargeRequest{
		PurchaseID:         a.ID,
		Amount:             a.Amount,
		Currency:           a.Currency,
		PaymentMethodToken: a.PaymentMethodToken,
		Description:        "content pack " + a.PackID.String(),
	})
	if err != nil {
		return nil, s.reject(ctx, a, paymentFailed(err))
	}
	span.AddEvent("payment_charged", tracer.String("processor_ref", charge.ProcessorRef))

	granted, err := s.commit(ctx, a, charge.ProcessorRef)
	if err != nil {
		return nil, s.commitFailed(ctx, a, err, true)
	}

	if s.metrics != nil {
		s.metrics.ObserveCompleted(granted.CreatorShare, granted.PlatformShare, granted.Currency, time.Since(start))
	}
	s.notifyCompleted(ctx, granted)
	s.logger.InfoContext(ctx, "purchase completed",
		"purchase_id", granted.ID.String(),
		"child_id", granted.ChildID.String(),
		"amount", granted.Amount,
		"processor_ref", granted.ProcessorRef,
	)
	return granted, nil
}

// precheck repeats the ownership and limit gates without locking, so a
// purchase that can no longer commit is never charged.
func (s *Service) precheck(ctx context.Context, a *models.Attempt) error {
	owned, err := s.entitlements.HasEntitlement(ctx, a.FamilyID, a.ChildID, a.PackID)
	if err != nil {
		return err
	}
	if owned {
		return dErrors.ErrAlreadyOwned
	}
	return s.spendGate(ctx, s.ledger, a, requestcontext.Now(ctx))
}

// spendGate checks a's amount against the child's current consent limit.
func (s *Service) spendGate(ctx context.Context, ledger *ledgersvc.Service, a *models.Attempt, now time.Time) error {
	if a.Amount == 0 {
		return nil
	}
	consent, err := s.consent.Get(ctx, a.ChildID)
	switch {
	case errors.Is(err, dErrors.ErrNotFound):
		consent = nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	return checkLimit(ctx, ledger, consent, a.ChildID, a.Amount, now)
}

// commit grants the entitlement, records the spend and marks the attempt
// granted inside one transaction.
func (s *Service) commit(ctx context.Context, a *models.Attempt, processorRef string) (*models.Attempt, error) {
	now := requestcontext.Now(ctx)
	var granted *models.Attempt
	err := s.tx.RunInTx(ctx, a.ChildID, func(ctx context.Context, tx store.TxStores) error {
		ledger := s.ledger.WithStore(tx.Ledger)
		entitlements := s.entitlements.WithStore(tx.Entitlements)

		if err := ledger.LockChild(ctx, a.ChildID); err != nil {
			return err
		}
		if err := s.spendGate(ctx, ledger, a, now); err != nil {
			return err
		}

		var owner *domain.ChildID
		if !a.FamilyWide {
			childID := a.ChildID
			owner = &childID
		}
		rec, err := entitlements.Grant(ctx, a.FamilyID, owner, a.PackID, a.ID)
		if err != nil {
			return err
		}
		if a.Amount > 0 {
			if _, err := ledger.RecordSpend(ctx, a.ChildID, a.Amount, a.PackID, a.ID); err != nil {
				return err
			}
		}
		updated, err := tx.Attempts.Update(ctx, a.ID, func(cur *models.Attempt) error {
			if cur.State == models.StateApprovalPending {
				if err := cur.Advance(models.StateApprovalResolved, now); err != nil {
					return err
				}
			}
			cur.ProcessorRef = processorRef
			return cur.Advance(models.StateEntitlementGranted, now)
		})
		if err != nil {
			return err
		}
		if err := tx.Audit.Append(ctx, audit.Event{
			Timestamp: now,
			ActorID:   a.ParentID.String(),
			SubjectID: a.ChildID.String(),
			Action:    audit.ActionEntitlementGranted,
			Decision:  string(models.StateEntitlementGranted),
			Reason:    rec.ID.String(),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append purchase audit")
		}
		granted = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// commitFailed undoes the charge of a failed commit and rejects the attempt.
// Gate outcomes found under the lock keep their code; anything else becomes
// payment_failed.
func (s *Service) commitFailed(ctx context.Context, a *models.Attempt, cause error, charged bool) error {
	s.logger.ErrorContext(ctx, "purchase completion failed", "purchase_id", a.ID.String(), "error", cause)
	if charged {
		s.compensate(ctx, a)
	}
	switch dErrors.CodeOf(cause) {
	case dErrors.CodeSpendingLimitExceeded, dErrors.CodeAlreadyOwned:
	default:
		cause = paymentFailed(cause)
	}
	return s.reject(ctx, a, cause)
}

func (s *Service) compensate(ctx context.Context, a *models.Attempt) {
	err := s.payments.Refund(ctx, a.ID, a.Amount)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementCompensation("failed")
		}
		s.logger.ErrorContext(ctx, "failed to refund charge of uncommitted purchase",
			"purchase_id", a.ID.String(),
			"amount", a.Amount,
			"error", err,
		)
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementCompensation("refunded")
	}
	s.emit(ctx, audit.Event{
		ActorID:   a.ParentID.String(),
		SubjectID: a.ChildID.String(),
		Action:    audit.ActionEntitlementReversed,
		Reason:    "commit_failed",
		RequestID: requestcontext.RequestID(ctx),
	})
}

// reject moves the stored attempt to rejected with cause's code, tells the
// parent, and returns cause.
func (s *Service) reject(ctx context.Context, a *models.Attempt, cause error) error {
	now := requestcontext.Now(ctx)
	code := dErrors.CodeOf(cause)
	updated, err := s.attempts.Update(ctx, a.ID, func(cur *models.Attempt) error {
		return cur.Reject(code, now)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record purchase rejection", "purchase_id", a.ID.String(), "error", err)
		updated = a
	}
	s.recordRejection(ctx, updated, cause)
	s.notifier.Notify(ctx, updated.ParentID, notification.EventPurchaseRejected, notification.Payload{
		PurchaseID: updated.ID.String(),
		ChildID:    updated.ChildID.String(),
		PackID:     updated.PackID.String(),
		Amount:     updated.Amount,
		Currency:   updated.Currency,
		Reason:     string(code),
	})
	return cause
}

func (s *Service) notifyCompleted(ctx context.Context, a *models.Attempt) {
	s.notifier.Notify(ctx, a.ParentID, notification.EventPurchaseCompleted, notification.Payload{
		PurchaseID: a.ID.String(),
		ChildID:    a.ChildID.String(),
		PackID:     a.PackID.String(),
		Amount:     a.Amount,
		Currency:   a.Currency,
	})
}

// paymentFailed re-codes err as payment_failed, keeping it in the chain.
func paymentFailed(err error) error {
	if dErrors.HasCode(err, dErrors.CodePaymentFailed) {
		return err
	}
	return &dErrors.Error{Code: dErrors.CodePaymentFailed, Message: "payment failed", Err: err}
}
