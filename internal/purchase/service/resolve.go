package service

import (
	"context"
	"errors"

	approvalmodels "purchasegate/internal/approval/models"
	"purchasegate/internal/audit"
	"purchasegate/internal/platform/tracer"
	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

var errNotWaiting = errors.New("attempt not waiting on approval")

// ResolveApproval records the parent's decision and moves the attempt with
// it: approval leaves it approval_resolved for Complete, denial rejects it
// with approval_denied. An expired token rejects the attempt with
// token_expired and returns TokenExpired.
func (s *Service) ResolveApproval(ctx context.Context, token domain.ApprovalToken, parentID domain.ParentID, decision approvalmodels.Decision) (attempt *models.Attempt, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.resolve_approval", tracer.String("decision", string(decision)))
	defer func() { span.End(err) }()

	req, err := s.approvals.Resolve(ctx, token, parentID, decision)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTokenExpired) {
			s.closeExpiredToken(ctx, token)
		}
		return nil, err
	}
	span.SetAttributes(tracer.String("purchase_id", req.PurchaseID.String()))

	now := requestcontext.Now(ctx)
	updated, err := s.attempts.Update(ctx, req.PurchaseID, func(a *models.Attempt) error {
		if decision == approvalmodels.DecisionDeny {
			return a.Reject(dErrors.CodeApprovalDenied, now)
		}
		return a.Advance(models.StateApprovalResolved, now)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record approval on purchase")
	}

	s.emit(ctx, audit.Event{
		ActorID:   parentID.String(),
		SubjectID: updated.ChildID.String(),
		Action:    audit.ActionApprovalResolved,
		Decision:  string(req.Status),
		RequestID: requestcontext.RequestID(ctx),
	})
	if updated.State == models.StateRejected {
		s.recordRejection(ctx, updated, dErrors.ErrApprovalDenied)
	}
	s.logger.InfoContext(ctx, "purchase approval resolved",
		"purchase_id", updated.ID.String(),
		"parent_id", parentID.String(),
		"status", string(req.Status),
	)
	return updated, nil
}

// ApprovalExpired closes out the attempt waiting on an approval the sweep
// expired. Attempts that already moved on are left alone.
func (s *Service) ApprovalExpired(ctx context.Context, req *approvalmodels.Request) error {
	return s.closeExpired(ctx, req.PurchaseID)
}

func (s *Service) closeExpiredToken(ctx context.Context, token domain.ApprovalToken) {
	req, err := s.approvals.Get(ctx, token)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load expired approval", "error", err)
		return
	}
	if err := s.closeExpired(ctx, req.PurchaseID); err != nil {
		s.logger.WarnContext(ctx, "failed to close expired purchase", "purchase_id", req.PurchaseID.String(), "error", err)
	}
}

func (s *Service) closeExpired(ctx context.Context, purchaseID domain.PurchaseID) error {
	now := requestcontext.Now(ctx)
	updated, err := s.attempts.Update(ctx, purchaseID, func(a *models.Attempt) error {
		if a.State != models.StateApprovalPending {
			return errNotWaiting
		}
		return a.Reject(dErrors.CodeTokenExpired, now)
	})
	switch {
	case errors.Is(err, errNotWaiting):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire purchase")
	}
	s.recordRejection(ctx, updated, dErrors.ErrTokenExpired)
	return nil
}
