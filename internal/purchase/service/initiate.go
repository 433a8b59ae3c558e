package service

import (
	"context"
	"errors"
	"strings"
	"time"

	approvalmodels "purchasegate/internal/approval/models"
	"purchasegate/internal/audit"
	"purchasegate/internal/catalog"
	consentmodels "purchasegate/internal/consent/models"
	"purchasegate/internal/family"
	ledgersvc "purchasegate/internal/ledger/service"
	"purchasegate/internal/platform/tracer"
	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

// Initiate runs the purchase gates in order: consent, monthly spend, then
// content. A paid pack that passes is parked on a parental approval and the
// attempt is returned in approval_pending without waiting for the parent. A
// free pack is granted immediately.
//
// Every rejection is persisted as a rejected attempt and returned as the
// typed error for its gate.
func (s *Service) Initiate(ctx context.Context, req models.Request) (attempt *models.Attempt, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.initiate",
		tracer.String("child_id", req.ChildID.String()),
		tracer.String("pack_id", req.PackID.String()),
	)
	defer func() { span.End(err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, req.ParentID, req.ChildID); err != nil {
		return nil, err
	}
	child, err := s.family.Child(ctx, req.ChildID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load child")
	}
	pack, err := s.catalog.GetPack(ctx, req.PackID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pack")
	}

	now := requestcontext.Now(ctx)
	client := requestcontext.Client(ctx)
	a := &models.Attempt{
		ID:                 domain.NewPurchaseID(),
		FamilyID:           child.FamilyID,
		ChildID:            req.ChildID,
		ParentID:           req.ParentID,
		PackID:             req.PackID,
		FamilyWide:         req.FamilyWide,
		Amount:             pack.Price,
		Currency:           pack.Currency,
		PaymentMethodToken: req.PaymentMethodToken,
		State:              models.StateInitiated,
		Client:             models.Client{IP: client.IP, UserAgent: client.UserAgent, Device: client.Device},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	a.CreatorShare, a.PlatformShare = s.split(pack.Price)
	span.SetAttributes(tracer.String("purchase_id", a.ID.String()))

	if gateErr := s.runGates(ctx, a, child, pack, req); gateErr != nil {
		if !isRejection(gateErr) {
			return nil, gateErr
		}
		return nil, s.persistRejection(ctx, a, gateErr)
	}

	if pack.IsFree() {
		return s.grantFree(ctx, a)
	}

	approval, err := s.approvals.RequestApproval(ctx, approvalmodels.Input{
		PurchaseID: a.ID,
		ChildID:    a.ChildID,
		PackID:     a.PackID,
		ParentID:   a.ParentID,
		Amount:     a.Amount,
		PackTitle:  pack.Title,
		Currency:   a.Currency,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to request approval")
	}
	a.ApprovalToken = approval.Token
	if err := a.Advance(models.StateApprovalPending, now); err != nil {
		return nil, err
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save purchase")
	}

	if s.metrics != nil {
		s.metrics.IncrementInitiated("approval_pending")
	}
	s.emit(ctx, audit.Event{
		ActorID:   a.ParentID.String(),
		SubjectID: a.ChildID.String(),
		Action:    audit.ActionPurchaseInitiated,
		Decision:  string(models.StateApprovalPending),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "purchase awaiting approval",
		"purchase_id", a.ID.String(),
		"child_id", a.ChildID.String(),
		"pack_id", a.PackID.String(),
		"amount", a.Amount,
	)
	return a, nil
}

func validateRequest(req models.Request) error {
	switch {
	case req.ChildID.IsNil():
		return dErrors.New(dErrors.CodeBadRequest, "child ID required")
	case req.PackID.IsNil():
		return dErrors.New(dErrors.CodeBadRequest, "pack ID required")
	case req.ParentID.IsNil():
		return dErrors.New(dErrors.CodeUnauthorized, "missing parent context")
	case req.ExpectedPrice != nil && *req.ExpectedPrice < 0:
		return dErrors.New(dErrors.CodeValidation, "expected price must not be negative")
	}
	return nil
}

// runGates advances a through the consent, spend and content gates. The
// first failing gate's error is returned.
func (s *Service) runGates(ctx context.Context, a *models.Attempt, child *family.Child, pack *catalog.Pack, req models.Request) error {
	now := a.CreatedAt

	consent, err := s.consent.Get(ctx, a.ChildID)
	switch {
	case errors.Is(err, dErrors.ErrNotFound):
		consent = nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	if child.COPPAApplicable(now) && (consent == nil || !consent.PurchasesAllowed) {
		return dErrors.New(dErrors.CodeConsentRequired, "verifiable parental consent does not allow purchases")
	}
	if err := a.Advance(models.StateConsentChecked, now); err != nil {
		return err
	}

	if err := checkLimit(ctx, s.ledger, consent, a.ChildID, a.Amount, now); err != nil {
		return err
	}
	if err := a.Advance(models.StateSpendChecked, now); err != nil {
		return err
	}

	if consent != nil && !consent.AllowsCategory(pack.Category) {
		return dErrors.New(dErrors.CodeContentRestricted, "pack category not allowed for child")
	}
	if !pack.SuitableFor(child.Age(now)) {
		return dErrors.New(dErrors.CodeContentRestricted, "pack not suitable for child's age")
	}
	if req.ExpectedPrice != nil && *req.ExpectedPrice != pack.Price {
		return dErrors.New(dErrors.CodeConflict, "pack price changed")
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, pack.Currency) {
		return dErrors.New(dErrors.CodeConflict, "pack currency changed")
	}
	if req.FamilyWide && !pack.FamilyShare {
		return dErrors.New(dErrors.CodeValidation, "pack cannot be shared family-wide")
	}
	owned, err := s.entitlements.HasEntitlement(ctx, a.FamilyID, a.ChildID, a.PackID)
	if err != nil {
		return err
	}
	if owned {
		return dErrors.ErrAlreadyOwned
	}
	return a.Advance(models.StateContentChecked, now)
}

// checkLimit fails with spending_limit_exceeded when amount would take the
// child over its monthly limit. No consent record or no limit means
// unlimited.
func checkLimit(ctx context.Context, ledger *ledgersvc.Service, consent *consentmodels.Record, childID domain.ChildID, amount int64, now time.Time) error {
	if consent == nil || consent.SpendingLimit == nil || amount == 0 {
		return nil
	}
	spent, err := ledger.MonthlySpend(ctx, childID, now)
	if err != nil {
		return err
	}
	if !consent.WithinLimit(spent, amount) {
		return dErrors.New(dErrors.CodeSpendingLimitExceeded, "purchase exceeds monthly spending limit")
	}
	return nil
}

// grantFree commits a free pack without approval or charge.
func (s *Service) grantFree(ctx context.Context, a *models.Attempt) (*models.Attempt, error) {
	if err := s.attempts.Create(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save purchase")
	}
	granted, err := s.commit(ctx, a, "")
	if err != nil {
		return nil, s.commitFailed(ctx, a, err, false)
	}
	if s.metrics != nil {
		s.metrics.IncrementInitiated("granted_free")
	}
	s.notifyCompleted(ctx, granted)
	return granted, nil
}

// persistRejection stores a as rejected with cause's code and returns cause.
func (s *Service) persistRejection(ctx context.Context, a *models.Attempt, cause error) error {
	code := dErrors.CodeOf(cause)
	if err := a.Reject(code, requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "failed to save rejected purchase", "purchase_id", a.ID.String(), "error", err)
	}
	s.recordRejection(ctx, a, cause)
	if s.metrics != nil {
		s.metrics.IncrementInitiated("rejected")
	}
	return cause
}

func (s *Service) recordRejection(ctx context.Context, a *models.Attempt, cause error) {
	code := dErrors.CodeOf(cause)
	if s.metrics != nil {
		s.metrics.IncrementRejection(string(code))
	}
	s.emit(ctx, audit.Event{
		ActorID:   a.ParentID.String(),
		SubjectID: a.ChildID.String(),
		Action:    audit.ActionPurchaseRejected,
		Decision:  string(models.StateRejected),
		Reason:    string(code),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.WarnContext(ctx, "purchase rejected",
		"purchase_id", a.ID.String(),
		"child_id", a.ChildID.String(),
		"reason", string(code),
	)
}

// isRejection reports whether err is a gate outcome rather than an
// infrastructure failure.
func isRejection(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeConsentRequired,
		dErrors.CodeSpendingLimitExceeded,
		dErrors.CodeContentRestricted,
		dErrors.CodeAlreadyOwned,
		dErrors.CodeConflict,
		dErrors.CodeValidation,
		dErrors.CodeApprovalDenied,
		dErrors.CodePaymentFailed,
		dErrors.CodeTokenExpired:
		return true
	}
	return false
}
