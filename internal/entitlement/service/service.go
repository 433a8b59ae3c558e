package service

import (
	"context"
	"log/slog"

	"purchasegate/internal/entitlement/metrics"
	"purchasegate/internal/entitlement/models"
	"purchasegate/internal/entitlement/store"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

type Option func(*Service)

// Service records which packs a family or child owns.
type Service struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(st store.Store, opts ...Option) *Service {
	svc := &Service{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore returns a copy of the service writing through st.
func (s *Service) WithStore(st store.Store) *Service {
	cp := *s
	cp.store = st
	return &cp
}

// Grant records ownership of packID. A nil childID grants the whole family.
func (s *Service) Grant(ctx context.Context, familyID domain.FamilyID, childID *domain.ChildID, packID domain.PackID, purchaseID domain.PurchaseID) (*models.Record, error) {
	switch {
	case familyID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "family ID required")
	case childID != nil && childID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "child ID must not be nil when set")
	case packID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "pack ID required")
	case purchaseID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "purchase ID required")
	}

	rec := &models.Record{
		ID:          domain.NewEntitlementID(),
		FamilyID:    familyID,
		ChildID:     childID,
		PackID:      packID,
		PurchaseID:  purchaseID,
		PurchasedAt: requestcontext.Now(ctx),
		Status:      models.StatusActive,
	}
	scope := scopeLabel(rec)
	if err := s.store.Insert(ctx, rec); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementGrant(string(dErrors.CodeOf(err)), scope)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant entitlement")
	}
	if s.metrics != nil {
		s.metrics.IncrementGrant("granted", scope)
	}
	s.logger.InfoContext(ctx, "entitlement granted",
		"entitlement_id", rec.ID.String(),
		"family_id", familyID.String(),
		"pack_id", packID.String(),
		"purchase_id", purchaseID.String(),
		"scope", scope,
	)
	return rec, nil
}

// HasEntitlement reports whether the child can use packID, either through
// its own grant or a family-wide one.
func (s *Service) HasEntitlement(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID, packID domain.PackID) (bool, error) {
	if familyID.IsNil() || childID.IsNil() || packID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "family, child and pack IDs required")
	}
	owned, err := s.store.HasActive(ctx, familyID, childID, packID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check entitlement")
	}
	if s.metrics != nil {
		s.metrics.IncrementCheck(owned)
	}
	return owned, nil
}

// Refund marks the grant made by purchaseID refunded. The record stays for
// history.
func (s *Service) Refund(ctx context.Context, purchaseID domain.PurchaseID) (*models.Record, error) {
	if purchaseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "purchase ID required")
	}
	rec, err := s.store.FindByPurchase(ctx, purchaseID)
	if err != nil {
		s.refundOutcome(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find entitlement")
	}
	if !rec.IsActive() {
		err := dErrors.New(dErrors.CodeNotFound, "no active entitlement for purchase")
		s.refundOutcome(err)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.store.MarkRefunded(ctx, rec.ID, now); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			err = dErrors.New(dErrors.CodeNotFound, "no active entitlement for purchase")
		}
		s.refundOutcome(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to refund entitlement")
	}
	rec.Status = models.StatusRefunded
	rec.RefundedAt = &now
	s.refundOutcome(nil)
	s.logger.InfoContext(ctx, "entitlement refunded",
		"entitlement_id", rec.ID.String(),
		"purchase_id", purchaseID.String(),
	)
	return rec, nil
}

// Library lists the packs the child can see: its own grants plus family-wide
// ones, refunded records included.
func (s *Service) Library(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID) ([]*models.Record, error) {
	if familyID.IsNil() || childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "family and child IDs required")
	}
	recs, err := s.store.ListForChild(ctx, familyID, childID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list library")
	}
	return recs, nil
}

// RecentActivityLimit caps the activity listed by LibraryStats.
const RecentActivityLimit = 10

// LibraryStats summarizes the child's library: counts by status and scope
// and the latest purchases and refunds.
func (s *Service) LibraryStats(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID) (*models.LibraryStats, error) {
	recs, err := s.Library(ctx, familyID, childID)
	if err != nil {
		return nil, err
	}
	stats := models.Summarize(recs, RecentActivityLimit)
	return &stats, nil
}

func (s *Service) refundOutcome(err error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.IncrementRefund("refunded")
		return
	}
	s.metrics.IncrementRefund(string(dErrors.CodeOf(err)))
}

func scopeLabel(rec *models.Record) string {
	if rec.IsFamilyWide() {
		return "family"
	}
	return "child"
}
