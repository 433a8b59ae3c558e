package service

import (
	"context"
	"log/slog"
	"time"

	"purchasegate/internal/ledger/metrics"
	"purchasegate/internal/ledger/models"
	"purchasegate/internal/ledger/store"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

const defaultRefundWindow = 24 * time.Hour

type Option func(*Service)

// Service is the spending ledger. Entries are only ever appended; a refund
// is a negative entry, never an edit.
type Service struct {
	store        store.Store
	location     *time.Location
	refundWindow time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func New(st store.Store, opts ...Option) *Service {
	svc := &Service{
		store:        st,
		location:     time.UTC,
		refundWindow: defaultRefundWindow,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithLocation sets the time zone whose calendar months bound the spending
// limit.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRefundWindow configures how long after a spend a refund is accepted.
// Non-positive values keep the 24h default.
func WithRefundWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refundWindow = d
		}
	}
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

// WithStore returns a copy of the service writing through st. The purchase
// flow uses it to bind the ledger to its commit transaction.
func (s *Service) WithStore(st store.Store) *Service {
	cp := *s
	cp.store = st
	return &cp
}

// Location reports the ledger's calendar time zone.
func (s *Service) Location() *time.Location {
	return s.location
}

func (s *Service) RefundWindow() time.Duration {
	return s.refundWindow
}

// MonthlySpend sums the child's entries in the calendar month containing
// asOf. Refunds in that month reduce the total.
func (s *Service) MonthlySpend(ctx context.Context, childID domain.ChildID, asOf time.Time) (int64, error) {
	if childID.IsNil() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "child ID required")
	}
	month := models.MonthOf(asOf, s.location)
	total, err := s.store.SumBetween(ctx, childID, month.Start, month.End)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum monthly spend")
	}
	return total, nil
}

// LockChild serializes limit checks and spends for one child inside the
// current transaction.
func (s *Service) LockChild(ctx context.Context, childID domain.ChildID) error {
	if err := s.store.LockChild(ctx, childID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock child ledger")
	}
	return nil
}

// RecordSpend appends a spend entry. A second call for the same purchase
// fails with DuplicatePurchase, which makes upstream retries idempotent.
func (s *Service) RecordSpend(ctx context.Context, childID domain.ChildID, amount int64, packID domain.PackID, purchaseID domain.PurchaseID) (*models.Entry, error) {
	switch {
	case childID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "child ID required")
	case packID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "pack ID required")
	case purchaseID.IsNil():
		return nil, dErrors.New(dErrors.CodeBadRequest, "purchase ID required")
	case amount <= 0:
		return nil, dErrors.New(dErrors.CodeValidation, "spend amount must be positive")
	}

	entry := &models.Entry{
		ID:         domain.NewEntryID(),
		ChildID:    childID,
		PackID:     packID,
		PurchaseID: purchaseID,
		Amount:     amount,
		Kind:       models.KindSpend,
		Timestamp:  requestcontext.Now(ctx),
	}
	if err := s.store.Append(ctx, entry); err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicatePurchase) && s.metrics != nil {
			s.metrics.IncrementDuplicateSpend()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record spend")
	}
	if s.metrics != nil {
		s.metrics.ObserveEntry(string(models.KindSpend), amount)
	}
	s.logger.InfoContext(ctx, "spend recorded",
		"child_id", childID.String(),
		"purchase_id", purchaseID.String(),
		"amount", amount,
		"sequence", entry.Sequence,
	)
	return entry, nil
}

// RecordRefund appends the negative entry reversing purchaseID's spend. The
// refund is dated now, so it reduces the month it is issued in.
func (s *Service) RecordRefund(ctx context.Context, purchaseID domain.PurchaseID) (*models.Entry, error) {
	if purchaseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "purchase ID required")
	}
	spend, err := s.store.FindByPurchase(ctx, purchaseID, models.KindSpend)
	if err != nil {
		s.refundRejected(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find original spend")
	}

	now := requestcontext.Now(ctx)
	if now.Sub(spend.Timestamp) > s.refundWindow {
		err := dErrors.New(dErrors.CodeRefundWindowExpired, "refund window has elapsed")
		s.refundRejected(err)
		return nil, err
	}

	refund := &models.Entry{
		ID:         domain.NewEntryID(),
		ChildID:    spend.ChildID,
		PackID:     spend.PackID,
		PurchaseID: purchaseID,
		Amount:     -spend.Amount,
		Kind:       models.KindRefund,
		Timestamp:  now,
	}
	if err := s.store.Append(ctx, refund); err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicatePurchase) {
			err = dErrors.New(dErrors.CodeConflict, "purchase already refunded")
		}
		s.refundRejected(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record refund")
	}
	if s.metrics != nil {
		s.metrics.ObserveEntry(string(models.KindRefund), refund.Amount)
	}
	s.logger.InfoContext(ctx, "refund recorded",
		"child_id", spend.ChildID.String(),
		"purchase_id", purchaseID.String(),
		"amount", refund.Amount,
	)
	return refund, nil
}

// Statement lists the child's entries for the calendar month containing
// asOf, with their total.
func (s *Service) Statement(ctx context.Context, childID domain.ChildID, asOf time.Time) (*models.Statement, error) {
	month := models.MonthOf(asOf, s.location)
	entries, err := s.Entries(ctx, childID, month.Start, month.End)
	if err != nil {
		return nil, err
	}
	stmt := &models.Statement{ChildID: childID, Period: month, Entries: entries}
	for _, e := range entries {
		stmt.Total += e.Amount
	}
	return stmt, nil
}

// Entries lists the child's entries in [from, to) in commit order.
func (s *Service) Entries(ctx context.Context, childID domain.ChildID, from, to time.Time) ([]*models.Entry, error) {
	if childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "child ID required")
	}
	if !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "from must be before to")
	}
	entries, err := s.store.ListBetween(ctx, childID, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger entries")
	}
	return entries, nil
}

func (s *Service) refundRejected(err error) {
	if s.metrics != nil {
		s.metrics.IncrementRefundRejected(string(dErrors.CodeOf(err)))
	}
}
