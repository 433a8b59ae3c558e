// Package service is the purchase authorization orchestrator. A purchase
// runs in two legs: Initiate walks the consent, spend and content gates and
// parks the attempt on a parental approval; Complete, called after the
// parent approved, redeems the approval, charges the payment platform and
// commits the entitlement and ledger spend together.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	approvalmodels "purchasegate/internal/approval/models"
	"purchasegate/internal/audit"
	"purchasegate/internal/catalog"
	consentmodels "purchasegate/internal/consent/models"
	entsvc "purchasegate/internal/entitlement/service"
	"purchasegate/internal/family"
	ledgersvc "purchasegate/internal/ledger/service"
	"purchasegate/internal/notification"
	"purchasegate/internal/payment"
	"purchasegate/internal/platform/tracer"
	"purchasegate/internal/purchase/metrics"
	"purchasegate/internal/purchase/models"
	"purchasegate/internal/purchase/store"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// ConsentReader returns a child's effective consent record, or not_found.
type ConsentReader interface {
	Get(ctx context.Context, childID domain.ChildID) (*consentmodels.Record, error)
}

type FamilyDirectory interface {
	IsParentOf(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) (bool, error)
	Child(ctx context.Context, childID domain.ChildID) (*family.Child, error)
}

type Approvals interface {
	RequestApproval(ctx context.Context, in approvalmodels.Input) (*approvalmodels.Request, error)
	Resolve(ctx context.Context, token domain.ApprovalToken, parentID domain.ParentID, decision approvalmodels.Decision) (*approvalmodels.Request, error)
	Redeem(ctx context.Context, token domain.ApprovalToken) (*approvalmodels.GrantTicket, error)
	Get(ctx context.Context, token domain.ApprovalToken) (*approvalmodels.Request, error)
}

type Notifier interface {
	Notify(ctx context.Context, parentID domain.ParentID, event notification.Event, payload notification.Payload)
}

// TxRunner opens the per-child transactional boundary a commit runs in.
type TxRunner interface {
	RunInTx(ctx context.Context, childID domain.ChildID, fn store.TxFunc) error
}

// AuditPublisher records purchase transitions outside the commit
// transaction.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Deps are the collaborators the orchestrator cannot run without.
type Deps struct {
	Attempts     store.Store
	Tx           TxRunner
	Consent      ConsentReader
	Family       FamilyDirectory
	Catalog      catalog.Store
	Approvals    Approvals
	Ledger       *ledgersvc.Service
	Entitlements *entsvc.Service
	Payments     payment.Platform
}

type Option func(*Service)

type Service struct {
	attempts     store.Store
	tx           TxRunner
	consent      ConsentReader
	family       FamilyDirectory
	catalog      catalog.Store
	approvals    Approvals
	ledger       *ledgersvc.Service
	entitlements *entsvc.Service
	payments     payment.Platform

	notifier      Notifier
	auditor       AuditPublisher
	tracer        tracer.Tracer
	creatorShare  decimal.Decimal
	settleTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

var defaultCreatorShare = decimal.RequireFromString("0.75")

const defaultSettleTimeout = 30 * time.Second

func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Attempts == nil, deps.Tx == nil:
		return nil, dErrors.New(dErrors.CodeInternal, "purchase store and tx runner required")
	case deps.Consent == nil, deps.Family == nil, deps.Catalog == nil:
		return nil, dErrors.New(dErrors.CodeInternal, "consent, family and catalog required")
	case deps.Approvals == nil, deps.Ledger == nil, deps.Entitlements == nil, deps.Payments == nil:
		return nil, dErrors.New(dErrors.CodeInternal, "approvals, ledger, entitlements and payments required")
	}
	svc := &Service{
		attempts:      deps.Attempts,
		tx:            deps.Tx,
		consent:       deps.Consent,
		family:        deps.Family,
		catalog:       deps.Catalog,
		approvals:     deps.Approvals,
		ledger:        deps.Ledger,
		entitlements:  deps.Entitlements,
		payments:      deps.Payments,
		notifier:      noopNotifier{},
		tracer:        tracer.NewNoop(),
		creatorShare:  defaultCreatorShare,
		settleTimeout: defaultSettleTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithCreatorShare sets the fraction of each sale credited to the pack's
// creator. Values outside [0, 1] are ignored.
func WithCreatorShare(share decimal.Decimal) Option {
	return func(s *Service) {
		if share.GreaterThanOrEqual(decimal.Zero) && share.LessThanOrEqual(decimal.NewFromInt(1)) {
			s.creatorShare = share
		}
	}
}

// WithSettleTimeout bounds the part of Complete that runs after the approval
// is redeemed. It is not tied to the caller's context.
func WithSettleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.settleTimeout = d
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

// Get returns the attempt.
func (s *Service) Get(ctx context.Context, purchaseID domain.PurchaseID) (*models.Attempt, error) {
	if purchaseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "purchase ID required")
	}
	a, err := s.attempts.Get(ctx, purchaseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load purchase")
	}
	return a, nil
}

// Authorize fails with forbidden unless parentID belongs to childID's
// family.
func (s *Service) Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error {
	if parentID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing parent context")
	}
	ok, err := s.family.IsParentOf(ctx, parentID, childID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check family membership")
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "parent has no authority over child")
	}
	return nil
}

// History lists the child's most recent attempts, newest first.
func (s *Service) History(ctx context.Context, childID domain.ChildID, limit int) ([]*models.Attempt, error) {
	if childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "child ID required")
	}
	out, err := s.attempts.ListByChild(ctx, childID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list purchases")
	}
	return out, nil
}

// split divides amount between creator and platform. The creator share is
// rounded down so the platform absorbs the remainder.
func (s *Service) split(amount int64) (creator, platform int64) {
	creator = decimal.NewFromInt(amount).Mul(s.creatorShare).Floor().IntPart()
	return creator, amount - creator
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit purchase audit event", "action", event.Action, "error", err)
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.ParentID, notification.Event, notification.Payload) {}
