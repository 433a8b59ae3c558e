package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"purchasegate/internal/approval/metrics"
	"purchasegate/internal/approval/models"
	"purchasegate/internal/approval/store"
	"purchasegate/internal/notification"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
	"purchasegate/pkg/secrets"
)

const (
	defaultTTL          = 15 * time.Minute
	defaultRedeemWindow = 24 * time.Hour
	defaultRetention    = 30 * 24 * time.Hour
	defaultSweepBatch   = 500
)

// Notifier delivers parent notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, parentID domain.ParentID, event notification.Event, payload notification.Payload)
}

// LinkSigner builds signed deep links for approval notifications.
type LinkSigner interface {
	URL(token domain.ApprovalToken, parentID domain.ParentID, issuedAt, expiresAt time.Time) (string, error)
}

type Option func(*Service)

// Service issues approval tokens and enforces their lifecycle: TTL-bounded
// resolution by the addressed parent and single-use redemption.
type Service struct {
	store        store.Store
	notifier     Notifier
	links        LinkSigner
	ttl          time.Duration
	redeemWindow time.Duration
	retention    time.Duration
	sweepBatch   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
	newToken     func() (domain.ApprovalToken, error)
}

func New(st store.Store, opts ...Option) *Service {
	svc := &Service{
		store:        st,
		notifier:     noopNotifier{},
		ttl:          defaultTTL,
		redeemWindow: defaultRedeemWindow,
		retention:    defaultRetention,
		sweepBatch:   defaultSweepBatch,
		logger:       slog.Default(),
		newToken:     generateToken,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithTTL sets how long a request stays resolvable.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithRedeemWindow bounds the time between approval and redemption.
func WithRedeemWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.redeemWindow = d
		}
	}
}

// WithRetention sets how long resolved requests are kept after expiry.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithSweepBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLinkSigner(l LinkSigner) Option {
	return func(s *Service) {
		s.links = l
	}
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// TTL is the configured request lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// generateToken returns 256 bits of randomness, base64url encoded.
func generateToken() (domain.ApprovalToken, error) {
	s, err := secrets.Generate(secrets.DefaultBytes)
	if err != nil {
		return "", err
	}
	return domain.ApprovalToken(s), nil
}

// RequestApproval persists a pending request and notifies the parent. It
// returns as soon as the request is stored; delivery happens in the background.
func (s *Service) RequestApproval(ctx context.Context, in models.Input) (*models.Request, error) {
	if in.PurchaseID.IsNil() || in.ChildID.IsNil() || in.PackID.IsNil() || in.ParentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "purchase, child, pack and parent are required")
	}
	if in.Amount < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount must not be negative")
	}

	token, err := s.newToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue approval token")
	}
	now := requestcontext.Now(ctx)
	req := &models.Request{
		Token:      token,
		PurchaseID: in.PurchaseID,
		ChildID:    in.ChildID,
		PackID:     in.PackID,
		ParentID:   in.ParentID,
		Amount:     in.Amount,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
		Status:     models.StatusPending,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store approval request")
	}
	if s.metrics != nil {
		s.metrics.IncrementRequested()
	}

	payload := notification.Payload{
		PurchaseID: req.PurchaseID.String(),
		ChildID:    req.ChildID.String(),
		PackID:     req.PackID.String(),
		PackTitle:  in.PackTitle,
		Amount:     req.Amount,
		Currency:   in.Currency,
		ExpiresAt:  &req.ExpiresAt,
	}
	if s.links != nil {
		link, err := s.links.URL(req.Token, req.ParentID, req.CreatedAt, req.ExpiresAt)
		if err != nil {
			// The parent can still resolve from the in-app inbox.
			s.logger.WarnContext(ctx, "approval deep link not signed", "error", err, "purchase_id", req.PurchaseID.String())
		} else {
			payload.DeepLink = link
		}
	}
	s.notifier.Notify(ctx, req.ParentID, notification.EventApprovalRequested, payload)

	s.logger.InfoContext(ctx, "approval requested",
		"purchase_id", req.PurchaseID.String(),
		"child_id", req.ChildID.String(),
		"parent_id", req.ParentID.String(),
		"expires_at", req.ExpiresAt,
	)
	return req.Clone(), nil
}

// Resolve records the parent's decision. A request past its TTL is moved to
// expired and ErrTokenExpired is returned.
func (s *Service) Resolve(ctx context.Context, token domain.ApprovalToken, parentID domain.ParentID, decision models.Decision) (*models.Request, error) {
	if token.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "approval token required")
	}
	if parentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing parent context")
	}
	if _, err := models.ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var expired bool
	updated, err := s.store.Update(ctx, token, func(r *models.Request) error {
		if r.ParentID != parentID {
			return dErrors.New(dErrors.CodeForbidden, "approval addressed to another parent")
		}
		var err error
		expired, err = r.Resolve(decision, now)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approval")
	}
	if expired {
		if s.metrics != nil {
			s.metrics.IncrementResolved(string(models.StatusExpired))
		}
		return nil, dErrors.ErrTokenExpired
	}

	if s.metrics != nil {
		s.metrics.IncrementResolved(string(updated.Status))
		s.metrics.ObserveDecisionLatency(now.Sub(updated.CreatedAt).Seconds())
	}
	s.logger.InfoContext(ctx, "approval resolved",
		"purchase_id", updated.PurchaseID.String(),
		"status", updated.Status,
	)
	return updated, nil
}

// Redeem consumes an approved request exactly once.
func (s *Service) Redeem(ctx context.Context, token domain.ApprovalToken) (*models.GrantTicket, error) {
	if token.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "approval token required")
	}

	now := requestcontext.Now(ctx)
	var expired bool
	updated, err := s.store.Update(ctx, token, func(r *models.Request) error {
		var err error
		expired, err = r.Redeem(now, s.redeemWindow)
		return err
	})
	switch {
	case err != nil:
		s.observeRedemption(string(dErrors.CodeOf(err)))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem approval")
	case expired:
		s.observeRedemption(string(dErrors.CodeTokenExpired))
		return nil, dErrors.ErrTokenExpired
	}
	s.observeRedemption("ok")
	return updated.Ticket(), nil
}

func (s *Service) observeRedemption(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRedemption(outcome)
	}
}

// Get returns the request behind a token.
func (s *Service) Get(ctx context.Context, token domain.ApprovalToken) (*models.Request, error) {
	req, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read approval")
	}
	return req, nil
}

// Pending is the parent's inbox: requests still awaiting a decision.
// Requests already past their TTL are left out even before the sweep runs.
func (s *Service) Pending(ctx context.Context, parentID domain.ParentID) ([]*models.Request, error) {
	if parentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing parent context")
	}
	all, err := s.store.ListPendingByParent(ctx, parentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approvals")
	}
	now := requestcontext.Now(ctx)
	out := make([]*models.Request, 0, len(all))
	for _, r := range all {
		if !r.IsStale(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

var errNotStale = errors.New("approval no longer stale")

// ExpireStale moves pending requests past their TTL to expired and tells
// each parent the request was retracted. It returns the expired requests.
func (s *Service) ExpireStale(ctx context.Context) ([]*models.Request, error) {
	now := requestcontext.Now(ctx)
	tokens, err := s.store.ListStale(ctx, now, s.sweepBatch)
	if err != nil {
		return nil, fmt.Errorf("list stale approvals: %w", err)
	}

	var (
		expired []*models.Request
		errs    []error
	)
	for _, token := range tokens {
		r, err := s.store.Update(ctx, token, func(r *models.Request) error {
			if !r.Expire(now) {
				return errNotStale
			}
			return nil
		})
		switch {
		case errors.Is(err, errNotStale), errors.Is(err, dErrors.ErrTokenNotFound):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("expire %s: %w", token, err))
			continue
		}
		expired = append(expired, r)
		s.notifier.Notify(ctx, r.ParentID, notification.EventApprovalExpired, notification.Payload{
			PurchaseID: r.PurchaseID.String(),
			ChildID:    r.ChildID.String(),
			PackID:     r.PackID.String(),
			Amount:     r.Amount,
			Reason:     string(dErrors.CodeTokenExpired),
		})
	}
	if s.metrics != nil {
		s.metrics.IncrementSwept("expired", len(expired))
	}
	return expired, errors.Join(errs...)
}

// Purge deletes resolved requests older than the retention period.
func (s *Service) Purge(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.retention)
	n, err := s.store.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge approvals: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncrementSwept("purged", n)
	}
	return n, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.ParentID, notification.Event, notification.Payload) {}
