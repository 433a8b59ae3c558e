// Package sweep runs the approval maintenance loop: expiring pending requests
// whose TTL elapsed and purging resolved ones past retention. Expiry is also
// enforced lazily on resolve and redeem, so the sweep is an optimization for
// parents' inboxes and for the purchase attempts waiting on those requests.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"purchasegate/internal/approval/models"
	"purchasegate/pkg/requestcontext"
)

// Approvals exposes the maintenance operations of the approval service.
type Approvals interface {
	ExpireStale(ctx context.Context) ([]*models.Request, error)
	Purge(ctx context.Context) (int, error)
}

// ExpiryListener is told about every request the sweep expired, so the
// purchase attempt waiting on it can be closed out.
type ExpiryListener interface {
	ApprovalExpired(ctx context.Context, req *models.Request) error
}

// Result summarizes one sweep run.
type Result struct {
	Expired          int
	Purged           int
	ListenerFailures int
}

// Service periodically sweeps approval requests.
type Service struct {
	approvals Approvals
	listeners []ExpiryListener
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListener registers a listener for expired requests.
func WithListener(l ExpiryListener) Option {
	return func(s *Service) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithClock overrides the time source for each run.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(approvals Approvals, opts ...Option) (*Service, error) {
	if approvals == nil {
		return nil, fmt.Errorf("approvals is required")
	}
	svc := &Service{
		approvals: approvals,
		interval:  time.Minute,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "approval sweep failed", "error", err)
				continue
			}
			if res.Expired > 0 || res.Purged > 0 {
				s.logger.InfoContext(ctx, "approval sweep",
					"expired", res.Expired,
					"purged", res.Purged,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep. Expiry, listener notification and purge
// errors are aggregated; one failing step does not skip the others.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	ctx = requestcontext.WithTime(ctx, s.now())
	var res Result
	var errs []error

	expired, err := s.approvals.ExpireStale(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire stale approvals: %w", err))
	}
	res.Expired = len(expired)

	for _, req := range expired {
		for _, l := range s.listeners {
			if err := l.ApprovalExpired(ctx, req); err != nil {
				res.ListenerFailures++
				errs = append(errs, fmt.Errorf("notify expiry of %s: %w", req.PurchaseID, err))
			}
		}
	}

	purged, err := s.approvals.Purge(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge approvals: %w", err))
	} else {
		res.Purged = purged
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
