package service

import (
	"context"
	"errors"
	"log/slog"

	"purchasegate/internal/audit"
	"purchasegate/internal/consent/metrics"
	"purchasegate/internal/consent/models"
	"purchasegate/internal/consent/store"
	"purchasegate/internal/family"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

// FamilyAuthorizer answers whether a parent may act for a child, and
// supplies the child profile for age checks.
type FamilyAuthorizer interface {
	IsParentOf(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) (bool, error)
	Child(ctx context.Context, childID domain.ChildID) (*family.Child, error)
}

// StoreTx provides the per-child transactional boundary for consent writes.
// Implementations wrap a database transaction or, in-memory, a sharded lock
// with undo.
type StoreTx interface {
	RunInTx(ctx context.Context, childID domain.ChildID, fn store.TxFunc) error
}

type Option func(*Service)

// Service is the consent registry. Reads go straight to the store; every
// write supersedes the active record and appends an audit entry in the same
// transaction.
type Service struct {
	store   store.Store
	tx      StoreTx
	family  FamilyAuthorizer
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() domain.ConsentID
}

func New(st store.Store, tx StoreTx, fam FamilyAuthorizer, opts ...Option) *Service {
	svc := &Service{
		store:  st,
		tx:     tx,
		family: fam,
		logger: slog.Default(),
		newID:  domain.NewConsentID,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
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

// Get returns the child's effective consent record.
func (s *Service) Get(ctx context.Context, childID domain.ChildID) (*models.Record, error) {
	if childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "child ID required")
	}
	record, err := s.store.FindActive(ctx, childID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	return record, nil
}

// Authorize fails with forbidden unless parentID belongs to childID's family.
func (s *Service) Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error {
	if parentID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing parent context")
	}
	if childID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "child ID required")
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

// Update writes a new effective record for the child. The prior record, if
// any, is stamped withdrawn and linked through Supersedes. A failed audit
// append fails the whole update.
func (s *Service) Update(ctx context.Context, childID domain.ChildID, parentID domain.ParentID, changes models.Changes) (*models.Record, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, parentID, childID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *models.Record
	err := s.tx.RunInTx(ctx, childID, func(ctx context.Context, st store.Store, trail audit.Store) error {
		prior, err := st.FindActive(ctx, childID)
		if err != nil && !errors.Is(err, dErrors.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
		}
		if err != nil {
			prior = nil
		}

		next, err := models.NewEffective(s.newID(), childID, parentID, prior, changes, now)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := st.MarkWithdrawn(ctx, prior.ID, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to supersede consent")
			}
		}
		if err := st.Insert(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent")
		}

		if err := trail.Append(ctx, audit.Event{
			Timestamp: now,
			ActorID:   parentID.String(),
			SubjectID: childID.String(),
			Action:    audit.ActionConsentUpdated,
			Decision:  decisionFor(next),
			Reason:    models.AuditReasonParentInitiated,
			RequestID: requestcontext.RequestID(ctx),
			Changes:   models.Diff(prior, next),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent audit")
		}
		updated = next
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, "consent_update_failed", childID, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUpdates(decisionFor(updated))
	}
	s.logger.InfoContext(ctx, "consent updated",
		"child_id", childID.String(),
		"parent_id", parentID.String(),
		"consent_id", updated.ID.String(),
		"purchases_allowed", updated.PurchasesAllowed,
	)
	return updated, nil
}

// Withdraw stamps the active record withdrawn without a successor. Purchases
// for an under-13 child are refused from then on.
func (s *Service) Withdraw(ctx context.Context, childID domain.ChildID, parentID domain.ParentID) (*models.Record, error) {
	if err := s.Authorize(ctx, parentID, childID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var withdrawn *models.Record
	err := s.tx.RunInTx(ctx, childID, func(ctx context.Context, st store.Store, trail audit.Store) error {
		active, err := st.FindActive(ctx, childID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
		}
		if err := st.MarkWithdrawn(ctx, active.ID, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw consent")
		}
		if err := trail.Append(ctx, audit.Event{
			Timestamp: now,
			ActorID:   parentID.String(),
			SubjectID: childID.String(),
			Action:    audit.ActionConsentWithdrawn,
			Decision:  models.AuditDecisionWithdrawn,
			Reason:    models.AuditReasonParentInitiated,
			RequestID: requestcontext.RequestID(ctx),
			Changes:   models.Diff(active, nil),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent audit")
		}
		active.WithdrawnAt = &now
		withdrawn = active
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, "consent_withdraw_failed", childID, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementWithdrawals()
	}
	s.logger.InfoContext(ctx, "consent withdrawn",
		"child_id", childID.String(),
		"parent_id", parentID.String(),
		"consent_id", withdrawn.ID.String(),
	)
	return withdrawn, nil
}

// History lists every consent version for the child, oldest first.
func (s *Service) History(ctx context.Context, childID domain.ChildID, parentID domain.ParentID) ([]*models.Record, error) {
	if err := s.Authorize(ctx, parentID, childID); err != nil {
		return nil, err
	}
	records, err := s.store.ListByChild(ctx, childID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return records, nil
}

// Status reports COPPA applicability and whether the consent gate currently
// lets purchases through.
func (s *Service) Status(ctx context.Context, childID domain.ChildID) (*models.Status, error) {
	child, err := s.family.Child(ctx, childID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load child")
	}
	now := requestcontext.Now(ctx)
	status := &models.Status{
		ChildID:         childID,
		Age:             child.Age(now),
		COPPAApplicable: child.COPPAApplicable(now),
	}

	record, err := s.store.FindActive(ctx, childID)
	switch {
	case errors.Is(err, dErrors.ErrNotFound):
		return status, nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	given := record.ConsentGivenAt
	status.HasConsent = true
	status.PurchasesAllowed = record.PurchasesAllowed
	status.SpendingLimit = record.SpendingLimit
	status.ConsentGivenAt = &given
	return status, nil
}

func (s *Service) recordFailure(ctx context.Context, msg string, childID domain.ChildID, err error) {
	code := dErrors.CodeOf(err)
	if s.metrics != nil {
		s.metrics.IncrementFailures(string(code))
	}
	level := slog.LevelWarn
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, msg,
		"child_id", childID.String(),
		"code", string(code),
		"error", err,
	)
}

func decisionFor(r *models.Record) string {
	if r.PurchasesAllowed {
		return models.AuditDecisionGranted
	}
	return models.AuditDecisionRestricted
}
