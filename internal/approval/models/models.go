// Package models holds the approval request and its state machine. Stores
// apply the transitions below inside their atomic update primitive, so the
// rules live in one place whatever the backend.
package models

import (
	"time"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusExpired
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionDeny:
		return Decision(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or deny")
}

// Request is a pending or resolved parental approval for one purchase.
type Request struct {
	Token      domain.ApprovalToken
	PurchaseID domain.PurchaseID
	ChildID    domain.ChildID
	PackID     domain.PackID
	ParentID   domain.ParentID
	Amount     int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Status     Status
	ResolvedAt *time.Time
	RedeemedAt *time.Time
}

// Input describes the purchase a parent is asked to approve.
type Input struct {
	PurchaseID domain.PurchaseID
	ChildID    domain.ChildID
	PackID     domain.PackID
	ParentID   domain.ParentID
	Amount     int64
	PackTitle  string
	Currency   string
}

// GrantTicket is the proof of a single successful redemption. Only one ticket
// is ever issued per token.
type GrantTicket struct {
	Token      domain.ApprovalToken
	PurchaseID domain.PurchaseID
	ChildID    domain.ChildID
	PackID     domain.PackID
	ParentID   domain.ParentID
	Amount     int64
	RedeemedAt time.Time
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		c.ResolvedAt = &t
	}
	if r.RedeemedAt != nil {
		t := *r.RedeemedAt
		c.RedeemedAt = &t
	}
	return &c
}

// IsStale reports whether a pending request has outlived its TTL.
func (r *Request) IsStale(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ExpiresAt)
}

// Expire moves a stale pending request to expired. It reports whether the
// request changed.
func (r *Request) Expire(now time.Time) bool {
	if !r.IsStale(now) {
		return false
	}
	r.Status = StatusExpired
	r.ResolvedAt = &now
	return true
}

// Resolve applies the parent's decision. A stale request is expired instead
// and the caller reports ErrTokenExpired once the expiry is persisted, which
// is why the expired case returns (true, nil) rather than an error.
//
// Past ExpiresAt every request answers ErrTokenExpired; an approved or denied
// one keeps its status.
func (r *Request) Resolve(decision Decision, now time.Time) (expired bool, err error) {
	switch {
	case r.Status == StatusExpired:
		return false, dErrors.ErrTokenExpired
	case r.Expire(now):
		return true, nil
	case now.After(r.ExpiresAt):
		return false, dErrors.ErrTokenExpired
	case r.Status.IsTerminal():
		return false, dErrors.ErrTokenAlreadyResolved
	}
	switch decision {
	case DecisionApprove:
		r.Status = StatusApproved
	case DecisionDeny:
		r.Status = StatusDenied
	default:
		return false, dErrors.New(dErrors.CodeInvalidInput, "unknown decision")
	}
	r.ResolvedAt = &now
	return false, nil
}

// Redeem consumes an approved request. The redeem window is measured from
// the approval, not from creation.
func (r *Request) Redeem(now time.Time, window time.Duration) (expired bool, err error) {
	switch r.Status {
	case StatusExpired:
		return false, dErrors.ErrTokenExpired
	case StatusPending:
		if r.Expire(now) {
			return true, nil
		}
		return false, dErrors.ErrNotApproved
	case StatusDenied:
		return false, dErrors.ErrNotApproved
	}
	if r.RedeemedAt != nil {
		return false, dErrors.ErrAlreadyRedeemed
	}
	if r.ResolvedAt != nil && window > 0 && now.After(r.ResolvedAt.Add(window)) {
		return false, dErrors.ErrTokenExpired
	}
	r.RedeemedAt = &now
	return false, nil
}

func (r *Request) Ticket() *GrantTicket {
	t := &GrantTicket{
		Token:      r.Token,
		PurchaseID: r.PurchaseID,
		ChildID:    r.ChildID,
		PackID:     r.PackID,
		ParentID:   r.ParentID,
		Amount:     r.Amount,
	}
	if r.RedeemedAt != nil {
		t.RedeemedAt = *r.RedeemedAt
	}
	return t
}
