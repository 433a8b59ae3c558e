package models

import (
	"time"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

type State string

const (
	StateInitiated          State = "initiated"
	StateConsentChecked     State = "consent_checked"
	StateSpendChecked       State = "spend_checked"
	StateContentChecked     State = "content_checked"
	StateApprovalPending    State = "approval_pending"
	StateApprovalResolved   State = "approval_resolved"
	StateEntitlementGranted State = "entitlement_granted"
	StateRejected           State = "rejected"
	StateRefunded           State = "refunded"
)

// transitions lists the forward moves. Rejection is allowed from every
// non-terminal state and handled separately.
var transitions = map[State][]State{
	StateInitiated:          {StateConsentChecked},
	StateConsentChecked:     {StateSpendChecked},
	StateSpendChecked:       {StateContentChecked},
	StateContentChecked:     {StateApprovalPending, StateEntitlementGranted},
	StateApprovalPending:    {StateApprovalResolved},
	StateApprovalResolved:   {StateEntitlementGranted},
	StateEntitlementGranted: {StateRefunded},
}

// IsTerminal reports whether no further forward move exists. A granted
// attempt is not terminal because it may still be refunded.
func (s State) IsTerminal() bool {
	return s == StateRejected || s == StateRefunded
}

type Client struct {
	IP        string
	UserAgent string
	Device    string
}

// Attempt is the persisted state of one purchase. It outlives the request
// that created it so approval can finish after a restart.
type Attempt struct {
	ID                 domain.PurchaseID
	FamilyID           domain.FamilyID
	ChildID            domain.ChildID
	ParentID           domain.ParentID
	PackID             domain.PackID
	FamilyWide         bool
	Amount             int64
	Currency           string
	PaymentMethodToken string
	State              State
	RejectReason       dErrors.Code
	ApprovalToken      domain.ApprovalToken
	CreatorShare       int64
	PlatformShare      int64
	ProcessorRef       string
	Client             Client
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	cp := *a
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Advance moves the attempt forward to next.
func (a *Attempt) Advance(next State, now time.Time) error {
	for _, allowed := range transitions[a.State] {
		if allowed == next {
			a.State = next
			a.UpdatedAt = now
			if next == StateEntitlementGranted {
				a.CompletedAt = &now
			}
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation, "purchase cannot move from "+string(a.State)+" to "+string(next))
}

// Reject ends the attempt with reason. Rejecting an attempt that is already
// terminal or granted is an invariant violation.
func (a *Attempt) Reject(reason dErrors.Code, now time.Time) error {
	if a.State.IsTerminal() || a.State == StateEntitlementGranted {
		return dErrors.New(dErrors.CodeInvariantViolation, "purchase already finished as "+string(a.State))
	}
	a.State = StateRejected
	a.RejectReason = reason
	a.UpdatedAt = now
	return nil
}

// RejectionError rebuilds the typed error a rejected attempt ended with.
func (a *Attempt) RejectionError() error {
	if a.State != StateRejected {
		return nil
	}
	return dErrors.New(a.RejectReason, "purchase rejected: "+string(a.RejectReason))
}

// Request starts a purchase. ExpectedPrice is the price the client showed;
// a mismatch with the catalog fails with conflict.
type Request struct {
	ChildID            domain.ChildID
	PackID             domain.PackID
	ParentID           domain.ParentID
	ExpectedPrice      *int64
	Currency           string
	PaymentMethodToken string
	FamilyWide         bool
}
