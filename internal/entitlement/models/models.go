package models

import (
	"time"

	"purchasegate/pkg/domain"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusRefunded Status = "refunded"
)

// Record grants a family (ChildID nil) or one child access to a pack.
// Records are never deleted once committed; a refund flips the status.
type Record struct {
	ID          domain.EntitlementID
	FamilyID    domain.FamilyID
	ChildID     *domain.ChildID
	PackID      domain.PackID
	PurchaseID  domain.PurchaseID
	PurchasedAt time.Time
	Status      Status
	RefundedAt  *time.Time
}

func (r *Record) IsActive() bool { return r.Status == StatusActive }

// IsFamilyWide reports whether every child in the family owns the pack.
func (r *Record) IsFamilyWide() bool { return r.ChildID == nil }

// Covers reports whether an active record grants childID access.
func (r *Record) Covers(familyID domain.FamilyID, childID domain.ChildID, packID domain.PackID) bool {
	if !r.IsActive() || r.FamilyID != familyID || r.PackID != packID {
		return false
	}
	return r.IsFamilyWide() || *r.ChildID == childID
}

// SameScope reports whether two records target the same owner and pack,
// which is what the one-active-record rule is keyed on.
func (r *Record) SameScope(o *Record) bool {
	if r.FamilyID != o.FamilyID || r.PackID != o.PackID {
		return false
	}
	if r.IsFamilyWide() || o.IsFamilyWide() {
		return r.IsFamilyWide() && o.IsFamilyWide()
	}
	return *r.ChildID == *o.ChildID
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ChildID != nil {
		id := *r.ChildID
		c.ChildID = &id
	}
	if r.RefundedAt != nil {
		t := *r.RefundedAt
		c.RefundedAt = &t
	}
	return &c
}
