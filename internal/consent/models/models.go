package models

import (
	"slices"
	"time"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	s "purchasegate/pkg/platform/strings"
)

// Record is one effective version of a child's COPPA consent.
//
// # Supersession Invariant
//
// A child has at most one record with WithdrawnAt == nil. Updates never edit a
// record in place: the active record is stamped withdrawn and a new record
// pointing back at it through Supersedes becomes effective. Records are never
// deleted, so the full history stays available for audit.
type Record struct {
	ID                     domain.ConsentID
	ChildID                domain.ChildID
	ParentID               domain.ParentID // parent who gave this version
	PurchasesAllowed       bool
	AnalyticsAllowed       bool
	PersonalizationAllowed bool
	SpendingLimit          *int64   // minor units per calendar month; nil = no limit
	AllowedCategories      []string // normalized set; empty = unrestricted
	ConsentGivenAt         time.Time
	WithdrawnAt            *time.Time
	Supersedes             *domain.ConsentID
}

// IsActive reports whether this is the child's effective record.
func (r *Record) IsActive() bool {
	return r.WithdrawnAt == nil
}

// AllowsCategory reports whether a pack in category may be bought.
// An empty allow-set means no restriction.
func (r *Record) AllowsCategory(category string) bool {
	if len(r.AllowedCategories) == 0 {
		return true
	}
	return s.SetContains(r.AllowedCategories, category)
}

// WithinLimit reports whether spending amount on top of spent keeps the child
// at or under the monthly limit.
func (r *Record) WithinLimit(spent, amount int64) bool {
	if r.SpendingLimit == nil {
		return true
	}
	return spent+amount <= *r.SpendingLimit
}

// Clone returns a deep copy so stores never share slices or pointers with
// callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.SpendingLimit != nil {
		v := *r.SpendingLimit
		cp.SpendingLimit = &v
	}
	if r.WithdrawnAt != nil {
		v := *r.WithdrawnAt
		cp.WithdrawnAt = &v
	}
	if r.Supersedes != nil {
		v := *r.Supersedes
		cp.Supersedes = &v
	}
	cp.AllowedCategories = slices.Clone(r.AllowedCategories)
	if cp.AllowedCategories == nil {
		cp.AllowedCategories = []string{}
	}
	return &cp
}

// NewEffective builds the record that replaces prior (which may be nil) once
// changes are applied. Fields absent from changes carry over from prior; a
// child's first record starts from everything disallowed.
func NewEffective(
	consentID domain.ConsentID,
	childID domain.ChildID,
	parentID domain.ParentID,
	prior *Record,
	changes Changes,
	now time.Time,
) (*Record, error) {
	if consentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent ID required")
	}
	if childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "child ID required")
	}
	if parentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "parent ID required")
	}
	if now.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent time required")
	}

	next := &Record{AllowedCategories: []string{}}
	if prior != nil {
		if prior.ChildID != childID {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "prior record belongs to another child")
		}
		next = prior.Clone()
		priorID := prior.ID
		next.Supersedes = &priorID
	}
	next.ID = consentID
	next.ChildID = childID
	next.ParentID = parentID
	next.ConsentGivenAt = now
	next.WithdrawnAt = nil
	changes.applyTo(next)
	return next, nil
}
