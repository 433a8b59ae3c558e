package models

import (
	"time"

	"purchasegate/pkg/domain"
)

type Kind string

const (
	KindSpend  Kind = "spend"
	KindRefund Kind = "refund"
)

func (k Kind) IsValid() bool {
	return k == KindSpend || k == KindRefund
}

// Entry is one append-only ledger line. Refunds carry a negative amount and
// reference the purchase they reverse. (PurchaseID, Kind) is unique.
type Entry struct {
	ID         domain.EntryID
	ChildID    domain.ChildID
	PackID     domain.PackID
	PurchaseID domain.PurchaseID
	Amount     int64 // minor units
	Kind       Kind
	Timestamp  time.Time
	// Sequence is the commit order assigned by the store.
	Sequence int64
}

// Period is a half-open [Start, End) window.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// MonthOf returns the calendar month containing t, in loc.
func MonthOf(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Statement is a child's ledger view for one period.
type Statement struct {
	ChildID domain.ChildID
	Period  Period
	Total   int64
	Entries []*Entry
}
