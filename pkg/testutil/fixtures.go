package testutil

import (
	"time"

	"github.com/google/uuid"

	"purchasegate/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	FamilyID1 domain.FamilyID
	FamilyID2 domain.FamilyID
	ParentID1 domain.ParentID
	ParentID2 domain.ParentID
	ChildID1  domain.ChildID
	ChildID2  domain.ChildID
	PackID1   domain.PackID
	PackID2   domain.PackID
}{
	FamilyID1: domain.FamilyID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	FamilyID2: domain.FamilyID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
	ParentID1: domain.ParentID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	ParentID2: domain.ParentID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	ChildID1:  domain.ChildID(uuid.MustParse("cccc0000-0000-0000-0000-000000000001")),
	ChildID2:  domain.ChildID(uuid.MustParse("cccc0000-0000-0000-0000-000000000002")),
	PackID1:   domain.PackID(uuid.MustParse("bbbb0000-0000-0000-0000-000000000001")),
	PackID2:   domain.PackID(uuid.MustParse("bbbb0000-0000-0000-0000-000000000002")),
}

// FixedNow is the reference instant most tests pin the clock to: mid-month,
// mid-day UTC, so month boundaries are well clear unless a test moves it.
var FixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// BirthDateForAge returns a birth date that makes someone exactly age years
// old (plus one month) at now.
func BirthDateForAge(age int, now time.Time) time.Time {
	y, m, d := now.AddDate(-age, -1, 0).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Clock is a settable time source for components that take func() time.Time.
type Clock struct {
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *Clock) Set(t time.Time) { c.now = t }

// Ptr returns a pointer to v. Handy for optional fields in fixtures.
func Ptr[T any](v T) *T {
	return &v
}
