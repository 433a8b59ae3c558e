package audit

import (
	"context"
	"slices"
	"time"
)

// Store is the append-only persistence for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// MaxListLimit caps a single page of the trail.
const MaxListLimit = 200

// Filter narrows a trail read to one subject. Results are in append order;
// with a Limit only the most recent events are kept.
type Filter struct {
	SubjectID string
	Actions   []string  // empty matches every action
	Since     time.Time // inclusive, zero means from the beginning
	Limit     int       // 0 means MaxListLimit
}

// BySubject is the unfiltered trail of one subject.
func BySubject(subjectID string) Filter {
	return Filter{SubjectID: subjectID}
}

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

func (f Filter) matches(e Event) bool {
	if e.SubjectID != f.SubjectID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return len(f.Actions) == 0 || slices.Contains(f.Actions, e.Action)
}
