package audit

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore keeps the whole trail in append order. Subjects index into it
// so a child's history read does not scan other families.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	bySubject map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySubject: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = int64(len(s.events) + 1)
	event.Changes = append([]FieldChange(nil), event.Changes...)
	s.events = append(s.events, event)
	s.bySubject[event.SubjectID] = append(s.bySubject[event.SubjectID], len(s.events)-1)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.bySubject[filter.SubjectID]
	limit := filter.limit()
	out := make([]Event, 0, min(len(idx), limit))
	// Walk backwards so the limit keeps the newest, then restore order.
	for i := len(idx) - 1; i >= 0 && len(out) < limit; i-- {
		if e := s.events[idx[i]]; filter.matches(e) {
			e.Changes = append([]FieldChange(nil), e.Changes...)
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out, nil
}

// Len is the number of events across every subject.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
