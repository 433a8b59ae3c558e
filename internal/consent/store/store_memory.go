package store

import (
	"context"
	"sync"
	"time"

	"purchasegate/internal/consent/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// InMemoryStore stores consent records in memory. Records are kept per child
// in insertion order; the map mutex only guards the maps, callers serialize
// per-child read-modify-write through InMemoryTx.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.ConsentID]*models.Record
	byChild map[domain.ChildID][]domain.ConsentID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[domain.ConsentID]*models.Record),
		byChild: make(map[domain.ChildID][]domain.ConsentID),
	}
}

func (s *InMemoryStore) FindActive(_ context.Context, childID domain.ChildID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.activeLocked(childID); r != nil {
		return r.Clone(), nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no active consent")
}

func (s *InMemoryStore) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "consent record already exists")
	}
	if record.IsActive() && s.activeLocked(record.ChildID) != nil {
		return dErrors.New(dErrors.CodeConflict, "child already has an active consent")
	}
	s.records[record.ID] = record.Clone()
	s.byChild[record.ChildID] = append(s.byChild[record.ChildID], record.ID)
	return nil
}

func (s *InMemoryStore) MarkWithdrawn(_ context.Context, consentID domain.ConsentID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[consentID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "consent not found")
	}
	if r.WithdrawnAt != nil {
		return dErrors.New(dErrors.CodeConflict, "consent already withdrawn")
	}
	r.WithdrawnAt = &at
	return nil
}

func (s *InMemoryStore) ListByChild(_ context.Context, childID domain.ChildID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byChild[childID]
	out := make([]*models.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// CountActive returns the number of records with no withdrawal stamp for the
// child. Anything above one is a broken invariant.
func (s *InMemoryStore) CountActive(childID domain.ChildID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.byChild[childID] {
		if s.records[id].IsActive() {
			n++
		}
	}
	return n
}

func (s *InMemoryStore) activeLocked(childID domain.ChildID) *models.Record {
	for _, id := range s.byChild[childID] {
		if r := s.records[id]; r.IsActive() {
			return r
		}
	}
	return nil
}

// remove and reopen undo Insert and MarkWithdrawn for InMemoryTx.
func (s *InMemoryStore) remove(consentID domain.ConsentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[consentID]
	if !ok {
		return
	}
	delete(s.records, consentID)
	ids := s.byChild[r.ChildID]
	for i, id := range ids {
		if id == consentID {
			s.byChild[r.ChildID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

func (s *InMemoryStore) reopen(consentID domain.ConsentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[consentID]; ok {
		r.WithdrawnAt = nil
	}
}
