package store

import (
	"context"
	"sort"
	"sync"

	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

type InMemoryStore struct {
	mu       sync.Mutex
	attempts map[domain.PurchaseID]*models.Attempt
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{attempts: make(map[domain.PurchaseID]*models.Attempt)}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "purchase attempt already exists")
	}
	s.attempts[a.ID] = a.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.PurchaseID) (*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "purchase not found")
	}
	return a.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, id domain.PurchaseID, fn UpdateFunc) (*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "purchase not found")
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.attempts[id] = working.Clone()
	return working, nil
}

func (s *InMemoryStore) ListByChild(_ context.Context, childID domain.ChildID, limit int) ([]*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Attempt{}
	for _, a := range s.attempts {
		if a.ChildID == childID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// restore puts back a snapshot taken before an uncommitted update.
func (s *InMemoryStore) restore(a *models.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a.Clone()
}
