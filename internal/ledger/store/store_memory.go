package store

import (
	"context"
	"sync"
	"time"

	"purchasegate/internal/ledger/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

type purchaseKey struct {
	purchaseID domain.PurchaseID
	kind       models.Kind
}

// InMemoryStore keeps entries in commit order.
type InMemoryStore struct {
	mu         sync.RWMutex
	entries    []*models.Entry
	byPurchase map[purchaseKey]*models.Entry
	sequence   int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byPurchase: make(map[purchaseKey]*models.Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := purchaseKey{entry.PurchaseID, entry.Kind}
	if _, exists := s.byPurchase[key]; exists {
		return dErrors.New(dErrors.CodeDuplicatePurchase, "ledger entry already recorded for purchase")
	}
	s.sequence++
	entry.Sequence = s.sequence
	cp := *entry
	s.entries = append(s.entries, &cp)
	s.byPurchase[key] = &cp
	return nil
}

func (s *InMemoryStore) SumBetween(_ context.Context, childID domain.ChildID, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, e := range s.entries {
		if e.ChildID == childID && !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			total += e.Amount
		}
	}
	return total, nil
}

func (s *InMemoryStore) ListBetween(_ context.Context, childID domain.ChildID, from, to time.Time) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Entry{}
	for _, e := range s.entries {
		if e.ChildID == childID && !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindByPurchase(_ context.Context, purchaseID domain.PurchaseID, kind models.Kind) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byPurchase[purchaseKey{purchaseID, kind}]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "ledger entry not found")
	}
	cp := *e
	return &cp, nil
}

// LockChild is a no-op: in-memory callers hold the per-child shard lock for
// the whole commit.
func (s *InMemoryStore) LockChild(context.Context, domain.ChildID) error {
	return nil
}

// Remove deletes the entry for (purchaseID, kind). It exists only to undo an
// uncommitted append in the in-memory purchase transaction; the ledger API
// itself never deletes.
func (s *InMemoryStore) Remove(purchaseID domain.PurchaseID, kind models.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := purchaseKey{purchaseID, kind}
	e, ok := s.byPurchase[key]
	if !ok {
		return
	}
	delete(s.byPurchase, key)
	for i, x := range s.entries {
		if x == e {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			break
		}
	}
}
