package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"purchasegate/internal/entitlement/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// InMemoryStore keeps entitlements in memory. The ownership check and the
// insert happen under one lock, so duplicate grants cannot race.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[domain.EntitlementID]*models.Record
	byPurchase map[domain.PurchaseID]domain.EntitlementID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records:    make(map[domain.EntitlementID]*models.Record),
		byPurchase: make(map[domain.PurchaseID]domain.EntitlementID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPurchase[rec.PurchaseID]; ok {
		return dErrors.New(dErrors.CodeDuplicatePurchase, "purchase already granted an entitlement")
	}
	if rec.IsActive() {
		for _, existing := range s.records {
			if existing.IsActive() && existing.SameScope(rec) {
				return dErrors.ErrAlreadyOwned
			}
		}
	}
	s.records[rec.ID] = rec.Clone()
	s.byPurchase[rec.PurchaseID] = rec.ID
	return nil
}

func (s *InMemoryStore) HasActive(_ context.Context, familyID domain.FamilyID, childID domain.ChildID, packID domain.PackID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Covers(familyID, childID, packID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) FindByPurchase(_ context.Context, purchaseID domain.PurchaseID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPurchase[purchaseID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "entitlement not found")
	}
	return s.records[id].Clone(), nil
}

func (s *InMemoryStore) MarkRefunded(_ context.Context, id domain.EntitlementID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "entitlement not found")
	}
	if !r.IsActive() {
		return dErrors.New(dErrors.CodeConflict, "entitlement already refunded")
	}
	r.Status = models.StatusRefunded
	r.RefundedAt = &at
	return nil
}

func (s *InMemoryStore) ListForChild(_ context.Context, familyID domain.FamilyID, childID domain.ChildID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Record{}
	for _, r := range s.records {
		if r.FamilyID != familyID {
			continue
		}
		if r.IsFamilyWide() || *r.ChildID == childID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.Before(out[j].PurchasedAt) })
	return out, nil
}

// Remove deletes the grant made by purchaseID. It exists only to undo an
// uncommitted insert in the in-memory purchase transaction.
func (s *InMemoryStore) Remove(purchaseID domain.PurchaseID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPurchase[purchaseID]; ok {
		delete(s.records, id)
		delete(s.byPurchase, purchaseID)
	}
}

// Reactivate undoes an uncommitted MarkRefunded.
func (s *InMemoryStore) Reactivate(id domain.EntitlementID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.Status = models.StatusActive
		r.RefundedAt = nil
	}
}
