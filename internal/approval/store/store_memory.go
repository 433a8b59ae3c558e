package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"purchasegate/internal/approval/metrics"
	"purchasegate/internal/approval/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	platformsync "purchasegate/pkg/platform/sync"
)

// InMemoryStore keeps approval requests in memory. Updates on one token are
// serialized by a sharded mutex; the map lock is only held for reads and
// writes of the maps themselves.
type InMemoryStore struct {
	mu        sync.RWMutex
	requests  map[domain.ApprovalToken]*models.Request
	purchases map[domain.PurchaseID]domain.ApprovalToken
	tokens    *platformsync.ShardedMutex
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		requests:  make(map[domain.ApprovalToken]*models.Request),
		purchases: make(map[domain.PurchaseID]domain.ApprovalToken),
		tokens:    platformsync.NewShardedMutex(),
	}
}

func (s *InMemoryStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.Token]; ok {
		return dErrors.New(dErrors.CodeConflict, "approval token already exists")
	}
	if _, ok := s.purchases[req.PurchaseID]; ok {
		return dErrors.New(dErrors.CodeConflict, "approval already requested for purchase")
	}
	s.requests[req.Token] = req.Clone()
	s.purchases[req.PurchaseID] = req.Token
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, token domain.ApprovalToken) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[token]
	if !ok {
		return nil, dErrors.ErrTokenNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, token domain.ApprovalToken, fn UpdateFunc) (*models.Request, error) {
	key := token.String()
	waited, err := s.tokens.LockContext(ctx, key)
	metrics.ObserveShardLockWait(waited.Seconds())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "approval update aborted")
	}
	defer s.tokens.Unlock(key)

	current, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[token]; !ok {
		return nil, dErrors.ErrTokenNotFound
	}
	s.requests[token] = current.Clone()
	return current, nil
}

func (s *InMemoryStore) ListPendingByParent(_ context.Context, parentID domain.ParentID) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Request{}
	for _, r := range s.requests {
		if r.ParentID == parentID && r.Status == models.StatusPending {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListStale(_ context.Context, now time.Time, limit int) ([]domain.ApprovalToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stale := make([]*models.Request, 0)
	for _, r := range s.requests {
		if r.IsStale(now) {
			stale = append(stale, r)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ExpiresAt.Before(stale[j].ExpiresAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]domain.ApprovalToken, len(stale))
	for i, r := range stale {
		out[i] = r.Token
	}
	return out, nil
}

func (s *InMemoryStore) DeleteResolvedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, r := range s.requests {
		if r.Status != models.StatusPending && r.ExpiresAt.Before(cutoff) {
			delete(s.requests, token)
			delete(s.purchases, r.PurchaseID)
			deleted++
		}
	}
	return deleted, nil
}
