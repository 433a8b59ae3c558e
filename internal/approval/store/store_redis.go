package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"purchasegate/internal/approval/metrics"
	"purchasegate/internal/approval/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

const (
	requestKeyPrefix       = "approval:"
	purchaseKeyPrefix      = "approval_purchase:"
	parentPendingKeyPrefix = "approval_parent_pending:"
	// pendingByExpiryKey is a sorted set of pending tokens scored by expiry
	// (unix seconds), so the sweep can range over stale ones.
	pendingByExpiryKey = "approval_pending_by_expiry"

	// maxWatchRetries bounds optimistic retries when another writer touched
	// the token key between WATCH and EXEC.
	maxWatchRetries = 10

	defaultRetention = 30 * 24 * time.Hour
)

// requestJSON is the JSON-serializable representation of a Request.
type requestJSON struct {
	Token      string `json:"token"`
	PurchaseID string `json:"purchase_id"`
	ChildID    string `json:"child_id"`
	PackID     string `json:"pack_id"`
	ParentID   string `json:"parent_id"`
	Amount     int64  `json:"amount"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`            // Unix nano
	ExpiresAt  int64  `json:"expires_at"`            // Unix nano
	ResolvedAt *int64 `json:"resolved_at,omitempty"` // Unix nano
	RedeemedAt *int64 `json:"redeemed_at,omitempty"` // Unix nano
}

func requestToJSON(r *models.Request) *requestJSON {
	j := &requestJSON{
		Token:      r.Token.String(),
		PurchaseID: r.PurchaseID.String(),
		ChildID:    r.ChildID.String(),
		PackID:     r.PackID.String(),
		ParentID:   r.ParentID.String(),
		Amount:     r.Amount,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.UnixNano(),
		ExpiresAt:  r.ExpiresAt.UnixNano(),
	}
	if r.ResolvedAt != nil {
		ts := r.ResolvedAt.UnixNano()
		j.ResolvedAt = &ts
	}
	if r.RedeemedAt != nil {
		ts := r.RedeemedAt.UnixNano()
		j.RedeemedAt = &ts
	}
	return j
}

func requestFromJSON(j *requestJSON) (*models.Request, error) {
	ids := make([]uuid.UUID, 4)
	for i, raw := range []string{j.PurchaseID, j.ChildID, j.PackID, j.ParentID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse approval id field %d: %w", i, err)
		}
		ids[i] = id
	}
	r := &models.Request{
		Token:      domain.ApprovalToken(j.Token),
		PurchaseID: domain.PurchaseID(ids[0]),
		ChildID:    domain.ChildID(ids[1]),
		PackID:     domain.PackID(ids[2]),
		ParentID:   domain.ParentID(ids[3]),
		Amount:     j.Amount,
		Status:     models.Status(j.Status),
		CreatedAt:  time.Unix(0, j.CreatedAt).UTC(),
		ExpiresAt:  time.Unix(0, j.ExpiresAt).UTC(),
	}
	if j.ResolvedAt != nil {
		t := time.Unix(0, *j.ResolvedAt).UTC()
		r.ResolvedAt = &t
	}
	if j.RedeemedAt != nil {
		t := time.Unix(0, *j.RedeemedAt).UTC()
		r.RedeemedAt = &t
	}
	return r, nil
}

// RedisStore persists approval requests in Redis for deployments that share
// token state across instances. Update uses WATCH/MULTI on the token key.
// Resolved requests are purged by key TTL (expiry plus retention) rather than
// by DeleteResolvedBefore.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithRetention sets how long a request outlives its expiry before Redis
// evicts it.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: defaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requestKey(token domain.ApprovalToken) string { return requestKeyPrefix + token.String() }

func parentPendingKey(parentID domain.ParentID) string {
	return parentPendingKeyPrefix + parentID.String()
}

func (s *RedisStore) ttlFor(r *models.Request) time.Duration {
	ttl := time.Until(r.ExpiresAt.Add(s.retention))
	if ttl <= 0 {
		return time.Minute
	}
	return ttl
}

func (s *RedisStore) Create(ctx context.Context, req *models.Request) error {
	data, err := json.Marshal(requestToJSON(req))
	if err != nil {
		return fmt.Errorf("marshal approval request: %w", err)
	}
	ttl := s.ttlFor(req)

	claimed, err := s.client.SetNX(ctx, purchaseKeyPrefix+req.PurchaseID.String(), req.Token.String(), ttl).Result()
	if err != nil {
		return fmt.Errorf("claim purchase approval: %w", err)
	}
	if !claimed {
		return dErrors.New(dErrors.CodeConflict, "approval already requested for purchase")
	}

	created, err := s.client.SetNX(ctx, requestKey(req.Token), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	if !created {
		s.client.Del(ctx, purchaseKeyPrefix+req.PurchaseID.String())
		return dErrors.New(dErrors.CodeConflict, "approval token already exists")
	}

	if req.Status == models.StatusPending {
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, pendingByExpiryKey, redis.Z{Score: float64(req.ExpiresAt.Unix()), Member: req.Token.String()})
			pipe.SAdd(ctx, parentPendingKey(req.ParentID), req.Token.String())
			pipe.Expire(ctx, parentPendingKey(req.ParentID), ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("index approval request: %w", err)
		}
	}
	return nil
}

func decodeRequest(data string) (*models.Request, error) {
	var j requestJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal approval request: %w", err)
	}
	return requestFromJSON(&j)
}

func (s *RedisStore) Get(ctx context.Context, token domain.ApprovalToken) (*models.Request, error) {
	data, err := s.client.Get(ctx, requestKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, dErrors.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get approval request: %w", err)
	}
	return decodeRequest(data)
}

// Update atomically validates and mutates a request under optimistic lock.
func (s *RedisStore) Update(ctx context.Context, token domain.ApprovalToken, fn UpdateFunc) (*models.Request, error) {
	key := requestKey(token)
	var result *models.Request

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return dErrors.ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("get approval request for update: %w", err)
		}
		current, err := decodeRequest(data)
		if err != nil {
			return err
		}
		wasPending := current.Status == models.StatusPending

		if err := fn(current); err != nil {
			return err // domain error from callback, passed through unchanged
		}

		newData, err := json.Marshal(requestToJSON(current))
		if err != nil {
			return fmt.Errorf("marshal approval request: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, redis.KeepTTL)
			if wasPending && current.Status != models.StatusPending {
				pipe.ZRem(ctx, pendingByExpiryKey, token.String())
				pipe.SRem(ctx, parentPendingKey(current.ParentID), token.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = current
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			metrics.IncrementRedisRetry()
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "approval request contended, retry")
}

func (s *RedisStore) ListPendingByParent(ctx context.Context, parentID domain.ParentID) ([]*models.Request, error) {
	tokens, err := s.client.SMembers(ctx, parentPendingKey(parentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending approval tokens: %w", err)
	}
	out := []*models.Request{}
	if len(tokens) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(tokens))
	for i, t := range tokens {
		cmds[i] = pipe.Get(ctx, requestKeyPrefix+t)
	}
	// Missing keys surface per command as redis.Nil and are skipped below.
	_, _ = pipe.Exec(ctx)

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		r, err := decodeRequest(data)
		if err != nil || r.Status != models.StatusPending {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) ListStale(ctx context.Context, now time.Time, limit int) ([]domain.ApprovalToken, error) {
	// Scores are whole seconds; the exclusive bound keeps a token whose expiry
	// shares the current second out of the result, matching "strictly after".
	members, err := s.client.ZRangeByScore(ctx, pendingByExpiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list stale approvals: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*redis.IntCmd, len(members))
	for i, m := range members {
		exists[i] = pipe.Exists(ctx, requestKeyPrefix+m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("check stale approvals: %w", err)
	}

	out := make([]domain.ApprovalToken, 0, len(members))
	var evicted []any
	for i, m := range members {
		if exists[i].Val() == 0 {
			evicted = append(evicted, m)
			continue
		}
		out = append(out, domain.ApprovalToken(m))
	}
	if len(evicted) > 0 {
		if err := s.client.ZRem(ctx, pendingByExpiryKey, evicted...).Err(); err != nil {
			return nil, fmt.Errorf("prune evicted approvals: %w", err)
		}
	}
	return out, nil
}

func (s *RedisStore) DeleteResolvedBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}
