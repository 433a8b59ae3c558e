package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

const defaultCacheTTL = time.Minute

// Store is the read side used by the purchase flow.
type Store interface {
	GetPack(ctx context.Context, packID domain.PackID) (*Pack, error)
}

type snapshot struct {
	version  int
	packs    map[domain.PackID]*Pack
	loadedAt time.Time
}

// FileCatalog serves packs from a YAML file, re-reading it once the cached
// snapshot is older than the TTL. Concurrent misses share one read. A failed
// reload keeps serving the previous snapshot.
type FileCatalog struct {
	path            string
	ttl             time.Duration
	defaultCurrency string
	now             func() time.Time
	logger          *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
}

type Option func(*FileCatalog)

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *FileCatalog) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithDefaultCurrency fills packs that omit a currency.
func WithDefaultCurrency(code string) Option {
	return func(c *FileCatalog) {
		if code != "" {
			c.defaultCurrency = strings.ToUpper(code)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *FileCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *FileCatalog) {
		if now != nil {
			c.now = now
		}
	}
}

// NewFileCatalog loads path eagerly so a broken catalog fails startup.
func NewFileCatalog(path string, opts ...Option) (*FileCatalog, error) {
	c := &FileCatalog{
		path:            path,
		ttl:             defaultCacheTTL,
		defaultCurrency: "USD",
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	c.snap = snap
	return c, nil
}

func (c *FileCatalog) GetPack(ctx context.Context, packID domain.PackID) (*Pack, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := snap.packs[packID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "pack not found")
	}
	cp := *p
	return &cp, nil
}

// Version reports the version of the snapshot being served.
func (c *FileCatalog) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.version
}

func (c *FileCatalog) current(ctx context.Context) (*snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if c.now().Sub(snap.loadedAt) < c.ttl {
		cacheLookups.WithLabelValues("hit").Inc()
		return snap, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do("reload", func() (any, error) {
		fresh, err := c.load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snap = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		reloads.WithLabelValues("failed").Inc()
		c.logger.WarnContext(ctx, "catalog reload failed, serving previous snapshot",
			"path", c.path,
			"version", snap.version,
			"error", err,
		)
		return snap, nil
	}
	reloads.WithLabelValues("ok").Inc()
	return v.(*snapshot), nil
}

func (c *FileCatalog) load() (*snapshot, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", c.path, err)
	}
	return parse(raw, c.defaultCurrency, c.now())
}

func parse(raw []byte, defaultCurrency string, now time.Time) (*snapshot, error) {
	var f packFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	snap := &snapshot{version: f.Version, packs: make(map[domain.PackID]*Pack, len(f.Packs)), loadedAt: now}
	for i, e := range f.Packs {
		id, err := domain.ParsePackID(e.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if _, dup := snap.packs[id]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate pack %s", i, e.ID)
		}
		if e.Price < 0 {
			return nil, fmt.Errorf("catalog entry %d: negative price", i)
		}
		if e.MaxAge > 0 && e.MinAge > e.MaxAge {
			return nil, fmt.Errorf("catalog entry %d: age_min above age_max", i)
		}
		currency := strings.ToUpper(e.Currency)
		if currency == "" {
			currency = defaultCurrency
		}
		snap.packs[id] = &Pack{
			ID:          id,
			Title:       e.Title,
			Category:    strings.ToLower(e.Category),
			PackType:    e.PackType,
			MinAge:      e.MinAge,
			MaxAge:      e.MaxAge,
			Price:       e.Price,
			Currency:    currency,
			CreatorID:   e.CreatorID,
			FamilyShare: e.FamilyShare,
		}
	}
	return snap, nil
}

// StaticCatalog is a fixed in-memory catalog for tests and local seeding.
type StaticCatalog struct {
	packs map[domain.PackID]*Pack
}

func NewStatic(packs ...*Pack) *StaticCatalog {
	m := make(map[domain.PackID]*Pack, len(packs))
	for _, p := range packs {
		m[p.ID] = p
	}
	return &StaticCatalog{packs: m}
}

func (c *StaticCatalog) GetPack(_ context.Context, packID domain.PackID) (*Pack, error) {
	p, ok := c.packs[packID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "pack not found")
	}
	cp := *p
	return &cp, nil
}
