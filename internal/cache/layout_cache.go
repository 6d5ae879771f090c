package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/world"
)

// CachedLayoutRepo держит разобранные раскладки в памяти поверх storage.LayoutRepo.
// Запись и удаление сбрасывают локальную копию и рассылают инвалидацию.
type CachedLayoutRepo struct {
	repo        storage.LayoutRepo
	invalidator Invalidator
	maxEntries  int

	mu      sync.Mutex
	entries map[string]*cacheEntry
	// versions растёт при каждой инвалидации имени; промах кладёт прочитанное
	// в кеш, только если версия не изменилась за время чтения
	versions map[string]uint64

	hits          int64
	misses        int64
	evictions     int64
	invalidations int64
}

type cacheEntry struct {
	records  []world.Record
	meta     storage.LayoutMeta
	lastUsed time.Time
}

// NewCachedLayoutRepo оборачивает repo. invalidator может быть nil.
func NewCachedLayoutRepo(repo storage.LayoutRepo, cfg Config, invalidator Invalidator) (*CachedLayoutRepo, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	c := &CachedLayoutRepo{
		repo:        repo,
		invalidator: invalidator,
		maxEntries:  cfg.MaxEntries,
		entries:     make(map[string]*cacheEntry),
		versions:    make(map[string]uint64),
	}

	if invalidator != nil {
		err := invalidator.SubscribeInvalidations(context.Background(), func(name string) error {
			c.evict(name)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Save пишет в хранилище и инвалидирует кеш
func (c *CachedLayoutRepo) Save(ctx context.Context, name string, records []world.Record) (storage.LayoutMeta, error) {
	meta, err := c.repo.Save(ctx, name, records)
	if err != nil {
		return meta, err
	}
	c.evict(name)
	c.publish(ctx, name)
	return meta, nil
}

// Load отдаёт копию из кеша или читает из хранилища
func (c *CachedLayoutRepo) Load(ctx context.Context, name string) ([]world.Record, storage.LayoutMeta, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		e.lastUsed = time.Now()
		records := append([]world.Record(nil), e.records...)
		meta := e.meta
		c.mu.Unlock()
		atomic.AddInt64(&c.hits, 1)
		return records, meta, nil
	}
	version := c.versions[name]
	c.mu.Unlock()

	atomic.AddInt64(&c.misses, 1)
	records, meta, err := c.repo.Load(ctx, name)
	if err != nil {
		return nil, meta, err
	}

	c.mu.Lock()
	if c.versions[name] != version {
		// раскладку перезаписали или удалили, пока мы читали
		c.mu.Unlock()
		return records, meta, nil
	}
	if _, cached := c.entries[name]; !cached && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[name] = &cacheEntry{
		records:  append([]world.Record(nil), records...),
		meta:     meta,
		lastUsed: time.Now(),
	}
	c.mu.Unlock()
	return records, meta, nil
}

// Delete удаляет раскладку из хранилища и кеша
func (c *CachedLayoutRepo) Delete(ctx context.Context, name string) error {
	err := c.repo.Delete(ctx, name)
	c.evict(name)
	if err != nil {
		return err
	}
	c.publish(ctx, name)
	return nil
}

// List всегда читает хранилище
func (c *CachedLayoutRepo) List(ctx context.Context) ([]storage.LayoutMeta, error) {
	return c.repo.List(ctx)
}

// Close закрывает invalidator и нижележащее хранилище
func (c *CachedLayoutRepo) Close() error {
	if c.invalidator != nil {
		if err := c.invalidator.Close(); err != nil {
			logging.Warn("Layout cache: закрытие invalidator: %v", err)
		}
	}
	return c.repo.Close()
}

// Metrics возвращает текущие метрики кеша
func (c *CachedLayoutRepo) Metrics() Metrics {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	m := Metrics{
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Entries:       entries,
		Evictions:     atomic.LoadInt64(&c.evictions),
		Invalidations: atomic.LoadInt64(&c.invalidations),
	}
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRatio = float64(m.Hits) / float64(total)
	}
	if s, ok := c.invalidator.(interface{ Stats() InvalidatorStats }); ok {
		st := s.Stats()
		m.Invalidator = &st
	}
	return m
}

func (c *CachedLayoutRepo) evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[name]++
	if _, ok := c.entries[name]; ok {
		delete(c.entries, name)
		atomic.AddInt64(&c.invalidations, 1)
	}
}

func (c *CachedLayoutRepo) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for name, e := range c.entries {
		if oldest == "" || e.lastUsed.Before(at) {
			oldest, at = name, e.lastUsed
		}
	}
	if oldest != "" {
		delete(c.entries, oldest)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *CachedLayoutRepo) publish(ctx context.Context, name string) {
	if c.invalidator == nil {
		return
	}
	if err := c.invalidator.PublishInvalidation(ctx, name); err != nil {
		logging.Warn("Layout cache: инвалидация %s не разослана: %v", name, err)
	}
}
