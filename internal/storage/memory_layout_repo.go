package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/annel0/voxel-editor/internal/world"
)

type memoryEntry struct {
	data []byte
	meta LayoutMeta
}

// MemoryLayoutRepo хранит раскладки в памяти процесса.
// Используется по умолчанию и в тестах.
type MemoryLayoutRepo struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
}

// NewMemoryLayoutRepo создаёт пустое хранилище
func NewMemoryLayoutRepo() *MemoryLayoutRepo {
	return &MemoryLayoutRepo{entries: make(map[string]memoryEntry)}
}

// Save реализует LayoutRepo.Save
func (m *MemoryLayoutRepo) Save(ctx context.Context, name string, records []world.Record) (LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return LayoutMeta{}, err
	}
	data, meta, err := encodeLayout(name, records)
	if err != nil {
		return LayoutMeta{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return LayoutMeta{}, ErrNotReady
	}
	m.entries[name] = memoryEntry{data: data, meta: meta}
	return meta, nil
}

// Load реализует LayoutRepo.Load
func (m *MemoryLayoutRepo) Load(ctx context.Context, name string) ([]world.Record, LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, LayoutMeta{}, err
	}
	if err := ValidateName(name); err != nil {
		return nil, LayoutMeta{}, err
	}

	m.mu.RLock()
	entry, ok := m.entries[name]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, LayoutMeta{}, ErrNotReady
	}
	if !ok {
		return nil, LayoutMeta{}, ErrLayoutNotFound
	}

	records, err := decodeLayout(entry.data)
	if err != nil {
		return nil, LayoutMeta{}, err
	}
	return records, entry.meta, nil
}

// Delete реализует LayoutRepo.Delete
func (m *MemoryLayoutRepo) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotReady
	}
	if _, ok := m.entries[name]; !ok {
		return ErrLayoutNotFound
	}
	delete(m.entries, name)
	return nil
}

// List реализует LayoutRepo.List
func (m *MemoryLayoutRepo) List(ctx context.Context) ([]LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrNotReady
	}

	metas := make([]LayoutMeta, 0, len(m.entries))
	for _, entry := range m.entries {
		metas = append(metas, entry.meta)
	}
	sortMetas(metas)
	return metas, nil
}

// Close реализует LayoutRepo.Close
func (m *MemoryLayoutRepo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = make(map[string]memoryEntry)
	return nil
}

func sortMetas(metas []LayoutMeta) {
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
}
