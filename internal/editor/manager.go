package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/google/uuid"
)

// SinkFactory выдаёт приёмник буфера для новой сессии (например, поток WebSocket)
type SinkFactory func(sessionID string) render.Sink

// Manager хранит активные сессии и их циклы
type Manager struct {
	mu       sync.RWMutex
	loops    map[string]*Loop
	cfg      Config
	events   Publisher
	metrics  *Metrics
	sinks    SinkFactory
	release  func(sessionID string)
	log      *logging.Logger
	maxCount int
}

// ManagerOption настраивает менеджер
type ManagerOption func(*Manager)

// WithManagerPublisher задаёт шину для всех сессий
func WithManagerPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.events = p }
}

// WithManagerMetrics задаёт метрики для всех сессий
func WithManagerMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithSinkFactory задаёт фабрику приёмников
func WithSinkFactory(f SinkFactory) ManagerOption {
	return func(m *Manager) { m.sinks = f }
}

// WithSinkRelease задаёт освобождение приёмника, выданного фабрикой для
// сессии, которую так и не удалось создать
func WithSinkRelease(f func(sessionID string)) ManagerOption {
	return func(m *Manager) { m.release = f }
}

// WithMaxSessions ограничивает число одновременных сессий (0 — без ограничения)
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.maxCount = n }
}

// NewManager создаёт менеджер с базовой конфигурацией сессий
func NewManager(cfg Config, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		loops: make(map[string]*Loop),
		cfg:   cfg,
		log:   logging.GetEditorLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config базовая конфигурация сессий
func (m *Manager) Config() Config {
	return m.cfg
}

// Create создаёт и запускает сессию с новым UUID.
// Приёмник запрашивается у фабрики только после проверки лимита.
func (m *Manager) Create() (*Loop, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxCount > 0 && len(m.loops) >= m.maxCount {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.maxCount)
	}

	opts := []Option{WithMetrics(m.metrics), WithLogger(m.log)}
	if m.events != nil {
		opts = append(opts, WithPublisher(m.events))
	}
	if m.sinks != nil {
		opts = append(opts, WithSink(m.sinks(id)))
	}

	s, err := NewSession(id, m.cfg, opts...)
	if err != nil {
		if m.sinks != nil && m.release != nil {
			m.release(id)
		}
		return nil, err
	}
	loop := NewLoop(s, m.cfg.FrameInterval)
	loop.Start()
	m.loops[id] = loop

	m.log.Info("🧊 Session %s created", id)
	return loop, nil
}

// Get возвращает цикл сессии
func (m *Manager) Get(id string) (*Loop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loop, ok := m.loops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return loop, nil
}

// Do выполняет fn в цикле сессии id
func (m *Manager) Do(ctx context.Context, id string, fn func(*Session) error) error {
	loop, err := m.Get(id)
	if err != nil {
		return err
	}
	return loop.Do(ctx, fn)
}

// List возвращает отсортированные ID сессий
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.loops))
	for id := range m.loops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count количество сессий
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.loops)
}

// Delete останавливает и удаляет сессию
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	loop, ok := m.loops[id]
	delete(m.loops, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	loop.Stop()
	loop.session.Close()
	m.log.Info("Session %s closed", id)
	return nil
}

// Close останавливает все сессии
func (m *Manager) Close() {
	for _, id := range m.List() {
		_ = m.Delete(id)
	}
}

// QuerySession выполняет fn в цикле сессии id и возвращает её результат
func QuerySession[T any](ctx context.Context, m *Manager, id string, fn func(*Session) (T, error)) (T, error) {
	loop, err := m.Get(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return Query(ctx, loop, fn)
}
