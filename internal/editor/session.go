// Package editor содержит сессию воксельного редактора: резолвер размещения,
// инструмент выделения области и однопоточный цикл кадров, владеющий сессией.
package editor

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
)

// Session состояние одной сессии редактора. Не потокобезопасна:
// все вызовы идут из Loop, владеющего сессией.
type Session struct {
	id      string
	cfg     Config
	bounds  grid.Bounds
	store   *world.VoxelStore
	buffer  *render.InstanceBuffer
	caster  picking.Caster
	camera  picking.Camera
	palette world.Palette

	colorIndex int
	focused    bool
	pointer    vec.Vec2Float
	state      TargetState
	candidate  grid.Cell

	lastShadow ShadowView
	shadowSent bool

	drag *selectionDrag

	events  Publisher
	metrics *Metrics
	log     *logging.Logger
}

// Option настраивает сессию
type Option func(*Session)

// WithSink задаёт приёмник изменений инстанс-буфера
func WithSink(sink render.Sink) Option {
	return func(s *Session) { s.buffer.SetSink(sink) }
}

// WithCaster заменяет кастер лучей
func WithCaster(c picking.Caster) Option {
	return func(s *Session) { s.caster = c }
}

// WithPublisher задаёт шину событий
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.events = p }
}

// WithMetrics задаёт метрики
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession создаёт пустую сессию с фокусом и указателем в центре экрана
func NewSession(id string, cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	s := &Session{
		id:      id,
		cfg:     cfg,
		bounds:  grid.Bounds{GridSize: cfg.GridSize},
		store:   world.NewVoxelStore(),
		buffer:  render.NewInstanceBuffer(cfg.Buffer, nil),
		caster:  picking.NewBoxCaster(),
		camera:  cfg.Camera,
		palette: append(world.Palette(nil), cfg.Palette...),
		focused: true,
		log:     logging.GetEditorLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.sessionOpened()
	if cfg.InitialVoxel {
		s.seedInitialVoxel()
	}
	return s, nil
}

// seedInitialVoxel ставит стартовый воксель, если буфер вмещает хотя бы один
func (s *Session) seedInitialVoxel() {
	if len(s.palette) == 0 || s.buffer.CanInsert() != nil {
		return
	}
	var origin grid.Cell
	color := s.palette[rand.IntN(len(s.palette))]
	s.store.Place(origin, color)
	if _, err := s.buffer.Insert(origin, color); err != nil {
		s.store.Remove(origin)
		return
	}
	s.metrics.place()
}

// ID идентификатор сессии
func (s *Session) ID() string { return s.id }

// Store хранилище вокселей сессии
func (s *Session) Store() *world.VoxelStore { return s.store }

// Buffer инстанс-буфер сессии
func (s *Session) Buffer() *render.InstanceBuffer { return s.buffer }

// Camera текущая камера
func (s *Session) Camera() picking.Camera { return s.camera }

// Palette палитра сессии
func (s *Session) Palette() world.Palette { return s.palette }

// State текущее состояние резолвера
func (s *Session) State() TargetState { return s.state }

// Candidate ячейка-кандидат и признак её наличия
func (s *Session) Candidate() (grid.Cell, bool) {
	return s.candidate, s.state != NoTarget
}

// CurrentColor цвет, которым будет размещён следующий воксель
func (s *Session) CurrentColor() world.Color {
	return s.palette.At(s.colorIndex)
}

// ShadowView состояние превью-куба
type ShadowView struct {
	Visible  bool          `json:"visible"`
	Position vec.Vec3Float `json:"position"`
	Color    world.Color   `json:"color"`
}

// StateView снимок состояния сессии для API
type StateView struct {
	ID         string        `json:"id"`
	State      string        `json:"state"`
	Shadow     ShadowView    `json:"shadow"`
	ColorIndex int           `json:"color_index"`
	Color      world.Color   `json:"color"`
	Palette    world.Palette `json:"palette"`
	Focused    bool          `json:"focused"`
	Pointer    vec.Vec2Float `json:"pointer"`
	Voxels     int           `json:"voxels"`
	Capacity   int           `json:"capacity"`
	Selecting  bool          `json:"selecting"`
	GridSize   int           `json:"grid_size"`
}

// View возвращает снимок состояния
func (s *Session) View() StateView {
	return StateView{
		ID:         s.id,
		State:      s.state.String(),
		Shadow:     s.shadow(),
		ColorIndex: s.colorIndex,
		Color:      s.CurrentColor(),
		Palette:    append(world.Palette(nil), s.palette...),
		Focused:    s.focused,
		Pointer:    s.pointer,
		Voxels:     s.store.Len(),
		Capacity:   s.buffer.Capacity(),
		Selecting:  s.drag != nil,
		GridSize:   s.cfg.GridSize,
	}
}

// shadow вычисляет превью: видно, только когда есть цель и окно в фокусе
func (s *Session) shadow() ShadowView {
	v := ShadowView{Color: s.CurrentColor()}
	if s.state != NoTarget {
		v.Position = s.candidate.Center()
		v.Visible = s.focused
	}
	return v
}

// syncShadow отправляет превью в приёмник, если оно изменилось
func (s *Session) syncShadow() {
	view := s.shadow()
	if s.shadowSent && view == s.lastShadow {
		return
	}
	s.lastShadow = view
	s.shadowSent = true

	if ss, ok := s.buffer.Sink().(render.ShadowSink); ok {
		ss.Shadow(view.Visible, render.NewInstance(s.candidate, view.Color))
	}
}

// Attach переключает приёмник буфера и проигрывает в него всю сцену и превью
func (s *Session) Attach(sink render.Sink) {
	s.buffer.SetSink(sink)
	if sink == nil {
		return
	}
	s.buffer.Replay(sink)
	s.shadowSent = false
	s.syncShadow()
}

// Clear удаляет все воксели. Превью пересчитывается, выделение сбрасывается.
func (s *Session) Clear(ctx context.Context) int {
	n := s.store.Len()
	s.store.Clear()
	s.buffer.Reset()
	s.drag = nil
	s.metrics.remove(n)

	s.log.Debug("Session %s cleared (%d voxels)", s.id, n)
	s.publish(ctx, EventSceneCleared, SceneEvent{SessionID: s.id, Voxels: n})
	s.Frame()
	return n
}

// Snapshot возвращает записи для сохранения
func (s *Session) Snapshot() []world.Record {
	return s.store.Snapshot()
}

// Restore заменяет сцену записями. Проверка идёт до любых изменений: при ошибке
// (ErrMalformedSaveRecord или ErrCapacityExceeded) сцена остаётся прежней.
func (s *Session) Restore(ctx context.Context, records []world.Record) error {
	before := s.store.Len()

	voxels, err := world.ValidateRecords(records)
	if err != nil {
		s.metrics.load(false, before, before)
		logging.LogLayoutLoad(s.id, 0, err)
		return err
	}
	if err := s.buffer.Rebuild(voxels); err != nil {
		s.metrics.load(false, before, before)
		logging.LogLayoutLoad(s.id, 0, err)
		return err
	}
	if err := s.store.Restore(records); err != nil {
		// не должно случиться после ValidateRecords; буфер приводим к хранилищу
		_ = s.buffer.Rebuild(s.store.Voxels())
		return err
	}

	s.drag = nil
	s.metrics.load(true, before, s.store.Len())
	logging.LogLayoutLoad(s.id, s.store.Len(), nil)
	s.publish(ctx, EventSceneRestored, SceneEvent{SessionID: s.id, Voxels: s.store.Len()})
	s.Frame()
	return nil
}

// Close освобождает ресурсы сессии
func (s *Session) Close() {
	s.metrics.sessionClosed(s.store.Len())
	s.buffer.SetSink(nil)
}
