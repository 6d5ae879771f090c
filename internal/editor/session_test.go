package editor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(ctx context.Context, ev *eventbus.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, ev.EventType)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// камера строго сверху над центром ячейки (0,0,0)
func topDownCamera() picking.Camera {
	cam := picking.DefaultCamera()
	cam.Position = vec.Vec3Float{X: 0.5, Y: 10, Z: 0.5}
	cam.Target = vec.Vec3Float{X: 0.5, Y: 0, Z: 0.5}
	cam.Up = vec.Vec3Float{Z: -1}
	return cam
}

// камера сбоку, смотрит вдоль -X на середину ячейки (0,0,0)
func sideCamera() picking.Camera {
	cam := picking.DefaultCamera()
	cam.Position = vec.Vec3Float{X: 5, Y: 0.5, Z: 0.5}
	cam.Target = vec.Vec3Float{X: 0, Y: 0.5, Z: 0.5}
	cam.Up = vec.Vec3Float{Y: 1}
	return cam
}

func newTestSession(t *testing.T, mutate func(*Config), opts ...Option) (*Session, *render.RecordingSink) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FrameInterval = 0
	cfg.Camera = topDownCamera()
	if mutate != nil {
		mutate(&cfg)
	}
	sink := render.NewRecordingSink()
	opts = append([]Option{WithSink(sink)}, opts...)
	s, err := NewSession("test", cfg, opts...)
	require.NoError(t, err)
	s.Frame()
	return s, sink
}

func TestPlaneHitPlacesAtHalfCell(t *testing.T) {
	s, sink := newTestSession(t, nil)

	assert.Equal(t, TargetOnPlane, s.State())
	cand, ok := s.Candidate()
	require.True(t, ok)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, cand.Center())

	cell, placed, err := s.PrimaryPress(context.Background())
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, grid.Cell{}, cell)

	color, ok := s.Store().Get(grid.Cell{})
	require.True(t, ok)
	assert.Equal(t, world.DefaultPalette[0], color)
	assert.Equal(t, s.Store().Len(), s.Buffer().Len())
	assert.Len(t, sink.Mirror(), 1)

	// следующий кадр попадает в верхнюю грань нового вокселя
	assert.Equal(t, TargetOnVoxel, s.State())
	cand, _ = s.Candidate()
	assert.Equal(t, grid.Cell{Y: 1}, cand)
}

func TestStackingAndOccupiedRejected(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cell, placed, err := s.PrimaryPress(ctx)
		require.NoError(t, err)
		require.True(t, placed)
		assert.Equal(t, grid.Cell{Y: i}, cell)
	}
	assert.Equal(t, 3, s.Store().Len())

	// размещение в занятую ячейку отклоняется без ошибки
	s.candidate = grid.Cell{}
	_, placed, err := s.PrimaryPress(ctx)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.Equal(t, 3, s.Store().Len())
}

func TestFaceHitPlacesAdjacent(t *testing.T) {
	s, _ := newTestSession(t, func(c *Config) { c.Camera = sideCamera() })
	require.NoError(t, s.Restore(context.Background(), []world.Record{
		{Position: vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, Color: 0xFF0000},
	}))

	assert.Equal(t, TargetOnVoxel, s.State())
	cand, ok := s.Candidate()
	require.True(t, ok)
	assert.Equal(t, vec.Vec3Float{X: 1.5, Y: 0.5, Z: 0.5}, cand.Center())

	// теперь луч упирается в превью: кадр пропускается, кандидат прежний
	s.Frame()
	assert.Equal(t, TargetOnVoxel, s.State())
	again, _ := s.Candidate()
	assert.Equal(t, cand, again)
}

func TestNoTargetHidesShadow(t *testing.T) {
	s, sink := newTestSession(t, func(c *Config) { c.Camera = sideCamera() })

	assert.Equal(t, NoTarget, s.State())
	assert.False(t, s.View().Shadow.Visible)

	_, placed, err := s.PrimaryPress(context.Background())
	require.NoError(t, err)
	assert.False(t, placed)

	last, ok := sink.LastShadow()
	require.True(t, ok)
	assert.False(t, last.Visible)
}

func TestCandidateClampedToBounds(t *testing.T) {
	cam := sideCamera()
	cam.Position = vec.Vec3Float{X: 15, Y: 0.5, Z: 0.5}
	s, _ := newTestSession(t, func(c *Config) { c.Camera = cam })
	ctx := context.Background()

	// крайний воксель сетки 20×20: грань +X смотрит за границу
	require.NoError(t, s.Restore(ctx, []world.Record{
		{Position: vec.Vec3Float{X: 9.5, Y: 0.5, Z: 0.5}, Color: 0x00FF00},
	}))

	assert.Equal(t, TargetOnVoxel, s.State())
	cand, _ := s.Candidate()
	assert.Equal(t, grid.Cell{X: 9}, cand)
	assert.True(t, grid.Bounds{GridSize: 20}.Contains(cand))

	// зажатый кандидат совпал с занятой ячейкой: размещение отклоняется
	_, placed, err := s.PrimaryPress(ctx)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.Equal(t, 1, s.Store().Len())
}

func TestSecondaryPressRemovesNearestVoxel(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newTestSession(t, nil, WithPublisher(pub))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := s.PrimaryPress(ctx)
		require.NoError(t, err)
	}

	cell, removed := s.SecondaryPress(ctx)
	require.True(t, removed)
	assert.Equal(t, grid.Cell{Y: 1}, cell)
	assert.Equal(t, 1, s.Store().Len())
	assert.Equal(t, 1, s.Buffer().Len())

	assert.Equal(t, []string{EventVoxelPlaced, EventVoxelPlaced, EventVoxelRemoved}, pub.Types())
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	_, removed := s.SecondaryPress(ctx)
	assert.False(t, removed)

	_, removed = s.RemoveAt(ctx, grid.Cell{X: 3})
	assert.False(t, removed)
	assert.Equal(t, 0, s.Store().Len())
}

func TestFocusLossHidesShadowKeepsState(t *testing.T) {
	s, sink := newTestSession(t, nil)
	require.Equal(t, TargetOnPlane, s.State())
	require.True(t, s.View().Shadow.Visible)

	s.SetFocus(false)
	assert.Equal(t, TargetOnPlane, s.State())
	assert.False(t, s.View().Shadow.Visible)
	last, _ := sink.LastShadow()
	assert.False(t, last.Visible)

	s.SetFocus(true)
	assert.True(t, s.View().Shadow.Visible)
}

func TestColorCyclingOnlyChangesShadow(t *testing.T) {
	s, sink := newTestSession(t, nil)
	ctx := context.Background()

	_, _, err := s.PrimaryPress(ctx)
	require.NoError(t, err)

	assert.True(t, s.KeyDown("ArrowLeft"))
	assert.Equal(t, len(world.DefaultPalette)-1, s.View().ColorIndex)
	assert.True(t, s.KeyDown("ArrowRight"))
	assert.Equal(t, 0, s.View().ColorIndex)
	assert.False(t, s.KeyDown("Enter"))

	require.NoError(t, s.SelectColor(3))
	assert.Equal(t, world.DefaultPalette[3], s.View().Shadow.Color)
	last, _ := sink.LastShadow()
	assert.Equal(t, world.DefaultPalette[3], last.Instance.Color)

	color, _ := s.Store().Get(grid.Cell{})
	assert.Equal(t, world.DefaultPalette[0], color)

	assert.ErrorIs(t, s.SelectColor(10), ErrColorIndex)
	assert.ErrorIs(t, s.SelectColor(-1), ErrColorIndex)
}

func TestCapacityExceeded(t *testing.T) {
	s, _ := newTestSession(t, func(c *Config) { c.Buffer = render.Options{Capacity: 1} })
	ctx := context.Background()

	_, placed, err := s.PrimaryPress(ctx)
	require.NoError(t, err)
	require.True(t, placed)

	_, placed, err = s.PrimaryPress(ctx)
	assert.True(t, errors.Is(err, render.ErrCapacityExceeded))
	assert.False(t, placed)
	assert.Equal(t, 1, s.Store().Len())
	assert.Equal(t, 1, s.Buffer().Len())
}

func TestSaveClearLoad(t *testing.T) {
	pub := &recordingPublisher{}
	s, sink := newTestSession(t, nil, WithPublisher(pub))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := s.PrimaryPress(ctx)
		require.NoError(t, err)
	}
	saved := s.Snapshot()
	require.Len(t, saved, 3)

	assert.Equal(t, 3, s.Clear(ctx))
	assert.Equal(t, 0, s.Store().Len())
	assert.Equal(t, 0, s.Buffer().Len())
	assert.Empty(t, sink.Mirror())

	require.NoError(t, s.Restore(ctx, saved))
	assert.Equal(t, 3, s.Store().Len())
	assert.Equal(t, 3, s.Buffer().Len())
	assert.Len(t, sink.Mirror(), 3)
	assert.ElementsMatch(t, saved, s.Snapshot())

	types := pub.Types()
	assert.Equal(t, EventSceneCleared, types[3])
	assert.Equal(t, EventSceneRestored, types[4])
}

func TestMalformedLoadLeavesSceneUntouched(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	_, _, err := s.PrimaryPress(ctx)
	require.NoError(t, err)
	before := s.Snapshot()

	err = s.Restore(ctx, []world.Record{
		{Position: vec.Vec3Float{X: 2.5, Y: 0.5, Z: 0.5}, Color: 1},
		{Position: vec.Vec3Float{X: 0.3, Y: 0.5, Z: 0.5}, Color: 1},
	})
	assert.ErrorIs(t, err, world.ErrMalformedSaveRecord)
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 1, s.Buffer().Len())
}

func TestLoadOverCapacityLeavesSceneUntouched(t *testing.T) {
	s, _ := newTestSession(t, func(c *Config) { c.Buffer = render.Options{Capacity: 2} })
	ctx := context.Background()

	err := s.Restore(ctx, []world.Record{
		{Position: vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}},
		{Position: vec.Vec3Float{X: 1.5, Y: 0.5, Z: 0.5}},
		{Position: vec.Vec3Float{X: 2.5, Y: 0.5, Z: 0.5}},
	})
	assert.ErrorIs(t, err, render.ErrCapacityExceeded)
	assert.Equal(t, 0, s.Store().Len())
}

func TestSetCamera(t *testing.T) {
	s, _ := newTestSession(t, nil)

	bad := s.Camera()
	bad.Near = 0
	assert.ErrorIs(t, s.SetCamera(bad), ErrInvalidCamera)

	require.NoError(t, s.SetCamera(sideCamera()))
	assert.Equal(t, NoTarget, s.State())
}

func TestPointerPixels(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.PointerMovePixels(400, 300, 800, 600)
	assert.Equal(t, vec.Vec2Float{}, s.View().Pointer)
	assert.Equal(t, TargetOnPlane, s.State())
}

func TestMetricsCountPlacements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, _ := newTestSession(t, nil, WithMetrics(m))

	_, _, err := s.PrimaryPress(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[mf.GetName()] = metric.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["editor_voxels_placed_total"])
	assert.Equal(t, 1.0, values["editor_voxels"])
	assert.Equal(t, 1.0, values["editor_sessions_active"])
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Palette = nil
	_, err := NewSession("x", cfg)
	assert.ErrorIs(t, err, world.ErrEmptyPalette)

	cfg = DefaultConfig()
	cfg.GridSize = 0
	_, err = NewSession("x", cfg)
	assert.Error(t, err)
}

func TestInitialVoxelSeedsOrigin(t *testing.T) {
	s, sink := newTestSession(t, func(c *Config) { c.InitialVoxel = true })

	require.Equal(t, 1, s.Store().Len())
	color, ok := s.Store().Get(grid.Cell{})
	require.True(t, ok)
	assert.Contains(t, []world.Color(s.Palette()), color)
	require.Len(t, sink.Mirror(), 1)
	assert.Equal(t, color, sink.Mirror()[0].Color)

	// сверху луч через центр экрана упирается в стартовый воксель
	assert.Equal(t, TargetOnVoxel, s.State())

	empty, _ := newTestSession(t, nil)
	assert.Equal(t, 0, empty.Store().Len())
}
