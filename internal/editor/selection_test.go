package editor

import (
	"context"
	"math"
	"testing"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRow(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Restore(context.Background(), []world.Record{
		{Position: vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, Color: 0x111111},
		{Position: vec.Vec3Float{X: 1.5, Y: 0.5, Z: 0.5}, Color: 0x111111},
		{Position: vec.Vec3Float{X: 1.5, Y: 1.5, Z: 0.5}, Color: 0x111111},
	}))
}

func TestSelectRegionRecolorsDistinctVoxels(t *testing.T) {
	pub := &recordingPublisher{}
	s, sink := newTestSession(t, nil, WithPublisher(pub))
	seedRow(t, s)
	require.NoError(t, s.SelectColor(2))

	changed := s.SelectRegion(context.Background(), Rect{
		A: vec.Vec2Float{X: -1, Y: -1},
		B: vec.Vec2Float{X: 1, Y: 1},
	})

	// сверху видны только (0,0,0) и верхний (1,1,0); (1,0,0) закрыт
	assert.ElementsMatch(t, []grid.Cell{{}, {X: 1, Y: 1}}, changed)

	for _, cell := range changed {
		color, ok := s.Store().Get(cell)
		require.True(t, ok)
		assert.Equal(t, world.DefaultPalette[2], color)

		slot, ok := s.Buffer().Slot(cell)
		require.True(t, ok)
		assert.Equal(t, world.DefaultPalette[2], sink.Mirror()[slot].Color)
	}
	hidden, _ := s.Store().Get(grid.Cell{X: 1})
	assert.Equal(t, world.Color(0x111111), hidden)

	assert.Contains(t, pub.Types(), EventVoxelsRecolored)
}

func TestPickRegionDeduplicates(t *testing.T) {
	s, _ := newTestSession(t, func(c *Config) { c.SelectionStep = 0.005 })
	seedRow(t, s)

	cells := s.PickRegion(Rect{A: vec.Vec2Float{X: -0.02, Y: -0.02}, B: vec.Vec2Float{X: 0.02, Y: 0.02}})
	assert.Equal(t, []grid.Cell{{}}, cells)
}

func TestSelectRegionOverEmptyGround(t *testing.T) {
	s, _ := newTestSession(t, nil)
	assert.Empty(t, s.SelectRegion(context.Background(), Rect{B: vec.Vec2Float{X: 0.5, Y: 0.5}}))
}

func TestDragSelectionGesture(t *testing.T) {
	s, _ := newTestSession(t, nil)
	seedRow(t, s)
	ctx := context.Background()

	_, err := s.EndSelection(ctx)
	assert.ErrorIs(t, err, ErrNoSelection)

	s.PointerMove(vec.Vec2Float{X: -0.9, Y: -0.9})
	s.BeginSelection()
	s.PointerMove(vec.Vec2Float{X: 0.9, Y: 0.9})

	rect, ok := s.Selection()
	require.True(t, ok)
	assert.Equal(t, vec.Vec2Float{X: -0.9, Y: -0.9}, rect.A)
	assert.Equal(t, vec.Vec2Float{X: 0.9, Y: 0.9}, rect.B)
	assert.True(t, s.View().Selecting)

	require.NoError(t, s.SelectColor(5))
	changed, err := s.EndSelection(ctx)
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.False(t, s.View().Selecting)

	s.BeginSelection()
	s.CancelSelection()
	_, ok = s.Selection()
	assert.False(t, ok)
}

func TestRectNormalized(t *testing.T) {
	lo, hi := Rect{A: vec.Vec2Float{X: 1, Y: -1}, B: vec.Vec2Float{X: -1, Y: 1}}.Normalized()
	assert.Equal(t, vec.Vec2Float{X: -1, Y: -1}, lo)
	assert.Equal(t, vec.Vec2Float{X: 1, Y: 1}, hi)
}

// countingCaster считает брошенные лучи
type countingCaster struct {
	inner picking.Caster
	casts int
}

func (c *countingCaster) Cast(r picking.Ray, set picking.PickSet) []picking.Hit {
	c.casts++
	return c.inner.Cast(r, set)
}

func TestPickRegionClampsToScreen(t *testing.T) {
	cc := &countingCaster{inner: picking.NewBoxCaster()}
	s, _ := newTestSession(t, nil, WithCaster(cc))
	seedRow(t, s)

	cc.casts = 0
	full := s.PickRegion(Rect{A: vec.Vec2Float{X: -1, Y: -1}, B: vec.Vec2Float{X: 1, Y: 1}})
	fullCasts := cc.casts
	require.Greater(t, fullCasts, 0)

	cc.casts = 0
	huge := s.PickRegion(Rect{A: vec.Vec2Float{X: -1e4, Y: -1e4}, B: vec.Vec2Float{X: 1e4, Y: 1e4}})
	assert.LessOrEqual(t, cc.casts, fullCasts)
	assert.ElementsMatch(t, full, huge)

	cc.casts = 0
	assert.Empty(t, s.PickRegion(Rect{A: vec.Vec2Float{X: 5, Y: 5}, B: vec.Vec2Float{X: 9, Y: 9}}))
	assert.Empty(t, s.PickRegion(Rect{A: vec.Vec2Float{X: math.Inf(-1)}, B: vec.Vec2Float{X: 1, Y: 1}}))
	assert.Empty(t, s.PickRegion(Rect{A: vec.Vec2Float{X: math.NaN()}, B: vec.Vec2Float{X: 1, Y: 1}}))
	assert.Zero(t, cc.casts)
}

func TestRectVisible(t *testing.T) {
	lo, hi, ok := Rect{A: vec.Vec2Float{X: -3, Y: 0.5}, B: vec.Vec2Float{X: 0.2, Y: 7}}.Visible()
	require.True(t, ok)
	assert.Equal(t, vec.Vec2Float{X: -1, Y: 0.5}, lo)
	assert.Equal(t, vec.Vec2Float{X: 0.2, Y: 1}, hi)

	_, _, ok = Rect{A: vec.Vec2Float{X: -5, Y: -5}, B: vec.Vec2Float{X: -2, Y: 0}}.Visible()
	assert.False(t, ok)
}

func TestPointerMoveIgnoresNonFinite(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.PointerMove(vec.Vec2Float{X: 0.25, Y: -0.25})
	s.PointerMove(vec.Vec2Float{X: math.NaN(), Y: 0})
	assert.Equal(t, vec.Vec2Float{X: 0.25, Y: -0.25}, s.View().Pointer)
}
