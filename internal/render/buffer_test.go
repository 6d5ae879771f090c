package render

import (
	"errors"
	"testing"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstanceTranslatesToCenter(t *testing.T) {
	inst := NewInstance(grid.Cell{X: 1, Y: 2, Z: -3}, 0x123456)
	assert.Equal(t, vec.Vec3Float{X: 1.5, Y: 2.5, Z: -2.5}, inst.Position)
	assert.Equal(t, 1.5, inst.Matrix.At(0, 3))
	assert.Equal(t, 2.5, inst.Matrix.At(1, 3))
	assert.Equal(t, -2.5, inst.Matrix.At(2, 3))
	assert.Equal(t, world.Color(0x123456), inst.Color)
}

func TestInsertRespectsCapacity(t *testing.T) {
	b := NewInstanceBuffer(Options{Capacity: 2}, nil)

	_, err := b.Insert(grid.Cell{X: 0}, 1)
	require.NoError(t, err)
	_, err = b.Insert(grid.Cell{X: 1}, 1)
	require.NoError(t, err)

	assert.Error(t, b.CanInsert())
	_, err = b.Insert(grid.Cell{X: 2}, 1)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.Equal(t, 2, b.Len())

	// повторная вставка существующей ячейки не требует места
	_, err = b.Insert(grid.Cell{X: 1}, 7)
	assert.NoError(t, err)
}

func TestAutoGrowDoublesUpToMax(t *testing.T) {
	b := NewInstanceBuffer(Options{Capacity: 2, AutoGrow: true, MaxCapacity: 5}, nil)
	for i := 0; i < 5; i++ {
		_, err := b.Insert(grid.Cell{X: i}, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, b.Capacity())

	_, err := b.Insert(grid.Cell{X: 9}, 1)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRemoveSwapsWithLast(t *testing.T) {
	sink := NewRecordingSink()
	b := NewInstanceBuffer(Options{Capacity: 10}, sink)

	a, c, d := grid.Cell{X: 0}, grid.Cell{X: 1}, grid.Cell{X: 2}
	for _, cell := range []grid.Cell{a, c, d} {
		_, err := b.Insert(cell, 0xFF0000)
		require.NoError(t, err)
	}

	assert.True(t, b.Remove(a))
	assert.False(t, b.Remove(a))
	assert.Equal(t, 2, b.Len())

	slot, ok := b.Slot(d)
	require.True(t, ok)
	assert.Equal(t, 0, slot)

	mirror := sink.Mirror()
	require.Len(t, mirror, 2)
	assert.Equal(t, d.Center(), mirror[0].Position)
	assert.Equal(t, c.Center(), mirror[1].Position)

	// удаление последнего слота не двигает остальные
	assert.True(t, b.Remove(c))
	mirror = sink.Mirror()
	require.Len(t, mirror, 1)
	assert.Equal(t, d.Center(), mirror[0].Position)
}

func TestRecolorAndReset(t *testing.T) {
	sink := NewRecordingSink()
	b := NewInstanceBuffer(Options{}, sink)
	assert.Equal(t, DefaultCapacity, b.Capacity())

	cell := grid.Cell{Y: 3}
	_, err := b.Insert(cell, 0x111111)
	require.NoError(t, err)

	assert.True(t, b.Recolor(cell, 0x222222))
	assert.False(t, b.Recolor(grid.Cell{Y: 4}, 0x222222))
	assert.Equal(t, world.Color(0x222222), sink.Mirror()[0].Color)

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, sink.Mirror())
	events := sink.Events()
	assert.Equal(t, OpReset, events[len(events)-1].Op)
}

func TestRebuildAtomicOnOverflow(t *testing.T) {
	b := NewInstanceBuffer(Options{Capacity: 2}, nil)
	_, err := b.Insert(grid.Cell{}, 1)
	require.NoError(t, err)

	voxels := []world.Voxel{
		{Cell: grid.Cell{X: 1}, Color: 1},
		{Cell: grid.Cell{X: 2}, Color: 1},
		{Cell: grid.Cell{X: 3}, Color: 1},
	}
	assert.ErrorIs(t, b.Rebuild(voxels), ErrCapacityExceeded)
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.Rebuild(voxels[:2]))
	assert.Equal(t, 2, b.Len())
	_, ok := b.Slot(grid.Cell{})
	assert.False(t, ok)
}

func TestReplayMatchesBuffer(t *testing.T) {
	b := NewInstanceBuffer(Options{Capacity: 4}, nil)
	for i := 0; i < 3; i++ {
		_, err := b.Insert(grid.Cell{Z: i}, world.Color(i))
		require.NoError(t, err)
	}

	sink := NewRecordingSink()
	b.Replay(sink)
	assert.Equal(t, OpReset, sink.Events()[0].Op)
	assert.Len(t, sink.Mirror(), 3)
	assert.Equal(t, b.Instances()[2], sink.Mirror()[2])
}
