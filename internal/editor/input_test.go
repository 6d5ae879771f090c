package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPressPlacesAndRemoves(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	res, err := s.Apply(ctx, Input{Type: InputPress, Button: "primary"})
	require.NoError(t, err)
	require.NotNil(t, res.Placed)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, *res.Placed)
	assert.Equal(t, 1, res.View.Voxels)

	res, err = s.Apply(ctx, Input{Type: InputPress, Button: "right"})
	require.NoError(t, err)
	require.NotNil(t, res.Removed)
	assert.Equal(t, 0, res.View.Voxels)
}

func TestApplyPointerPixels(t *testing.T) {
	s, _ := newTestSession(t, nil)

	res, err := s.Apply(context.Background(), Input{Type: InputPointer, X: 400, Y: 300, Width: 800, Height: 600})
	require.NoError(t, err)
	assert.Equal(t, vec.Vec2Float{X: 0, Y: 0}, res.View.Pointer)
	assert.Equal(t, TargetOnPlane.String(), res.View.State)
}

func TestApplyKeyAndColor(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	res, err := s.Apply(ctx, Input{Type: InputKey, Key: "ArrowLeft"})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, len(s.Palette())-1, res.View.ColorIndex)

	res, err = s.Apply(ctx, Input{Type: InputKey, Key: "Enter"})
	require.NoError(t, err)
	assert.False(t, res.Handled)

	_, err = s.Apply(ctx, Input{Type: InputColor, Index: 99})
	assert.True(t, errors.Is(err, ErrColorIndex))
}

func TestApplyRejectsUnknown(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	_, err := s.Apply(ctx, Input{Type: "jump"})
	assert.True(t, errors.Is(err, ErrUnknownInput))

	_, err = s.Apply(ctx, Input{Type: InputPress, Button: "middle"})
	assert.True(t, errors.Is(err, ErrUnknownInput))

	_, err = s.Apply(ctx, Input{Type: InputCamera})
	assert.True(t, errors.Is(err, ErrInvalidCamera))

	_, err = s.Apply(ctx, Input{Type: InputSelectEnd})
	assert.True(t, errors.Is(err, ErrNoSelection))
}

func TestApplyCapacityExceeded(t *testing.T) {
	s, _ := newTestSession(t, func(cfg *Config) {
		cfg.Buffer = render.Options{Capacity: 1}
	})
	ctx := context.Background()

	_, err := s.Apply(ctx, Input{Type: InputPress, Button: "primary"})
	require.NoError(t, err)

	_, err = s.Apply(ctx, Input{Type: InputPress, Button: "primary"})
	assert.True(t, errors.Is(err, render.ErrCapacityExceeded))
	assert.Equal(t, 1, s.Store().Len())
}
