package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annel0/voxel-editor/internal/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsCommandsAndRecoversPanics(t *testing.T) {
	s, _ := newTestSession(t, nil)
	loop := NewLoop(s, 5*time.Millisecond)
	loop.Start()
	defer loop.Stop()

	ctx := context.Background()
	var state TargetState
	require.NoError(t, loop.Do(ctx, func(s *Session) error {
		state = s.State()
		return nil
	}))
	assert.Equal(t, TargetOnPlane, state)

	sentinel := errors.New("boom")
	assert.ErrorIs(t, loop.Do(ctx, func(*Session) error { return sentinel }), sentinel)

	err := loop.Do(ctx, func(*Session) error { panic("oops") })
	assert.ErrorIs(t, err, ErrCommandPanic)

	// цикл жив после паники
	assert.NoError(t, loop.Do(ctx, func(*Session) error { return nil }))
}

func TestLoopStop(t *testing.T) {
	s, _ := newTestSession(t, nil)
	loop := NewLoop(s, 0)
	loop.Start()
	loop.Stop()
	loop.Stop()

	err := loop.Do(context.Background(), func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrLoopStopped)

	// остановка не запущенного цикла не блокируется
	NewLoop(s, 0).Stop()
}

func TestLoopDoHonorsContext(t *testing.T) {
	s, _ := newTestSession(t, nil)
	loop := NewLoop(s, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// цикл не запущен, команду никто не заберёт
	assert.ErrorIs(t, loop.Do(ctx, func(*Session) error { return nil }), context.DeadlineExceeded)
}

func TestManagerLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameInterval = 0

	sinks := make(map[string]*render.RecordingSink)
	m, err := NewManager(cfg,
		WithManagerMetrics(NewMetrics(prometheus.NewRegistry())),
		WithMaxSessions(2),
		WithSinkFactory(func(id string) render.Sink {
			rs := render.NewRecordingSink()
			sinks[id] = rs
			return rs
		}),
	)
	require.NoError(t, err)
	defer m.Close()

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	_, err = m.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Len(t, sinks, 2, "отказ по лимиту не должен запрашивать приёмник")

	assert.Len(t, m.List(), 2)
	assert.Contains(t, sinks, a.ID())

	ctx := context.Background()
	require.NoError(t, m.Do(ctx, a.ID(), func(s *Session) error {
		s.Frame()
		_, _, err := s.PrimaryPress(ctx)
		return err
	}))
	assert.Len(t, sinks[a.ID()].Mirror(), 1)

	require.NoError(t, m.Delete(a.ID()))
	assert.ErrorIs(t, m.Delete(a.ID()), ErrSessionNotFound)
	assert.ErrorIs(t, m.Do(ctx, a.ID(), func(*Session) error { return nil }), ErrSessionNotFound)
	assert.Equal(t, 1, m.Count())
}

func TestQueryReturnsValue(t *testing.T) {
	s, _ := newTestSession(t, nil)
	loop := NewLoop(s, 0)
	loop.Start()
	defer loop.Stop()

	ctx := context.Background()
	count, err := Query(ctx, loop, func(s *Session) (int, error) {
		_, _, err := s.PrimaryPress(ctx)
		return s.Store().Len(), err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	sentinel := errors.New("boom")
	v, err := Query(ctx, loop, func(*Session) (string, error) { return "partial", sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "partial", v)

	loop.Stop()
	_, err = Query(ctx, loop, func(*Session) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrLoopStopped)
}
