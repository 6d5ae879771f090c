package editor

import (
	"context"

	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
)

// Типы событий редактора в шине
const (
	EventVoxelPlaced     = "VoxelPlaced"
	EventVoxelRemoved    = "VoxelRemoved"
	EventVoxelsRecolored = "VoxelsRecolored"
	EventSceneCleared    = "SceneCleared"
	EventSceneRestored   = "SceneRestored"
)

const eventSource = "editor"

// Publisher принимает события сессии. eventbus.EventBus ему удовлетворяет.
type Publisher interface {
	Publish(ctx context.Context, ev *eventbus.Envelope) error
}

// VoxelEvent размещение или удаление одного вокселя
type VoxelEvent struct {
	SessionID string        `json:"session_id"`
	Position  vec.Vec3Float `json:"position"`
	Color     world.Color   `json:"color"`
}

// RecolorEvent перекраска выделенных вокселей
type RecolorEvent struct {
	SessionID string          `json:"session_id"`
	Positions []vec.Vec3Float `json:"positions"`
	Color     world.Color     `json:"color"`
}

// SceneEvent очистка или загрузка сцены
type SceneEvent struct {
	SessionID string `json:"session_id"`
	Voxels    int    `json:"voxels"`
}

func centers(cells []grid.Cell) []vec.Vec3Float {
	out := make([]vec.Vec3Float, len(cells))
	for i, c := range cells {
		out[i] = c.Center()
	}
	return out
}

// publish отправляет событие; ошибка шины не ломает команду, а только логируется
func (s *Session) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(eventSource, eventType, payload)
	if err != nil {
		s.log.Warn("Session %s: %v", s.id, err)
		return
	}
	ev.CorrelationID = s.id
	if eventType == EventSceneRestored || eventType == EventSceneCleared {
		ev.Priority = 5
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("Session %s: публикация %s не удалась: %v", s.id, eventType, err)
	}
}
