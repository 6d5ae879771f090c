package api

import (
	"context"
	"net/http"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/gin-gonic/gin"
)

// PointerRequest позиция указателя: NDC или пиксели при заданных width/height
type PointerRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PressRequest нажатие кнопки указателя
type PressRequest struct {
	Button string `json:"button" binding:"required"`
}

// FocusRequest фокус окна
type FocusRequest struct {
	Focused bool `json:"focused"`
}

// KeyRequest нажатие клавиши
type KeyRequest struct {
	Key string `json:"key" binding:"required"`
}

// ColorRequest выбор цвета по индексу палитры
type ColorRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SessionSummary краткая информация о сессии
type SessionSummary struct {
	ID     string `json:"id"`
	Voxels int    `json:"voxels"`
	State  string `json:"state"`
}

func (rs *RestServer) commandContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), commandTimeout)
}

// view читает состояние сессии
func (rs *RestServer) view(ctx context.Context, id string) (editor.StateView, error) {
	return editor.QuerySession(ctx, rs.manager, id, func(s *editor.Session) (editor.StateView, error) {
		return s.View(), nil
	})
}

func (rs *RestServer) handleCreateSession(c *gin.Context) {
	loop, err := rs.manager.Create()
	if err != nil {
		rs.respondError(c, err)
		return
	}

	ctx, cancel := rs.commandContext(c)
	defer cancel()

	// Первый кадр сразу, чтобы состояние было готово без ожидания тика
	view, err := editor.Query(ctx, loop, func(s *editor.Session) (editor.StateView, error) {
		s.Frame()
		return s.View(), nil
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "Сессия создана", view)
}

func (rs *RestServer) handleListSessions(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	summaries := make([]SessionSummary, 0, rs.manager.Count())
	for _, id := range rs.manager.List() {
		view, err := rs.view(ctx, id)
		if err != nil {
			// сессия удалена между List и запросом
			continue
		}
		summaries = append(summaries, SessionSummary{ID: id, Voxels: view.Voxels, State: view.State})
	}
	ok(c, http.StatusOK, "Список сессий", summaries)
}

func (rs *RestServer) handleGetSession(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	view, err := rs.view(ctx, c.Param("id"))
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Состояние сессии", view)
}

func (rs *RestServer) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if rs.streams != nil {
		rs.streams.Close(id)
	}
	if err := rs.manager.Delete(id); err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Сессия удалена", nil)
}

// apply выполняет входное событие и отвечает его итогом
func (rs *RestServer) apply(c *gin.Context, in editor.Input) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	res, err := editor.QuerySession(ctx, rs.manager, c.Param("id"), func(s *editor.Session) (editor.InputResult, error) {
		return s.Apply(ctx, in)
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, in.Type, res)
}

func (rs *RestServer) handlePointer(c *gin.Context) {
	var req PointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	rs.apply(c, editor.Input{Type: editor.InputPointer, X: req.X, Y: req.Y, Width: req.Width, Height: req.Height})
}

func (rs *RestServer) handlePress(c *gin.Context) {
	var req PressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	rs.apply(c, editor.Input{Type: editor.InputPress, Button: req.Button})
}

func (rs *RestServer) handleFocus(c *gin.Context) {
	var req FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	rs.apply(c, editor.Input{Type: editor.InputFocus, Focused: req.Focused})
}

func (rs *RestServer) handleKey(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	rs.apply(c, editor.Input{Type: editor.InputKey, Key: req.Key})
}

func (rs *RestServer) handleColor(c *gin.Context) {
	var req ColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	rs.apply(c, editor.Input{Type: editor.InputColor, Index: *req.Index})
}

func (rs *RestServer) handleCamera(c *gin.Context) {
	var cam picking.Camera
	if err := c.ShouldBindJSON(&cam); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	rs.apply(c, editor.Input{Type: editor.InputCamera, Camera: &cam})
}

// handleSelect перекрашивает воксели под прямоугольником текущим цветом
func (rs *RestServer) handleSelect(c *gin.Context) {
	var rect editor.Rect
	if err := c.ShouldBindJSON(&rect); err != nil {
		rs.badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}

	ctx, cancel := rs.commandContext(c)
	defer cancel()

	recolored, err := editor.QuerySession(ctx, rs.manager, c.Param("id"), func(s *editor.Session) ([]vec.Vec3Float, error) {
		cells := s.SelectRegion(ctx, rect)
		out := make([]vec.Vec3Float, len(cells))
		for i, cell := range cells {
			out[i] = cell.Center()
		}
		return out, nil
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Выделение применено", gin.H{"recolored": recolored})
}

func (rs *RestServer) handleClear(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	removed, err := editor.QuerySession(ctx, rs.manager, c.Param("id"), func(s *editor.Session) (int, error) {
		return s.Clear(ctx), nil
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Сцена очищена", gin.H{"removed": removed})
}

func (rs *RestServer) handleStream(c *gin.Context) {
	if rs.streams == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, GenericResponse{Message: "Потоки отключены"})
		return
	}
	loop, err := rs.manager.Get(c.Param("id"))
	if err != nil {
		rs.respondError(c, err)
		return
	}
	if err := rs.streams.Serve(c.Writer, c.Request, loop); err != nil {
		rs.log.Warn("Session %s: поток не открыт: %v", loop.ID(), err)
	}
}
