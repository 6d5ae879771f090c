package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/layout"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/gin-gonic/gin"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// statusFor сопоставляет ошибки домена HTTP-статусам
func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrSessionNotFound),
		errors.Is(err, storage.ErrLayoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, world.ErrMalformedSaveRecord),
		errors.Is(err, editor.ErrInvalidCamera),
		errors.Is(err, editor.ErrColorIndex),
		errors.Is(err, editor.ErrUnknownInput),
		errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, render.ErrCapacityExceeded),
		errors.Is(err, layout.ErrEmptyLayout),
		errors.Is(err, editor.ErrNoSelection):
		return http.StatusConflict
	case errors.Is(err, editor.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, editor.ErrLoopStopped):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, storage.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку в формате GenericResponse
func (rs *RestServer) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 {
		rs.log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, GenericResponse{
		Success: false,
		Message: err.Error(),
	})
}

func (rs *RestServer) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, GenericResponse{
		Success: false,
		Message: message,
	})
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, GenericResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}
