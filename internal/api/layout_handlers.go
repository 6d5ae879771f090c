package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/layout"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/observability"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/gin-gonic/gin"
)

const (
	contentTypeJSON = "application/json"
	contentTypeZstd = "application/zstd"
	contentTypeGLB  = "model/gltf-binary"
)

// readLayoutBody читает тело запроса как JSON или zstd раскладку
func readLayoutBody(c *gin.Context) ([]world.Record, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, layout.MaxLayoutSize+1))
	if err != nil {
		return nil, &world.MalformedRecordError{Index: -1, Reason: "read body: " + err.Error()}
	}
	if len(data) > layout.MaxLayoutSize {
		return nil, &world.MalformedRecordError{Index: -1, Reason: "layout too large"}
	}
	return layout.DecodeAuto(data)
}

// wantsZstd проверяет ?format=zstd или Accept: application/zstd
func wantsZstd(c *gin.Context) bool {
	return c.Query("format") == "zstd" || strings.Contains(c.GetHeader("Accept"), contentTypeZstd)
}

// writeLayout отдаёт раскладку с ETag; совпавший If-None-Match даёт 304
func (rs *RestServer) writeLayout(c *gin.Context, records []world.Record) {
	etag := layout.ETag(records)
	c.Header("ETag", etag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}

	data, err := layout.Encode(records)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	if wantsZstd(c) {
		compressed, err := layout.Compress(data)
		if err != nil {
			rs.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypeZstd, compressed)
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, data)
}

// restore атомарно заменяет сцену сессии записями
func (rs *RestServer) restore(c *gin.Context, id string, records []world.Record) (editor.StateView, error) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "editor.layout.restore", id)
	view, err := editor.QuerySession(ctx, rs.manager, id, func(s *editor.Session) (editor.StateView, error) {
		if err := s.Restore(ctx, records); err != nil {
			return editor.StateView{}, err
		}
		return s.View(), nil
	})
	observability.EndSpan(span, err)
	return view, err
}

// handleSaveLayout GET /sessions/:id/layout
func (rs *RestServer) handleSaveLayout(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	records, err := editor.QuerySession(ctx, rs.manager, c.Param("id"), func(s *editor.Session) ([]world.Record, error) {
		return s.Snapshot(), nil
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}
	rs.writeLayout(c, records)
}

// handleLoadLayout PUT /sessions/:id/layout
func (rs *RestServer) handleLoadLayout(c *gin.Context) {
	id := c.Param("id")

	records, err := readLayoutBody(c)
	if err != nil {
		logging.LogLayoutLoad(id, 0, err)
		rs.respondError(c, err)
		return
	}

	view, err := rs.restore(c, id, records)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Раскладка загружена", view)
}

// handleExportGLB GET /sessions/:id/export.glb
func (rs *RestServer) handleExportGLB(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	voxels, err := editor.QuerySession(ctx, rs.manager, c.Param("id"), func(s *editor.Session) ([]world.Voxel, error) {
		return s.Store().Voxels(), nil
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := layout.ExportGLB(&buf, voxels); err != nil {
		rs.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="layout.glb"`)
	c.Data(http.StatusOK, contentTypeGLB, buf.Bytes())
}

// handleStoreSessionLayout POST /sessions/:id/layouts/:name
func (rs *RestServer) handleStoreSessionLayout(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	id, name := c.Param("id"), c.Param("name")
	if err := storage.ValidateName(name); err != nil {
		rs.respondError(c, err)
		return
	}

	records, err := editor.QuerySession(ctx, rs.manager, id, func(s *editor.Session) ([]world.Record, error) {
		return s.Snapshot(), nil
	})
	if err != nil {
		rs.respondError(c, err)
		return
	}

	ctx, span := observability.StartSpan(ctx, "editor.layout.store", id)
	meta, err := rs.layouts.Save(ctx, name, records)
	observability.EndSpan(span, err)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "Раскладка сохранена", meta)
}

// handleLoadStoredLayout POST /sessions/:id/layouts/:name/load
func (rs *RestServer) handleLoadStoredLayout(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	records, _, err := rs.layouts.Load(ctx, c.Param("name"))
	if err != nil {
		rs.respondError(c, err)
		return
	}

	view, err := rs.restore(c, c.Param("id"), records)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Раскладка загружена", view)
}

// handleListLayouts GET /layouts
func (rs *RestServer) handleListLayouts(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	metas, err := rs.layouts.List(ctx)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Список раскладок", metas)
}

// handleGetLayout GET /layouts/:name
func (rs *RestServer) handleGetLayout(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	records, _, err := rs.layouts.Load(ctx, c.Param("name"))
	if err != nil {
		rs.respondError(c, err)
		return
	}
	rs.writeLayout(c, records)
}

// handlePutLayout PUT /layouts/:name
func (rs *RestServer) handlePutLayout(c *gin.Context) {
	name := c.Param("name")
	if err := storage.ValidateName(name); err != nil {
		rs.respondError(c, err)
		return
	}

	records, err := readLayoutBody(c)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	ctx, cancel := rs.commandContext(c)
	defer cancel()

	meta, err := rs.layouts.Save(ctx, name, records)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Раскладка сохранена", meta)
}

// handleDeleteLayout DELETE /layouts/:name
func (rs *RestServer) handleDeleteLayout(c *gin.Context) {
	ctx, cancel := rs.commandContext(c)
	defer cancel()

	if err := rs.layouts.Delete(ctx, c.Param("name")); err != nil {
		rs.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Раскладка удалена", nil)
}
