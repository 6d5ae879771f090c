// Package api REST и WebSocket интерфейс сессий редактора.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/voxel-editor/internal/cache"
	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/middleware"
	"github.com/annel0/voxel-editor/internal/network"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Таймаут команды сессии из HTTP-запроса
const commandTimeout = 5 * time.Second

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	manager  *editor.Manager
	streams  *network.Streams
	layouts  storage.LayoutRepo
	bus      eventbus.EventBus
	port     string
	metrics  *ServerMetrics
	log      *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string              // порт для запуска сервера, ":8088"
	ServiceName string              // имя сервиса для трассировки и метрик
	Manager     *editor.Manager     // менеджер сессий
	Streams     *network.Streams    // потоки отрисовки; nil — /stream недоступен
	Layouts     storage.LayoutRepo  // хранилище именованных раскладок
	Bus         eventbus.EventBus   // шина событий, только для статистики
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer // источник /metrics; nil — /metrics не регистрируется
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "editor_api"
	}
	if config.Layouts == nil {
		config.Layouts = storage.NewMemoryLayoutRepo()
	}

	// Устанавливаем режим релиза для gin, если тесты не выбрали свой
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware(config.ServiceName, config.Registerer)
	router.Use(promMw.Handler())
	if config.Gatherer != nil {
		promMw.RegisterMetricsEndpoint(router, config.Gatherer)
	}

	rs := &RestServer{
		router:   router,
		manager:  config.Manager,
		streams:  config.Streams,
		layouts:  config.Layouts,
		bus:      config.Bus,
		port:     config.Port,
		metrics:  NewServerMetrics(),
		log:      logging.GetServerLogger(),
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, If-None-Match")
		c.Header("Access-Control-Expose-Headers", "ETag, "+middleware.TraceIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	api.GET("/stats", rs.handleStats)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", rs.handleCreateSession)
		sessions.GET("", rs.handleListSessions)
		sessions.GET("/:id", rs.handleGetSession)
		sessions.DELETE("/:id", rs.handleDeleteSession)

		// Входные события
		sessions.POST("/:id/pointer", rs.handlePointer)
		sessions.POST("/:id/press", rs.handlePress)
		sessions.POST("/:id/focus", rs.handleFocus)
		sessions.POST("/:id/key", rs.handleKey)
		sessions.POST("/:id/color", rs.handleColor)
		sessions.POST("/:id/camera", rs.handleCamera)
		sessions.POST("/:id/select", rs.handleSelect)
		sessions.POST("/:id/clear", rs.handleClear)

		// Сохранение и загрузка
		sessions.GET("/:id/layout", rs.handleSaveLayout)
		sessions.PUT("/:id/layout", rs.handleLoadLayout)
		sessions.GET("/:id/export.glb", rs.handleExportGLB)
		sessions.POST("/:id/layouts/:name", rs.handleStoreSessionLayout)
		sessions.POST("/:id/layouts/:name/load", rs.handleLoadStoredLayout)

		sessions.GET("/:id/stream", rs.handleStream)
	}

	layouts := api.Group("/layouts")
	{
		layouts.GET("", rs.handleListLayouts)
		layouts.GET("/:name", rs.handleGetLayout)
		layouts.PUT("/:name", rs.handlePutLayout)
		layouts.DELETE("/:name", rs.handleDeleteLayout)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.server = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rs.log.Info("🌐 REST API слушает %s", rs.port)

	err := rs.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop плавно останавливает сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.server == nil {
		return nil
	}
	return rs.server.Shutdown(ctx)
}

// handleHealth обрабатывает проверку состояния
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"time":     time.Now().Unix(),
		"sessions": rs.manager.Count(),
	})
}

// handleStats возвращает статистику сервера и редактора
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	voxels := 0
	for _, id := range rs.manager.List() {
		n, err := editor.QuerySession(ctx, rs.manager, id, func(s *editor.Session) (int, error) {
			return s.Store().Len(), nil
		})
		if err == nil {
			voxels += n
		}
	}
	editorStats := map[string]interface{}{
		"sessions": rs.manager.Count(),
		"voxels":   voxels,
	}
	if rs.streams != nil {
		editorStats["stream_clients"] = rs.streams.Clients()
		editorStats["stream_sessions"] = rs.streams.Sessions()
	}
	stats["editor"] = editorStats

	if metas, err := rs.layouts.List(ctx); err == nil {
		stats["layouts"] = len(metas)
	}
	if cached, ok := rs.layouts.(*cache.CachedLayoutRepo); ok {
		stats["layout_cache"] = cached.Metrics()
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}

	stats["server"] = rs.metrics.Snapshot()

	ok(c, http.StatusOK, "Статистика получена", stats)
}
