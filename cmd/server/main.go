package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxel-editor/internal/api"
	"github.com/annel0/voxel-editor/internal/cache"
	"github.com/annel0/voxel-editor/internal/config"
	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/network"
	"github.com/annel0/voxel-editor/internal/observability"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $EDITOR_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	cfg.ApplyLogging()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	logging.Info("🧊 Запуск Voxel Editor Server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === МЕТРИКИ ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === ШИНА СОБЫТИЙ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации шины событий: %v", err)
	}
	eventbus.Init(bus)
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, registry)

	// === ХРАНИЛИЩЕ РАСКЛАДОК ===
	layouts, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища %s: %v", cfg.Storage.Backend, err)
	}
	if cfg.Cache.Enabled {
		layouts, err = openLayoutCache(layouts, cfg.Cache)
		if err != nil {
			log.Fatalf("❌ Ошибка инициализации кеша раскладок: %v", err)
		}
	}

	// === СЕССИИ ===
	editorCfg, err := cfg.EditorConfig()
	if err != nil {
		log.Fatalf("❌ Некорректная конфигурация редактора: %v", err)
	}
	streams := network.NewStreams(network.NewMetrics(registry))
	manager, err := editor.NewManager(editorCfg,
		editor.WithManagerPublisher(bus),
		editor.WithManagerMetrics(editor.NewMetrics(registry)),
		editor.WithSinkFactory(streams.SinkFactory()),
		editor.WithSinkRelease(streams.Close),
		editor.WithMaxSessions(cfg.Editor.MaxSessions),
	)
	if err != nil {
		log.Fatalf("❌ Ошибка создания менеджера сессий: %v", err)
	}

	// === REST API ===
	restPort := cfg.Server.GetRESTPort()
	metricsPort := cfg.Server.GetMetricsPort()

	restCfg := api.Config{
		Port:        fmt.Sprintf(":%d", restPort),
		ServiceName: "editor_api",
		Manager:     manager,
		Streams:     streams,
		Layouts:     layouts,
		Bus:         bus,
		Registerer:  registry,
	}
	if metricsPort == restPort {
		restCfg.Gatherer = registry
		exporter.Start()
	} else {
		exporter.StartHTTP(fmt.Sprintf(":%d", metricsPort), registry)
	}
	server := api.NewRestServer(restCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logging.Info("✅ Сервер готов")
	logging.Info("   🌐 REST API: http://localhost:%d/api/sessions", restPort)
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", metricsPort)
	logging.Info("   💾 Хранилище: %s", cfg.Storage.Backend)

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, останавливаемся...")
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ REST API остановлен с ошибкой: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	streams.CloseAll()
	manager.Close()
	exporter.Stop()

	if err := layouts.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}
	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины событий: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки трассировки: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// openEventBus выбирает JetStream при заданном URL, иначе шину в памяти
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий: in-memory (буфер %d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}

	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		return nil, err
	}
	logging.Info("🚌 Шина событий: JetStream %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}

// openLayoutCache оборачивает хранилище кешем; с nats_url кеши узлов
// инвалидируются друг другом
func openLayoutCache(repo storage.LayoutRepo, cfg cache.Config) (storage.LayoutRepo, error) {
	var inv cache.Invalidator
	if cfg.NATSURL != "" {
		nats, err := cache.NewNATSInvalidator(cfg, uuid.NewString())
		if err != nil {
			return nil, err
		}
		inv = nats
	}
	cached, err := cache.NewCachedLayoutRepo(repo, cfg, inv)
	if err != nil {
		return nil, err
	}
	logging.Info("🗃️ Кеш раскладок: до %d записей", cfg.MaxEntries)
	return cached, nil
}
