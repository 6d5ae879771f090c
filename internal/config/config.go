package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/voxel-editor/internal/cache"
	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/observability"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/world"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Любое отсутствующее значение берётся из Default().
type Config struct {
	Editor    EditorConfig         `yaml:"editor"`
	Server    ServerConfig         `yaml:"server"`
	Storage   storage.Config       `yaml:"storage"`
	Cache     cache.Config         `yaml:"cache"`
	EventBus  EventBusConfig       `yaml:"eventbus"`
	Telemetry observability.Config `yaml:"telemetry"`
	Logging   LoggingConfig        `yaml:"logging"`
}

type EditorConfig struct {
	GridSize      int            `yaml:"grid_size"`
	Capacity      int            `yaml:"capacity"`
	AutoGrow      bool           `yaml:"auto_grow"`
	MaxCapacity   int            `yaml:"max_capacity"`
	Palette       []string       `yaml:"palette"` // "#RRGGBB"
	FrameRateHz   float64        `yaml:"frame_rate_hz"`
	SelectionStep float64        `yaml:"selection_step"`
	MaxSessions   int            `yaml:"max_sessions"`
	InitialVoxel  bool           `yaml:"initial_voxel"`
	Camera        picking.Camera `yaml:"camera"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто — шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	// Уровень для отдельных компонентов: editor, server, stream, storage
	Components map[string]string `yaml:"components"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	palette := make([]string, len(world.DefaultPalette))
	for i, c := range world.DefaultPalette {
		palette[i] = c.Hex()
	}

	return &Config{
		Editor: EditorConfig{
			GridSize:      20,
			Capacity:      render.DefaultCapacity,
			AutoGrow:      false,
			MaxCapacity:   0,
			Palette:       palette,
			FrameRateHz:   60,
			SelectionStep: 0.02,
			MaxSessions:   64,
			Camera:        picking.DefaultCamera(),
		},
		Storage: storage.DefaultConfig(),
		Cache:   cache.DefaultConfig(),
		EventBus: EventBusConfig{
			Stream:    "EDITOR",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: observability.DefaultConfig(),
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "EDITOR_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений.
// Совпадение с REST портом означает, что /metrics отдаётся REST сервером.
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "EDITOR_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV EDITOR_CONFIG; без файла возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("EDITOR_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация %s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет конфигурацию целиком
func (c *Config) Validate() error {
	ec, err := c.EditorConfig()
	if err != nil {
		return err
	}
	if err := ec.Validate(); err != nil {
		return err
	}
	if c.Editor.AutoGrow && c.Editor.MaxCapacity > 0 && c.Editor.MaxCapacity < c.Editor.Capacity {
		return fmt.Errorf("max_capacity %d меньше capacity %d", c.Editor.MaxCapacity, c.Editor.Capacity)
	}
	switch c.Storage.Backend {
	case "", storage.BackendMemory, storage.BackendBadger, storage.BackendRedis, storage.BackendFile:
	default:
		return fmt.Errorf("неизвестный storage.backend %q", c.Storage.Backend)
	}
	if c.Cache.Enabled && c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries не может быть отрицательным")
	}
	if c.EventBus.Retention < 0 {
		return fmt.Errorf("eventbus.retention_hours не может быть отрицательным")
	}
	return nil
}

// EditorConfig собирает параметры сессий редактора
func (c *Config) EditorConfig() (editor.Config, error) {
	palette := make(world.Palette, 0, len(c.Editor.Palette))
	for _, s := range c.Editor.Palette {
		color, err := world.ParseColor(s)
		if err != nil {
			return editor.Config{}, fmt.Errorf("editor.palette: %w", err)
		}
		palette = append(palette, color)
	}

	var interval time.Duration
	if c.Editor.FrameRateHz > 0 {
		interval = time.Duration(float64(time.Second) / c.Editor.FrameRateHz)
	}

	return editor.Config{
		GridSize: c.Editor.GridSize,
		Buffer: render.Options{
			Capacity:    c.Editor.Capacity,
			AutoGrow:    c.Editor.AutoGrow,
			MaxCapacity: c.Editor.MaxCapacity,
		},
		Palette:       palette,
		Camera:        c.Editor.Camera,
		FrameInterval: interval,
		SelectionStep: c.Editor.SelectionStep,
		InitialVoxel:  c.Editor.InitialVoxel,
	}, nil
}

// RetentionDuration срок хранения событий в JetStream
func (e EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// ApplyLogging настраивает пакет logging
func (c *Config) ApplyLogging() {
	logging.SetLogDir(c.Logging.Dir)
	logging.SetDefaultLevels(
		logging.ParseLevel(c.Logging.ConsoleLevel, logging.INFO),
		logging.ParseLevel(c.Logging.FileLevel, logging.DEBUG),
	)
	for component, level := range c.Logging.Components {
		lv := logging.ParseLevel(level, logging.INFO)
		logging.GetLoggerManager().Override(component, lv, lv)
	}
}
