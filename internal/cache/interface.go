package cache

import (
	"context"
	"time"
)

// Invalidator рассылает и принимает уведомления об устаревших раскладках
// между экземплярами сервера.
//
// Использование:
//
//	inv, _ := NewNATSInvalidator(cfg, nodeID)
//	repo := NewCachedLayoutRepo(storageRepo, cfg, inv)
type Invalidator interface {
	// PublishInvalidation отправляет уведомление об изменении раскладки name.
	PublishInvalidation(ctx context.Context, name string) error

	// SubscribeInvalidations подписывается на уведомления других узлов.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	// Close закрывает соединение.
	Close() error
}

// InvalidationHandler обрабатывает уведомление об инвалидации.
type InvalidationHandler func(name string) error

// Metrics метрики кеша раскладок.
type Metrics struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRatio      float64 `json:"hit_ratio"`
	Entries       int     `json:"entries"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`

	// Заполняется, если invalidator отдаёт свои счётчики (NATS)
	Invalidator *InvalidatorStats `json:"invalidator,omitempty"`
}

// Config конфигурация кеша раскладок.
type Config struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`

	// NATS для межузловой инвалидации; пустой URL оставляет кеш локальным
	NATSURL       string        `yaml:"nats_url"`
	Subject       string        `yaml:"subject"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultConfig кеш выключен, 128 раскладок
func DefaultConfig() Config {
	return Config{
		MaxEntries:    128,
		Subject:       "editor.layouts.invalidate",
		ReconnectWait: 2 * time.Second,
	}
}
