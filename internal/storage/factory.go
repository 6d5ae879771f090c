package storage

import (
	"fmt"
)

// Поддерживаемые бэкенды хранилища
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Config выбирает и настраивает хранилище раскладок
type Config struct {
	Backend  string      `yaml:"backend"`
	DataPath string      `yaml:"data_path"`
	Redis    RedisConfig `yaml:"redis"`
}

// DefaultConfig возвращает хранилище в памяти
func DefaultConfig() Config {
	return Config{
		Backend:  BackendMemory,
		DataPath: "data",
		Redis:    *DefaultRedisConfig(),
	}
}

// Open создаёт хранилище по конфигурации
func Open(cfg Config) (LayoutRepo, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryLayoutRepo(), nil
	case BackendBadger:
		return NewBadgerLayoutRepo(cfg.DataPath)
	case BackendFile:
		return NewFileLayoutRepo(cfg.DataPath)
	case BackendRedis:
		redisCfg := cfg.Redis
		return NewRedisLayoutRepo(&redisCfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
