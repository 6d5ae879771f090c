package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        `yaml:"addr"`       // Адрес Redis сервера
	Password  string        `yaml:"password"`   // Пароль (пустой если не требуется)
	DB        int           `yaml:"db"`         // Номер базы данных
	KeyPrefix string        `yaml:"key_prefix"` // Префикс для ключей
	TTL       time.Duration `yaml:"ttl"`        // Время жизни раскладки, 0 - бессрочно
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		KeyPrefix: "voxel:layout:",
		TTL:       0,
	}
}

// RedisLayoutRepo хранит раскладки в Redis, общем для нескольких экземпляров сервера.
// Ключи: <prefix>data:<name>, <prefix>meta:<name>, множество имён <prefix>index.
type RedisLayoutRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLayoutRepo подключается к Redis и проверяет соединение
func NewRedisLayoutRepo(config *RedisConfig) (*RedisLayoutRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", config.Addr)

	return &RedisLayoutRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

func (rr *RedisLayoutRepo) dataKey(name string) string { return rr.keyPrefix + "data:" + name }
func (rr *RedisLayoutRepo) metaKey(name string) string { return rr.keyPrefix + "meta:" + name }
func (rr *RedisLayoutRepo) indexKey() string           { return rr.keyPrefix + "index" }

// Save реализует LayoutRepo.Save
func (rr *RedisLayoutRepo) Save(ctx context.Context, name string, records []world.Record) (LayoutMeta, error) {
	data, meta, err := encodeLayout(name, records)
	if err != nil {
		return LayoutMeta{}, err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return LayoutMeta{}, fmt.Errorf("failed to marshal layout meta: %w", err)
	}

	_, err = rr.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rr.dataKey(name), data, rr.ttl)
		pipe.Set(ctx, rr.metaKey(name), metaData, rr.ttl)
		pipe.SAdd(ctx, rr.indexKey(), name)
		return nil
	})
	if err != nil {
		return LayoutMeta{}, fmt.Errorf("failed to save layout: %w", err)
	}
	return meta, nil
}

// Load реализует LayoutRepo.Load
func (rr *RedisLayoutRepo) Load(ctx context.Context, name string) ([]world.Record, LayoutMeta, error) {
	if err := ValidateName(name); err != nil {
		return nil, LayoutMeta{}, err
	}

	pipe := rr.client.Pipeline()
	dataCmd := pipe.Get(ctx, rr.dataKey(name))
	metaCmd := pipe.Get(ctx, rr.metaKey(name))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, LayoutMeta{}, fmt.Errorf("failed to get layout: %w", err)
	}

	data, err := dataCmd.Bytes()
	if err == redis.Nil {
		return nil, LayoutMeta{}, ErrLayoutNotFound
	} else if err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("failed to get layout: %w", err)
	}
	metaData, err := metaCmd.Bytes()
	if err == redis.Nil {
		return nil, LayoutMeta{}, ErrLayoutNotFound
	} else if err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("failed to get layout meta: %w", err)
	}

	var meta LayoutMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("failed to unmarshal layout meta: %w", err)
	}
	records, err := decodeLayout(data)
	if err != nil {
		return nil, LayoutMeta{}, err
	}
	return records, meta, nil
}

// Delete реализует LayoutRepo.Delete
func (rr *RedisLayoutRepo) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	var removed *redis.IntCmd
	_, err := rr.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rr.dataKey(name))
		removed = pipe.Del(ctx, rr.metaKey(name))
		pipe.SRem(ctx, rr.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	if removed.Val() == 0 {
		return ErrLayoutNotFound
	}
	return nil
}

// List реализует LayoutRepo.List. Имена с истёкшим TTL вычищаются из индекса.
func (rr *RedisLayoutRepo) List(ctx context.Context) ([]LayoutMeta, error) {
	names, err := rr.client.SMembers(ctx, rr.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list layouts: %w", err)
	}

	metas := make([]LayoutMeta, 0, len(names))
	if len(names) == 0 {
		return metas, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = rr.metaKey(name)
	}

	values, err := rr.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get layout metas: %w", err)
	}

	stale := make([]interface{}, 0)
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, names[i])
			continue
		}

		var meta LayoutMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			logging.GetStorageLogger().Warn("⚠️ Failed to unmarshal layout meta for %s: %v", names[i], err)
			continue
		}
		metas = append(metas, meta)
	}

	if len(stale) > 0 {
		if err := rr.client.SRem(ctx, rr.indexKey(), stale...).Err(); err != nil {
			logging.GetStorageLogger().Warn("⚠️ Failed to prune layout index: %v", err)
		}
	}

	sortMetas(metas)
	return metas, nil
}

// Close закрывает соединение с Redis
func (rr *RedisLayoutRepo) Close() error {
	return rr.client.Close()
}
