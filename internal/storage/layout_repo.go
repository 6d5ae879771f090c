// Package storage хранит именованные раскладки вокселей.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/annel0/voxel-editor/internal/layout"
	"github.com/annel0/voxel-editor/internal/world"
)

var (
	// ErrLayoutNotFound возвращается, если раскладки с таким именем нет
	ErrLayoutNotFound = errors.New("layout not found")
	// ErrInvalidName возвращается для имён вне [A-Za-z0-9_.-]{1,64}
	ErrInvalidName = errors.New("invalid layout name")
	// ErrNotReady возвращается после Close
	ErrNotReady = errors.New("хранилище не готово")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateName проверяет имя раскладки
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// LayoutMeta описывает сохранённую раскладку
type LayoutMeta struct {
	Name      string    `json:"name"`
	Voxels    int       `json:"voxels"`
	Digest    string    `json:"digest"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LayoutRepo определяет интерфейс хранилища именованных раскладок.
// Раскладка хранится в формате сохранения, сжатом zstd.
type LayoutRepo interface {
	// Save сохраняет раскладку под именем, перезаписывая существующую.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   name - имя раскладки (см. ValidateName)
	//   records - записи в формате сохранения
	// Возвращает:
	//   LayoutMeta - метаданные сохранённой раскладки
	//   error - ErrInvalidName, ErrMalformedSaveRecord или ошибка хранилища
	Save(ctx context.Context, name string, records []world.Record) (LayoutMeta, error)

	// Load загружает раскладку.
	// Возвращает:
	//   []world.Record - записи раскладки
	//   LayoutMeta - метаданные
	//   error - ErrLayoutNotFound, если раскладки нет
	Load(ctx context.Context, name string) ([]world.Record, LayoutMeta, error)

	// Delete удаляет раскладку. Отсутствующая раскладка даёт ErrLayoutNotFound.
	Delete(ctx context.Context, name string) error

	// List возвращает метаданные всех раскладок, отсортированные по имени.
	List(ctx context.Context) ([]LayoutMeta, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// encodeLayout проверяет записи и готовит сжатое тело и метаданные
func encodeLayout(name string, records []world.Record) ([]byte, LayoutMeta, error) {
	if err := ValidateName(name); err != nil {
		return nil, LayoutMeta{}, err
	}
	if _, err := world.ValidateRecords(records); err != nil {
		return nil, LayoutMeta{}, err
	}

	raw, err := layout.Encode(records)
	if err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("ошибка сериализации раскладки: %w", err)
	}
	data, err := layout.Compress(raw)
	if err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("ошибка сжатия раскладки: %w", err)
	}

	meta := LayoutMeta{
		Name:      name,
		Voxels:    len(records),
		Digest:    fmt.Sprintf("%016x", layout.Digest(records)),
		Size:      len(data),
		UpdatedAt: time.Now().UTC(),
	}
	return data, meta, nil
}

// decodeLayout разбирает тело, сохранённое encodeLayout
func decodeLayout(data []byte) ([]world.Record, error) {
	records, err := layout.DecodeAuto(data)
	if err != nil {
		return nil, fmt.Errorf("повреждённая раскладка: %w", err)
	}
	return records, nil
}
