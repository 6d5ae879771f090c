package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
)

const (
	fileDataExt = ".layout.zst"
	fileMetaExt = ".meta.json"
)

// FileLayoutRepo хранит каждую раскладку двумя файлами в каталоге:
// <name>.layout.zst с телом и <name>.meta.json с метаданными.
type FileLayoutRepo struct {
	basePath string
	mu       sync.RWMutex
	closed   bool
}

// NewFileLayoutRepo создаёт каталог <dataPath>/layouts
func NewFileLayoutRepo(dataPath string) (*FileLayoutRepo, error) {
	basePath := filepath.Join(dataPath, "layouts")
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	logging.Info("📁 Файловое хранилище раскладок: %s", basePath)
	return &FileLayoutRepo{basePath: basePath}, nil
}

func (f *FileLayoutRepo) dataFile(name string) string {
	return filepath.Join(f.basePath, name+fileDataExt)
}

func (f *FileLayoutRepo) metaFile(name string) string {
	return filepath.Join(f.basePath, name+fileMetaExt)
}

// writeAtomic пишет во временный файл и переименовывает его
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Save реализует LayoutRepo.Save. Мета пишется последней: раскладка без
// meta-файла не видна в List.
func (f *FileLayoutRepo) Save(ctx context.Context, name string, records []world.Record) (LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return LayoutMeta{}, err
	}
	data, meta, err := encodeLayout(name, records)
	if err != nil {
		return LayoutMeta{}, err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return LayoutMeta{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return LayoutMeta{}, ErrNotReady
	}

	if err := writeAtomic(f.dataFile(name), data); err != nil {
		return LayoutMeta{}, fmt.Errorf("ошибка записи раскладки %s: %w", name, err)
	}
	if err := writeAtomic(f.metaFile(name), metaData); err != nil {
		return LayoutMeta{}, fmt.Errorf("ошибка записи метаданных %s: %w", name, err)
	}
	return meta, nil
}

// Load реализует LayoutRepo.Load
func (f *FileLayoutRepo) Load(ctx context.Context, name string) ([]world.Record, LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, LayoutMeta{}, err
	}
	if err := ValidateName(name); err != nil {
		return nil, LayoutMeta{}, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, LayoutMeta{}, ErrNotReady
	}

	meta, err := f.readMeta(name)
	if err != nil {
		return nil, LayoutMeta{}, err
	}
	data, err := os.ReadFile(f.dataFile(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, LayoutMeta{}, ErrLayoutNotFound
	}
	if err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("ошибка чтения раскладки %s: %w", name, err)
	}

	records, err := decodeLayout(data)
	if err != nil {
		return nil, LayoutMeta{}, err
	}
	return records, meta, nil
}

func (f *FileLayoutRepo) readMeta(name string) (LayoutMeta, error) {
	var meta LayoutMeta
	data, err := os.ReadFile(f.metaFile(name))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, ErrLayoutNotFound
	}
	if err != nil {
		return meta, fmt.Errorf("ошибка чтения метаданных %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("повреждённые метаданные %s: %w", name, err)
	}
	return meta, nil
}

// Delete реализует LayoutRepo.Delete
func (f *FileLayoutRepo) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrNotReady
	}

	err := os.Remove(f.metaFile(name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrLayoutNotFound
	}
	if err != nil {
		return err
	}
	if err := os.Remove(f.dataFile(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List реализует LayoutRepo.List
func (f *FileLayoutRepo) List(ctx context.Context) ([]LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrNotReady
	}

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil, err
	}

	metas := make([]LayoutMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileMetaExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileMetaExt)
		meta, err := f.readMeta(name)
		if err != nil {
			logging.Warn("Пропуск раскладки %s: %v", name, err)
			continue
		}
		metas = append(metas, meta)
	}
	sortMetas(metas)
	return metas, nil
}

// Close реализует LayoutRepo.Close
func (f *FileLayoutRepo) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
