package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []world.Record {
	return []world.Record{
		{Position: vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, Color: 0xDF1F1F},
		{Position: vec.Vec3Float{X: 0.5, Y: 1.5, Z: 0.5}, Color: 0x1FDF50},
		{Position: vec.Vec3Float{X: -3.5, Y: 0.5, Z: 2.5}, Color: 0x303030},
	}
}

// exerciseRepo прогоняет общий контракт LayoutRepo
func exerciseRepo(t *testing.T, repo LayoutRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		meta, err := repo.Save(ctx, "house", sampleRecords())
		require.NoError(t, err)
		assert.Equal(t, "house", meta.Name)
		assert.Equal(t, 3, meta.Voxels)
		assert.Len(t, meta.Digest, 16)
		assert.Greater(t, meta.Size, 0)

		records, loaded, err := repo.Load(ctx, "house")
		require.NoError(t, err)
		assert.Equal(t, sampleRecords(), records)
		assert.Equal(t, meta.Digest, loaded.Digest)
		assert.Equal(t, meta.Voxels, loaded.Voxels)
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := repo.Save(ctx, "house", sampleRecords()[:1])
		require.NoError(t, err)

		records, meta, err := repo.Load(ctx, "house")
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 1, meta.Voxels)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, _, err := repo.Load(ctx, "missing")
		assert.True(t, errors.Is(err, ErrLayoutNotFound))
	})

	t.Run("Invalid Name", func(t *testing.T) {
		_, err := repo.Save(ctx, "../escape", sampleRecords())
		assert.True(t, errors.Is(err, ErrInvalidName))
		_, _, err = repo.Load(ctx, "")
		assert.True(t, errors.Is(err, ErrInvalidName))
	})

	t.Run("Malformed Records Rejected", func(t *testing.T) {
		bad := []world.Record{{Position: vec.Vec3Float{X: 0.25, Y: 0.5, Z: 0.5}, Color: 1}}
		_, err := repo.Save(ctx, "bad", bad)
		assert.True(t, errors.Is(err, world.ErrMalformedSaveRecord))

		_, _, err = repo.Load(ctx, "bad")
		assert.True(t, errors.Is(err, ErrLayoutNotFound))
	})

	t.Run("Empty Layout", func(t *testing.T) {
		meta, err := repo.Save(ctx, "empty", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, meta.Voxels)

		records, _, err := repo.Load(ctx, "empty")
		require.NoError(t, err)
		assert.Len(t, records, 0)
	})

	t.Run("List Sorted", func(t *testing.T) {
		_, err := repo.Save(ctx, "attic", sampleRecords())
		require.NoError(t, err)

		metas, err := repo.List(ctx)
		require.NoError(t, err)

		names := make([]string, len(metas))
		for i, m := range metas {
			names[i] = m.Name
		}
		assert.Equal(t, []string{"attic", "empty", "house"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "attic"))
		assert.True(t, errors.Is(repo.Delete(ctx, "attic"), ErrLayoutNotFound))

		_, _, err := repo.Load(ctx, "attic")
		assert.True(t, errors.Is(err, ErrLayoutNotFound))
	})
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("tower-1.v2_final"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName(".."))
	assert.Error(t, ValidateName("a/b"))
	assert.Error(t, ValidateName("пробел"))
	assert.Error(t, ValidateName(string(make([]byte, 65))))
}

func TestMemoryLayoutRepo(t *testing.T) {
	repo := NewMemoryLayoutRepo()
	exerciseRepo(t, repo)

	require.NoError(t, repo.Close())
	_, err := repo.List(context.Background())
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestMemoryLayoutRepoCancelledContext(t *testing.T) {
	repo := NewMemoryLayoutRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Save(ctx, "house", sampleRecords())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBadgerLayoutRepo(t *testing.T) {
	repo, err := NewBadgerLayoutRepo(t.TempDir())
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	defer repo.Close()

	exerciseRepo(t, repo)
}

func TestBadgerLayoutRepoPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewBadgerLayoutRepo(dir)
	require.NoError(t, err)
	_, err = repo.Save(ctx, "house", sampleRecords())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = repo.List(ctx)
	assert.True(t, errors.Is(err, ErrNotReady))

	reopened, err := NewBadgerLayoutRepo(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, meta, err := reopened.Load(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)
	assert.Equal(t, 3, meta.Voxels)
}

func TestFileLayoutRepo(t *testing.T) {
	repo, err := NewFileLayoutRepo(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepo(t, repo)
}

func TestFileLayoutRepoPersistsAndSkipsStrayFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewFileLayoutRepo(dir)
	require.NoError(t, err)
	_, err = repo.Save(ctx, "house", sampleRecords())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	// тело без метаданных и битые метаданные не попадают в List
	layouts := filepath.Join(dir, "layouts")
	require.NoError(t, os.WriteFile(filepath.Join(layouts, "orphan"+fileDataExt), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(layouts, "broken"+fileMetaExt), []byte("{"), 0644))

	reopened, err := NewFileLayoutRepo(dir)
	require.NoError(t, err)
	defer reopened.Close()

	metas, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "house", metas[0].Name)

	records, _, err := reopened.Load(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)

	_, _, err = reopened.Load(ctx, "orphan")
	assert.ErrorIs(t, err, ErrLayoutNotFound)
}

func TestRedisLayoutRepo(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR не задан, пропускаем тест Redis")
	}

	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "voxel:test:" + time.Now().Format("150405.000000") + ":"

	repo, err := NewRedisLayoutRepo(cfg)
	if err != nil {
		t.Skipf("Redis недоступен: %v", err)
	}
	defer repo.Close()

	exerciseRepo(t, repo)
}

func TestOpen(t *testing.T) {
	repo, err := Open(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLayoutRepo{}, repo)

	cfg := DefaultConfig()
	cfg.Backend = BackendBadger
	cfg.DataPath = t.TempDir()
	repo, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &BadgerLayoutRepo{}, repo)
	require.NoError(t, repo.Close())

	cfg.Backend = BackendFile
	cfg.DataPath = t.TempDir()
	repo, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileLayoutRepo{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(Config{Backend: "mongo"})
	assert.Error(t, err)
}
