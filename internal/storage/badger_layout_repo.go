package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/dgraph-io/badger/v3"
)

const (
	badgerDataPrefix = "layout:data:"
	badgerMetaPrefix = "layout:meta:"
)

// BadgerLayoutRepo хранит раскладки в BadgerDB.
// Тело и метаданные пишутся одной транзакцией.
type BadgerLayoutRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerLayoutRepo открывает базу в <dataPath>/layouts
func NewBadgerLayoutRepo(dataPath string) (*BadgerLayoutRepo, error) {
	dbPath := filepath.Join(dataPath, "layouts")

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем встроенный логгер BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия BadgerDB: %w", err)
	}

	logging.GetStorageLogger().Info("BadgerDB открыта: %s", dbPath)

	return &BadgerLayoutRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Save реализует LayoutRepo.Save
func (br *BadgerLayoutRepo) Save(ctx context.Context, name string, records []world.Record) (LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return LayoutMeta{}, err
	}
	data, meta, err := encodeLayout(name, records)
	if err != nil {
		return LayoutMeta{}, err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return LayoutMeta{}, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()
	if !br.isReady {
		return LayoutMeta{}, ErrNotReady
	}

	err = br.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerDataPrefix+name), data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerMetaPrefix+name), metaData)
	})
	if err != nil {
		return LayoutMeta{}, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return meta, nil
}

// Load реализует LayoutRepo.Load
func (br *BadgerLayoutRepo) Load(ctx context.Context, name string) ([]world.Record, LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, LayoutMeta{}, err
	}
	if err := ValidateName(name); err != nil {
		return nil, LayoutMeta{}, err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()
	if !br.isReady {
		return nil, LayoutMeta{}, ErrNotReady
	}

	var data, metaData []byte
	err := br.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerDataPrefix + name))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}

		item, err = txn.Get([]byte(badgerMetaPrefix + name))
		if err != nil {
			return err
		}
		metaData, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, LayoutMeta{}, ErrLayoutNotFound
	}
	if err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var meta LayoutMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, LayoutMeta{}, fmt.Errorf("ошибка десериализации метаданных: %w", err)
	}
	records, err := decodeLayout(data)
	if err != nil {
		return nil, LayoutMeta{}, err
	}
	return records, meta, nil
}

// Delete реализует LayoutRepo.Delete
func (br *BadgerLayoutRepo) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()
	if !br.isReady {
		return ErrNotReady
	}

	err := br.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(badgerMetaPrefix + name)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(badgerDataPrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerMetaPrefix + name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrLayoutNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// List реализует LayoutRepo.List
func (br *BadgerLayoutRepo) List(ctx context.Context) ([]LayoutMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()
	if !br.isReady {
		return nil, ErrNotReady
	}

	metas := make([]LayoutMeta, 0)
	prefix := []byte(badgerMetaPrefix)
	err := br.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta LayoutMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return err
				}
				metas = append(metas, meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	// Ключи Badger уже упорядочены, сортировка нужна для единообразия с другими хранилищами
	sortMetas(metas)
	return metas, nil
}

// Close закрывает базу
func (br *BadgerLayoutRepo) Close() error {
	br.mutex.Lock()
	defer br.mutex.Unlock()

	if !br.isReady {
		return nil
	}
	br.isReady = false
	return br.db.Close()
}
