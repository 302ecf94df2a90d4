package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/pixel-canvas/internal/logging"
)

// BadgerRepo реализует ProjectRepo поверх BadgerDB
type BadgerRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// badgerLogger направляет сообщения BadgerDB в логгер компонента
type badgerLogger struct {
	l *logging.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(strings.TrimSpace(format), args...)
}
func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(strings.TrimSpace(format), args...)
}
func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(format), args...)
}
func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Trace(strings.TrimSpace(format), args...)
}

// NewBadgerRepo открывает хранилище в каталоге dataPath/projects. logger может быть nil.
func NewBadgerRepo(dataPath string, logger *logging.Logger) (*BadgerRepo, error) {
	dbPath := filepath.Join(dataPath, "projects")
	opts := badger.DefaultOptions(dbPath)
	if logger == nil {
		opts.Logger = nil
	} else {
		opts.Logger = badgerLogger{l: logger}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerRepo{db: db, dbPath: dbPath, isReady: true}, nil
}

// Path каталог базы
func (r *BadgerRepo) Path() string { return r.dbPath }

// Close закрывает хранилище
func (r *BadgerRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}
	r.isReady = false
	return r.db.Close()
}

func (r *BadgerRepo) ready(ctx context.Context) error {
	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return ctx.Err()
}

func (r *BadgerRepo) SaveProject(ctx context.Context, meta ProjectMeta, data []byte) error {
	if err := validateName("проекта", meta.Name); err != nil {
		return err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return err
	}

	meta.Size = len(data)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(projectDataKey(meta.Name), data); err != nil {
			return err
		}
		return txn.Set(projectMetaKey(meta.Name), metaJSON)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения проекта %s в BadgerDB: %w", meta.Name, err)
	}
	return nil
}

func (r *BadgerRepo) LoadProject(ctx context.Context, name string) ([]byte, bool, error) {
	return r.get(ctx, projectDataKey(name))
}

func (r *BadgerRepo) Meta(ctx context.Context, name string) (ProjectMeta, bool, error) {
	data, ok, err := r.get(ctx, projectMetaKey(name))
	if err != nil || !ok {
		return ProjectMeta{}, ok, err
	}
	var meta ProjectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return ProjectMeta{}, false, fmt.Errorf("ошибка десериализации метаданных %s: %w", name, err)
	}
	return meta, true, nil
}

func (r *BadgerRepo) ListProjects(ctx context.Context) ([]ProjectMeta, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	var metas []ProjectMeta
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(projectPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), metaSuffix) {
				continue
			}
			err := item.Value(func(val []byte) error {
				var meta ProjectMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("ключ %s: %w", item.Key(), err)
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
		return nil, fmt.Errorf("ошибка чтения списка проектов: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

func (r *BadgerRepo) DeleteProject(ctx context.Context, name string) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(projectMetaKey(name)); err != nil {
			return err
		}
		if err := txn.Delete(projectDataKey(name)); err != nil {
			return err
		}
		return txn.Delete(projectMetaKey(name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("проект %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления проекта %s: %w", name, err)
	}
	return nil
}

func (r *BadgerRepo) SaveWorld(ctx context.Context, worldID string, data []byte) error {
	if err := validateName("мира", worldID); err != nil {
		return err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(worldKey(worldID), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения мира %s в BadgerDB: %w", worldID, err)
	}
	return nil
}

func (r *BadgerRepo) LoadWorld(ctx context.Context, worldID string) ([]byte, bool, error) {
	return r.get(ctx, worldKey(worldID))
}

func (r *BadgerRepo) ListWorlds(ctx context.Context) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(worldPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), worldPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка миров: %w", err)
	}
	return ids, nil
}

func (r *BadgerRepo) get(ctx context.Context, key []byte) ([]byte, bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return nil, false, err
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения %s из BadgerDB: %w", key, err)
	}
	return data, true, nil
}
