package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxelload/internal/vec"
)

const (
	badgerVoxelPrefix    = "voxel:"
	badgerSnapshotPrefix = "snapshot:"
)

// BadgerLayoutRepo хранит раскладку в BadgerDB: один ключ на занятую ячейку
type BadgerLayoutRepo struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerLayoutRepo открывает BadgerDB в каталоге dataPath/layout
func NewBadgerLayoutRepo(dataPath string) (*BadgerLayoutRepo, error) {
	opts := badger.DefaultOptions(filepath.Join(dataPath, "layout"))
	return NewBadgerLayoutRepoWithOptions(opts)
}

// NewBadgerLayoutRepoWithOptions открывает BadgerDB с заданными опциями
// (например, badger.DefaultOptions("").WithInMemory(true) в тестах)
func NewBadgerLayoutRepoWithOptions(opts badger.Options) (*BadgerLayoutRepo, error) {
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerLayoutRepo{db: db, isReady: true}, nil
}

func voxelKey(pos vec.Vec3) []byte {
	return []byte(badgerVoxelPrefix + pos.Key())
}

// Save реализует LayoutRepo
func (r *BadgerLayoutRepo) Save(ctx context.Context, pos vec.Vec3) error {
	return r.BatchSave(ctx, []vec.Vec3{pos})
}

// BatchSave реализует LayoutRepo
func (r *BadgerLayoutRepo) BatchSave(ctx context.Context, positions []vec.Vec3) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return ErrClosed
	}

	// Большой батч делится на несколько транзакций по ErrTxnTooBig
	txn := r.db.NewTransaction(true)
	for _, pos := range positions {
		err := txn.Set(voxelKey(pos), []byte{1})
		if err == badger.ErrTxnTooBig {
			if err := txn.Commit(); err != nil {
				return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
			}
			txn = r.db.NewTransaction(true)
			err = txn.Set(voxelKey(pos), []byte{1})
		}
		if err != nil {
			txn.Discard()
			return fmt.Errorf("ошибка записи %s в BadgerDB: %w", pos, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Delete реализует LayoutRepo
func (r *BadgerLayoutRepo) Delete(ctx context.Context, pos vec.Vec3) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return ErrClosed
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(voxelKey(pos))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления %s из BadgerDB: %w", pos, err)
	}
	return nil
}

// LoadAll реализует LayoutRepo
func (r *BadgerLayoutRepo) LoadAll(ctx context.Context) ([]vec.Vec3, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return nil, ErrClosed
	}

	var out []vec.Vec3
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerVoxelPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), badgerVoxelPrefix)
			pos, err := vec.ParseKey(key)
			if err != nil {
				return err
			}
			out = append(out, pos)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	sortPositions(out)
	return out, nil
}

// SaveSnapshot реализует SnapshotStore
func (r *BadgerLayoutRepo) SaveSnapshot(ctx context.Context, name string, positions []vec.Vec3) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	data, err := EncodeLayout(positions)
	if err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return ErrClosed
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerSnapshotPrefix+name), data)
	})
}

// LoadSnapshot реализует SnapshotStore
func (r *BadgerLayoutRepo) LoadSnapshot(ctx context.Context, name string) ([]vec.Vec3, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, false, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.isReady {
		return nil, false, ErrClosed
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerSnapshotPrefix + name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения снимка %q: %w", name, err)
	}

	positions, err := DecodeLayout(data)
	if err != nil {
		return nil, false, err
	}
	return positions, true, nil
}

// Close закрывает хранилище данных
func (r *BadgerLayoutRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}
	r.isReady = false
	return r.db.Close()
}
