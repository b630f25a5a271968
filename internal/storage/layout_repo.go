// Package storage сохраняет раскладку конструкции: множество занятых ячеек.
// Нагрузки и пути опоры не сохраняются, они вычисляются заново при восстановлении.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/annel0/voxelload/internal/config"
	"github.com/annel0/voxelload/internal/vec"
)

// ErrClosed возвращается при обращении к закрытому хранилищу
var ErrClosed = errors.New("storage: хранилище закрыто")

// LayoutRepo определяет интерфейс хранилища раскладки
type LayoutRepo interface {
	// Save отмечает позицию занятой
	Save(ctx context.Context, pos vec.Vec3) error

	// Delete освобождает позицию. Отсутствующая позиция не считается ошибкой.
	Delete(ctx context.Context, pos vec.Vec3) error

	// BatchSave отмечает занятыми несколько позиций одной операцией
	BatchSave(ctx context.Context, positions []vec.Vec3) error

	// LoadAll возвращает все занятые позиции снизу вверх (vec.Vec3.Less)
	LoadAll(ctx context.Context) ([]vec.Vec3, error)

	// Close освобождает ресурсы хранилища
	Close() error
}

// SnapshotStore - хранилище именованных сжатых снимков раскладки
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, name string, positions []vec.Vec3) error
	LoadSnapshot(ctx context.Context, name string) ([]vec.Vec3, bool, error)
}

// Open создаёт хранилище по секции конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (LayoutRepo, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLayoutRepo(), nil
	case "badger":
		return NewBadgerLayoutRepo(cfg.Path)
	case "redis":
		rc := DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			rc.Addr = cfg.RedisAddr
		}
		if cfg.RedisKey != "" {
			rc.Key = cfg.RedisKey
		}
		return NewRedisLayoutRepo(ctx, rc)
	default:
		return nil, fmt.Errorf("storage: неизвестное хранилище %q", cfg.Backend)
	}
}

func sortPositions(positions []vec.Vec3) {
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
