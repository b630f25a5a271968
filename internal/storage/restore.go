package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/vec"
	"github.com/annel0/voxelload/internal/world"
)

// VoxelCreator - часть движка, нужная для восстановления
type VoxelCreator interface {
	CreateVoxel(ctx context.Context, pos vec.Vec3) (*world.Voxel, *world.Report, error)
}

// RestoreStats - итог восстановления раскладки
type RestoreStats struct {
	Requested int `json:"requested"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Collapsed int `json:"collapsed"`
}

// Restore пересоздаёт ячейки снизу вверх: каждая ячейка появляется после своей опоры.
// Занятые и выходящие за границы позиции пропускаются.
func Restore(ctx context.Context, positions []vec.Vec3, engine VoxelCreator, logger *logging.Logger) (RestoreStats, error) {
	if logger == nil {
		logger = logging.GetStorageLogger()
	}

	ordered := make([]vec.Vec3, len(positions))
	copy(ordered, positions)
	sortPositions(ordered)

	stats := RestoreStats{Requested: len(ordered)}
	for _, pos := range ordered {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		v, rep, err := engine.CreateVoxel(ctx, pos)
		switch {
		case errors.Is(err, world.ErrCellOccupied), errors.Is(err, world.ErrOutOfBounds):
			stats.Skipped++
			logger.Debug("⏭️ Позиция %s пропущена: %v", pos, err)
			continue
		case err != nil:
			return stats, fmt.Errorf("восстановление %s: %w", pos, err)
		}

		stats.Created++
		if rep.Has(v.ID()) {
			stats.Collapsed++
		}
	}

	logger.Info("📦 Восстановлено %d из %d ячеек (пропущено %d, обрушилось %d)",
		stats.Created-stats.Collapsed, stats.Requested, stats.Skipped, stats.Collapsed)
	return stats, nil
}

// RestoreFrom загружает раскладку из хранилища и восстанавливает её
func RestoreFrom(ctx context.Context, repo LayoutRepo, engine VoxelCreator, logger *logging.Logger) (RestoreStats, error) {
	positions, err := repo.LoadAll(ctx)
	if err != nil {
		return RestoreStats{}, err
	}
	return Restore(ctx, positions, engine, logger)
}
