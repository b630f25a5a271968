package storage

import (
	"context"
	"sync"

	"github.com/annel0/voxelload/internal/vec"
)

// MemoryLayoutRepo реализует LayoutRepo в памяти.
// Используется по умолчанию и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryLayoutRepo struct {
	mu        sync.RWMutex
	cells     map[vec.Vec3]struct{}
	snapshots map[string][]byte
	closed    bool
}

// NewMemoryLayoutRepo создает новый репозиторий раскладки в памяти
func NewMemoryLayoutRepo() *MemoryLayoutRepo {
	return &MemoryLayoutRepo{
		cells:     make(map[vec.Vec3]struct{}),
		snapshots: make(map[string][]byte),
	}
}

// Save реализует LayoutRepo
func (r *MemoryLayoutRepo) Save(ctx context.Context, pos vec.Vec3) error {
	return r.BatchSave(ctx, []vec.Vec3{pos})
}

// BatchSave реализует LayoutRepo
func (r *MemoryLayoutRepo) BatchSave(ctx context.Context, positions []vec.Vec3) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for _, pos := range positions {
		r.cells[pos] = struct{}{}
	}
	return nil
}

// Delete реализует LayoutRepo
func (r *MemoryLayoutRepo) Delete(ctx context.Context, pos vec.Vec3) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	delete(r.cells, pos)
	return nil
}

// LoadAll реализует LayoutRepo
func (r *MemoryLayoutRepo) LoadAll(ctx context.Context) ([]vec.Vec3, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	out := make([]vec.Vec3, 0, len(r.cells))
	for pos := range r.cells {
		out = append(out, pos)
	}
	sortPositions(out)
	return out, nil
}

// SaveSnapshot реализует SnapshotStore
func (r *MemoryLayoutRepo) SaveSnapshot(ctx context.Context, name string, positions []vec.Vec3) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	data, err := EncodeLayout(positions)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.snapshots[name] = data
	return nil
}

// LoadSnapshot реализует SnapshotStore
func (r *MemoryLayoutRepo) LoadSnapshot(ctx context.Context, name string) ([]vec.Vec3, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	data, ok := r.snapshots[name]
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return nil, false, ErrClosed
	}
	if !ok {
		return nil, false, nil
	}
	positions, err := DecodeLayout(data)
	if err != nil {
		return nil, false, err
	}
	return positions, true, nil
}

// Count возвращает количество занятых позиций (для отладки)
func (r *MemoryLayoutRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}

// Close реализует LayoutRepo
func (r *MemoryLayoutRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
