package world

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxelload/internal/vec"
)

var (
	// ErrCellOccupied - в позиции уже есть живая ячейка
	ErrCellOccupied = errors.New("world: клетка занята")
	// ErrOutOfBounds - позиция вне границ мира
	ErrOutOfBounds = errors.New("world: позиция вне границ мира")
	// ErrNotFound - в позиции нет живой ячейки
	ErrNotFound = errors.New("world: ячейка не найдена")
	// ErrVoxelRegistered - ячейка уже зарегистрирована в другой позиции
	ErrVoxelRegistered = errors.New("world: ячейка уже зарегистрирована в другой позиции")
)

// Reason - причина разрушения ячейки
type Reason string

const (
	ReasonForced      Reason = "forced"      // Явный вызов Destroy
	ReasonOverload    Reason = "overload"    // Нагрузка превысила предел
	ReasonUnsupported Reason = "unsupported" // Нет пути до земли
)

// Destruction - запись о разрушенной ячейке
type Destruction struct {
	ID       VoxelID  `json:"id"`
	Position vec.Vec3 `json:"position"`
	Reason   Reason   `json:"reason"`
}

// Report - итог одной публичной операции движка вместе со всеми каскадами
type Report struct {
	ID         string        `json:"id"`
	Operation  string        `json:"operation"`
	Origin     vec.Vec3      `json:"origin"`
	Created    *VoxelID      `json:"created,omitempty"`
	Destroyed  []Destruction `json:"destroyed"`
	Recomputed int           `json:"recomputed"`
	Searches   int           `json:"searches"`
	Expanded   int           `json:"expanded"`
	Duration   time.Duration `json:"duration"`

	startedAt time.Time
}

func newReport(op string, origin vec.Vec3) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Operation: op,
		Origin:    origin,
		Destroyed: []Destruction{},
		startedAt: time.Now(),
	}
}

func (r *Report) addDestroyed(v *Voxel, reason Reason) {
	r.Destroyed = append(r.Destroyed, Destruction{ID: v.id, Position: v.position, Reason: reason})
}

func (r *Report) finish() {
	r.Duration = time.Since(r.startedAt)
}

// Count возвращает количество разрушений по причине
func (r *Report) Count(reason Reason) int {
	n := 0
	for _, d := range r.Destroyed {
		if d.Reason == reason {
			n++
		}
	}
	return n
}

// Has проверяет, была ли ячейка разрушена в ходе операции
func (r *Report) Has(id VoxelID) bool {
	for _, d := range r.Destroyed {
		if d.ID == id {
			return true
		}
	}
	return false
}

// DestroyedPositions возвращает координаты разрушенных ячеек в порядке разрушения
func (r *Report) DestroyedPositions() []vec.Vec3 {
	out := make([]vec.Vec3, len(r.Destroyed))
	for i, d := range r.Destroyed {
		out[i] = d.Position
	}
	return out
}
