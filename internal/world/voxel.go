// Package world содержит структурную модель мира: реестр ячеек и движок
// нагрузок, который ищет для каждой ячейки путь опоры до земли, распределяет
// нагрузку вдоль пути и каскадно разрушает конструкции без опоры.
package world

import (
	"sort"

	"github.com/annel0/voxelload/internal/vec"
)

// VoxelID - стабильный дескриптор ячейки в реестре.
// Идентификаторы не переиспользуются, поэтому устаревший дескриптор никогда
// не указывает на новую ячейку в той же позиции.
type VoxelID uint64

// State - состояние жизненного цикла ячейки
type State uint8

const (
	StateAlive     State = iota // Участвует в физике
	StateDestroyed              // Разрушена, ожидает удаления со сцены
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// PathLink - звено пути опоры.
// Charged=false означает вертикальное сжатие: звено лежит строго под
// предыдущим и нагрузку от этой ячейки не получает.
type PathLink struct {
	ID       VoxelID  `json:"id"`
	Position vec.Vec3 `json:"position"`
	Charged  bool     `json:"charged"`
}

// Voxel - единичная ячейка конструкции.
// Поля изменяются только движком под его блокировкой.
type Voxel struct {
	id       VoxelID
	position vec.Vec3
	state    State
	isBase   bool
	load     int

	path       []PathLink           // от ближайшей опоры к базовой ячейке
	dependants map[VoxelID]struct{} // ячейки, чей путь проходит через эту
}

func newVoxel(id VoxelID, pos vec.Vec3) *Voxel {
	return &Voxel{
		id:         id,
		position:   pos,
		state:      StateAlive,
		dependants: make(map[VoxelID]struct{}),
	}
}

// ID возвращает дескриптор ячейки
func (v *Voxel) ID() VoxelID { return v.id }

// Position возвращает координату ячейки
func (v *Voxel) Position() vec.Vec3 { return v.position }

// State возвращает состояние жизненного цикла
func (v *Voxel) State() State { return v.state }

// IsDestroyed сообщает, разрушена ли ячейка
func (v *Voxel) IsDestroyed() bool { return v.state == StateDestroyed }

// IsBase сообщает, стоит ли ячейка на земле
func (v *Voxel) IsBase() bool { return v.isBase }

// Load возвращает текущую нагрузку
func (v *Voxel) Load() int { return v.load }

// SupportPath возвращает дескрипторы пути опоры: первый элемент - ближайшая
// опора, последний - базовая ячейка. Пустой путь у базовой ячейки.
func (v *Voxel) SupportPath() []VoxelID {
	ids := make([]VoxelID, len(v.path))
	for i, link := range v.path {
		ids[i] = link.ID
	}
	return ids
}

// SupportLinks возвращает копию звеньев пути опоры
func (v *Voxel) SupportLinks() []PathLink {
	links := make([]PathLink, len(v.path))
	copy(links, v.path)
	return links
}

// Dependants возвращает отсортированные дескрипторы зависимых ячеек
func (v *Voxel) Dependants() []VoxelID {
	ids := make([]VoxelID, 0, len(v.dependants))
	for id := range v.dependants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasDependant проверяет, проходит ли путь ячейки id через v
func (v *Voxel) HasDependant(id VoxelID) bool {
	_, ok := v.dependants[id]
	return ok
}

// Snapshot возвращает сериализуемое представление ячейки
func (v *Voxel) Snapshot() VoxelSnapshot {
	return VoxelSnapshot{
		ID:         v.id,
		Position:   v.position,
		State:      v.state.String(),
		IsBase:     v.isBase,
		Load:       v.load,
		Path:       v.SupportLinks(),
		Dependants: v.Dependants(),
	}
}

// VoxelSnapshot - отвязанная от движка копия состояния ячейки
type VoxelSnapshot struct {
	ID         VoxelID    `json:"id"`
	Position   vec.Vec3   `json:"position"`
	State      string     `json:"state"`
	IsBase     bool       `json:"is_base"`
	Load       int        `json:"load"`
	Path       []PathLink `json:"path"`
	Dependants []VoxelID  `json:"dependants"`
}

func (v *Voxel) addDependant(id VoxelID) {
	v.dependants[id] = struct{}{}
}

func (v *Voxel) removeDependant(id VoxelID) {
	delete(v.dependants, id)
}
