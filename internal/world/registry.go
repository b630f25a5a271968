package world

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/voxelload/internal/vec"
)

// Registry - разреженная карта координата -> ячейка.
// Ячейки хранятся в арене по VoxelID; клетка ссылается на дескриптор.
// Разрушенная ячейка остаётся в арене до Release, но для Get уже отсутствует.
type Registry struct {
	mu     sync.RWMutex
	cells  map[vec.Vec3]VoxelID
	voxels map[VoxelID]*Voxel
	nextID VoxelID
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		cells:  make(map[vec.Vec3]VoxelID),
		voxels: make(map[VoxelID]*Voxel),
	}
}

// Get возвращает живую ячейку в позиции или nil
func (r *Registry) Get(pos vec.Vec3) *Voxel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.liveAt(pos)
}

func (r *Registry) liveAt(pos vec.Vec3) *Voxel {
	id, ok := r.cells[pos]
	if !ok {
		return nil
	}
	v := r.voxels[id]
	if v == nil || v.state == StateDestroyed {
		return nil
	}
	return v
}

// Set помещает ячейку в позицию; nil очищает клетку.
// Новая ячейка получает позицию клетки и регистрируется в арене. Позиция
// зарегистрированной ячейки не меняется, живую чужую ячейку Set не вытесняет.
func (r *Registry) Set(pos vec.Vec3, v *Voxel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v == nil {
		delete(r.cells, pos)
		return nil
	}
	if cur := r.liveAt(pos); cur != nil && cur != v {
		return fmt.Errorf("%w: %s", ErrCellOccupied, pos)
	}
	if v.id != 0 {
		if known, ok := r.voxels[v.id]; ok {
			if known != v || known.position != pos {
				return fmt.Errorf("%w: #%d в %s", ErrVoxelRegistered, v.id, known.position)
			}
			r.cells[pos] = v.id
			return nil
		}
	}

	if v.id == 0 {
		r.nextID++
		v.id = r.nextID
	} else if v.id > r.nextID {
		r.nextID = v.id
	}
	if v.dependants == nil {
		v.dependants = make(map[VoxelID]struct{})
	}
	v.position = pos
	r.cells[pos] = v.id
	r.voxels[v.id] = v
	return nil
}

// allocate создаёт новую живую ячейку в позиции
func (r *Registry) allocate(pos vec.Vec3) *Voxel {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	v := newVoxel(r.nextID, pos)
	r.cells[pos] = v.id
	r.voxels[v.id] = v
	return v
}

// Lookup возвращает ячейку по дескриптору в любом состоянии или nil после Release
func (r *Registry) Lookup(id VoxelID) *Voxel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.voxels[id]
}

// Release окончательно удаляет ячейку из арены. Клетка очищается, только если
// всё ещё ссылается на этот дескриптор: новая ячейка в той же позиции не трогается.
func (r *Registry) Release(id VoxelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.voxels[id]
	if !ok {
		return false
	}
	if cur, ok := r.cells[v.position]; ok && cur == id {
		delete(r.cells, v.position)
	}
	delete(r.voxels, id)
	return true
}

// NeighborsOf возвращает живых осевых соседей позиции в порядке vec.Neighbors
func (r *Registry) NeighborsOf(pos vec.Vec3) []*Voxel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Voxel, 0, len(vec.Neighbors))
	for _, dir := range vec.Neighbors {
		if n := r.liveAt(pos.Add(dir)); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Len возвращает количество живых ячеек
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, v := range r.voxels {
		if v.state == StateAlive {
			n++
		}
	}
	return n
}

// ArenaLen возвращает размер арены, включая разрушенные, но ещё не освобождённые ячейки
func (r *Registry) ArenaLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.voxels)
}

// Voxels возвращает живые ячейки, упорядоченные по vec.Vec3.Less
func (r *Registry) Voxels() []*Voxel {
	r.mu.RLock()
	out := make([]*Voxel, 0, len(r.voxels))
	for _, v := range r.voxels {
		if v.state == StateAlive {
			out = append(out, v)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].position.Less(out[j].position) })
	return out
}

// Positions возвращает координаты живых ячеек снизу вверх
func (r *Registry) Positions() []vec.Vec3 {
	voxels := r.Voxels()
	out := make([]vec.Vec3, len(voxels))
	for i, v := range voxels {
		out[i] = v.position
	}
	return out
}

// Digest возвращает xxhash от раскладки живых ячеек и их нагрузок.
// Одинаковые конструкции, построенные в одном порядке, дают одинаковый дайджест.
func (r *Registry) Digest() uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, v := range r.Voxels() {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(v.position.X), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(v.position.Y), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(v.position.Z), 10)
		buf = append(buf, ':')
		buf = strconv.AppendBool(buf, v.isBase)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(v.load), 10)
		buf = append(buf, ';')
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
