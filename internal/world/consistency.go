package world

import (
	"errors"
	"fmt"

	"github.com/annel0/voxelload/internal/vec"
)

// ConsistencyError перечисляет все найденные нарушения
type ConsistencyError struct {
	Violations []string
}

func (e *ConsistencyError) Error() string {
	if len(e.Violations) == 1 {
		return "world: нарушен инвариант: " + e.Violations[0]
	}
	return fmt.Sprintf("world: нарушено инвариантов: %d, первое: %s", len(e.Violations), e.Violations[0])
}

// IsConsistencyError проверяет, что err - ConsistencyError
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// CheckConsistency проверяет инварианты живых ячеек реестра:
//   - путь опоры непрерывен, состоит из живых ячеек и заканчивается базовой;
//   - связи путь/зависимые двусторонние;
//   - нагрузка равна числу зависимых, заряжающих ячейку;
//   - нагрузка не отрицательна и, если maxLoad > 0, не превышает предел.
//
// Вызывающий обязан исключить параллельные операции движка.
func CheckConsistency(reg *Registry, maxLoad int) error {
	var violations []string
	report := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	voxels := reg.Voxels()
	charges := make(map[VoxelID]int, len(voxels))

	for _, v := range voxels {
		if v.load < 0 {
			report("%s: отрицательная нагрузка %d", v.position, v.load)
		}
		if maxLoad > 0 && v.load > maxLoad {
			report("%s: нагрузка %d выше предела %d", v.position, v.load, maxLoad)
		}
		if v.isBase {
			if v.load != 0 {
				report("%s: базовая ячейка с нагрузкой %d", v.position, v.load)
			}
			if len(v.path) != 0 {
				report("%s: базовая ячейка с путём опоры", v.position)
			}
			continue
		}
		if len(v.path) == 0 {
			report("%s: живая ячейка без пути опоры", v.position)
			continue
		}

		prev := v.position
		for i, link := range v.path {
			p := reg.Lookup(link.ID)
			switch {
			case p == nil:
				report("%s: звено %d (#%d) отсутствует в реестре", v.position, i, link.ID)
				continue
			case p.state != StateAlive:
				report("%s: звено %d %s разрушено", v.position, i, p.position)
			case !p.HasDependant(v.id):
				report("%s: звено %s не знает о зависимой ячейке", v.position, p.position)
			}
			if !adjacent(prev, p.position) {
				report("%s: разрыв пути между %s и %s", v.position, prev, p.position)
			}
			if link.Charged != (i == 0 || p.position != prev.Add(vec.Down)) {
				report("%s: неверный признак сжатия у звена %s", v.position, p.position)
			}
			if link.Charged {
				charges[p.id]++
			}
			prev = p.position
		}
		if last := reg.Lookup(v.path[len(v.path)-1].ID); last != nil && !last.isBase {
			report("%s: путь не заканчивается базовой ячейкой", v.position)
		}
	}

	for _, p := range voxels {
		for _, id := range p.Dependants() {
			d := reg.Lookup(id)
			if d == nil || d.state != StateAlive {
				report("%s: зависимая ячейка #%d не жива", p.position, id)
				continue
			}
			if !pathContains(d, p.id) {
				report("%s: зависимая %s не проходит через ячейку", p.position, d.position)
			}
		}
		if p.isBase {
			continue
		}
		if p.load != charges[p.id] {
			report("%s: нагрузка %d, ожидалось %d", p.position, p.load, charges[p.id])
		}
	}

	if len(violations) > 0 {
		return &ConsistencyError{Violations: violations}
	}
	return nil
}

func adjacent(a, b vec.Vec3) bool {
	d := a.Sub(b)
	return abs(d.X)+abs(d.Y)+abs(d.Z) == 1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func pathContains(v *Voxel, id VoxelID) bool {
	for _, link := range v.path {
		if link.ID == id {
			return true
		}
	}
	return false
}
