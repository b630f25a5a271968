// Package scenario генерирует детерминированные конструкции для движка нагрузок
// и прогоняет их через движок.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/voxelload/internal/vec"
)

// Scenario - именованная последовательность позиций в порядке постройки
type Scenario struct {
	Name      string
	Positions []vec.Vec3
	// Recompute - после постройки пересчитать путь опоры каждой ячейки в том же порядке
	Recompute bool
}

// Cube строит куб n*n*n в порядке x, y, z и затем пересчитывает все ячейки
func Cube(origin vec.Vec3, n int) Scenario {
	s := Scenario{Name: fmt.Sprintf("cube-%d", n), Recompute: true}
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				s.Positions = append(s.Positions, origin.Add(vec.Vec3{X: x, Y: y, Z: z}))
			}
		}
	}
	return s
}

// Column строит вертикальный столб высотой height начиная с base
func Column(base vec.Vec3, height int) Scenario {
	s := Scenario{Name: fmt.Sprintf("column-%d", height)}
	for y := 0; y < height; y++ {
		s.Positions = append(s.Positions, base.Add(vec.Vec3{Y: y}))
	}
	return s
}

// Bridge строит столб высотой height и консоль длиной span вдоль +X от его вершины
func Bridge(base vec.Vec3, height, span int) Scenario {
	s := Column(base, height)
	s.Name = fmt.Sprintf("bridge-%dx%d", height, span)
	top := base.Add(vec.Vec3{Y: height - 1})
	for i := 1; i <= span; i++ {
		s.Positions = append(s.Positions, top.Add(vec.Vec3{X: i}))
	}
	return s
}

// Terrain строит рельеф по карте высот из шума Перлина.
// Столбы строятся снизу вверх, поэтому каждая ячейка опирается на уже созданные.
func Terrain(seed int64, width, depth, maxHeight int) Scenario {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	noise := perlin.NewPerlin(alpha, beta, n, seed)

	s := Scenario{Name: fmt.Sprintf("terrain-%d", seed)}
	heights := make(map[vec.Vec2]int, width*depth)
	top := 0
	for x := 0; x < width; x++ {
		for z := 0; z < depth; z++ {
			h := TerrainHeight(noise, x, z, maxHeight)
			heights[vec.Vec2{X: x, Y: z}] = h
			if h > top {
				top = h
			}
		}
	}

	for y := 0; y < top; y++ {
		for x := 0; x < width; x++ {
			for z := 0; z < depth; z++ {
				if y < heights[vec.Vec2{X: x, Y: z}] {
					s.Positions = append(s.Positions, vec.Vec3{X: x, Y: y, Z: z})
				}
			}
		}
	}
	return s
}

// TerrainHeight возвращает высоту столба (1..maxHeight) в колонке x,z
func TerrainHeight(noise *perlin.Perlin, x, z, maxHeight int) int {
	// Шум от -1 до 1 переводим в диапазон от 0 до 1
	v := (noise.Noise2D(float64(x)/10, float64(z)/10) + 1) / 2
	h := 1 + int(v*float64(maxHeight-1)+0.5)
	if h < 1 {
		h = 1
	}
	if h > maxHeight {
		h = maxHeight
	}
	return h
}

var builders = map[string]func(size int, seed int64) Scenario{
	"cube":    func(size int, _ int64) Scenario { return Cube(vec.Vec3{}, size) },
	"column":  func(size int, _ int64) Scenario { return Column(vec.Vec3{}, size) },
	"bridge":  func(size int, _ int64) Scenario { return Bridge(vec.Vec3{}, 2, size) },
	"terrain": func(size int, seed int64) Scenario { return Terrain(seed, size, size, size) },
}

// Names возвращает имена встроенных сценариев
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName создаёт встроенный сценарий по имени
func ByName(name string, size int, seed int64) (Scenario, error) {
	build, ok := builders[name]
	if !ok {
		return Scenario{}, fmt.Errorf("scenario: неизвестный сценарий %q (доступны: %s)",
			name, strings.Join(Names(), ", "))
	}
	if size <= 0 {
		return Scenario{}, fmt.Errorf("scenario: размер должен быть положительным, получено %d", size)
	}
	return build(size, seed), nil
}

// Run строит сценарий через движок. Занятые и внешние позиции пропускаются.
func Run(ctx context.Context, eng Builder, s Scenario) (Result, error) {
	res := Result{Scenario: s.Name, ByReason: map[string]int{}}
	for _, pos := range s.Positions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		v, rep, err := eng.CreateVoxel(ctx, pos)
		if err != nil {
			res.Rejected++
			continue
		}
		res.Created++
		res.absorb(rep)
		if rep.Has(v.ID()) {
			res.Collapsed++
		}
	}

	if s.Recompute {
		for _, pos := range s.Positions {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if v := eng.VoxelAt(pos); v != nil {
				res.absorb(eng.RecomputePhysics(ctx, v))
				res.Recomputed++
			}
		}
	}
	return res, nil
}
