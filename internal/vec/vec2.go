package vec

import "math"

// Vec2 представляет 2D координаты колонки в горизонтальной плоскости.
// Для трёхмерной сетки Y здесь соответствует оси Z мира.
type Vec2 struct {
	X, Y int
}

// Column возвращает ячейку колонки на указанной высоте
func (v Vec2) Column(height int) Vec3 {
	return Vec3{X: v.X, Y: height, Z: v.Y}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
