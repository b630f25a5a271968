package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Ось Y направлена вверх, плоскость XZ горизонтальна.
type Vec3 struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Единичные направления сетки
var (
	Up   = Vec3{X: 0, Y: 1, Z: 0}
	Down = Vec3{X: 0, Y: -1, Z: 0}

	// Sides содержит горизонтальных соседей (±X, ±Z)
	Sides = [4]Vec3{
		{X: 1, Y: 0, Z: 0},
		{X: -1, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 0, Y: 0, Z: -1},
	}

	// Neighbors - все шесть осевых соседей в фиксированном порядке: стороны, затем верх и низ.
	// Порядок важен для воспроизводимого выбора пути при равных приоритетах.
	Neighbors = [6]Vec3{
		Sides[0], Sides[1], Sides[2], Sides[3], Up, Down,
	}
)

// Footprint возвращает проекцию на горизонтальную плоскость (X, Z)
func (v Vec3) Footprint() Vec2 {
	return Vec2{
		X: v.X,
		Y: v.Z,
	}
}

// ToFloat переводит координату ячейки в координату её центра
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Less задаёт детерминированный порядок: сначала Y (снизу вверх), затем X, затем Z
func (v Vec3) Less(other Vec3) bool {
	if v.Y != other.Y {
		return v.Y < other.Y
	}
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Z < other.Z
}

// Within проверяет, что вектор лежит в параллелепипеде [min, max] включительно
func (v Vec3) Within(min, max Vec3) bool {
	return v.X >= min.X && v.X <= max.X &&
		v.Y >= min.Y && v.Y <= max.Y &&
		v.Z >= min.Z && v.Z <= max.Z
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

// Key упаковывает координаты в строку "x:y:z" для ключей хранилищ
func (v Vec3) Key() string {
	return fmt.Sprintf("%d:%d:%d", v.X, v.Y, v.Z)
}

// ParseKey разбирает строку, созданную Key
func ParseKey(key string) (Vec3, error) {
	var v Vec3
	if _, err := fmt.Sscanf(key, "%d:%d:%d", &v.X, &v.Y, &v.Z); err != nil {
		return Vec3{}, fmt.Errorf("некорректный ключ координат %q: %w", key, err)
	}
	return v, nil
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}
