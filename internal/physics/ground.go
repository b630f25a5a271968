package physics

import (
	"errors"
	"sync"

	"github.com/annel0/voxelload/internal/vec"
)

// DefaultProbeEpsilon - запас длины луча сверх половины ячейки
const DefaultProbeEpsilon = 0.1

// ErrNoGround возвращается зондом, у которого не задана опорная поверхность
var ErrNoGround = errors.New("опорная поверхность не задана")

// GroundProber проверяет контакт с землёй: луч длиной distance, выпущенный вниз
// из origin, без препятствий достигает опорной поверхности.
type GroundProber interface {
	ProbeGround(origin vec.Vec3Float, distance float64) (bool, error)
}

// ProberFunc позволяет использовать функцию как GroundProber
type ProberFunc func(origin vec.Vec3Float, distance float64) (bool, error)

// ProbeGround вызывает f(origin, distance)
func (f ProberFunc) ProbeGround(origin vec.Vec3Float, distance float64) (bool, error) {
	return f(origin, distance)
}

// ProbeDistance возвращает длину зонда для ячейки размера size: size/2 + epsilon
func ProbeDistance(size, epsilon float64) float64 {
	return size/2 + epsilon
}

// rayHitsPlane проверяет, пересекает ли вертикальный луч вниз плоскость y = level
func rayHitsPlane(origin vec.Vec3Float, distance, level float64) bool {
	return origin.Y >= level && origin.Y-distance <= level
}

// FlatGround - бесконечная горизонтальная плоскость на высоте Level
type FlatGround struct {
	Level float64
}

// ProbeGround реализует GroundProber
func (g FlatGround) ProbeGround(origin vec.Vec3Float, distance float64) (bool, error) {
	return rayHitsPlane(origin, distance, g.Level), nil
}

// PadGround - опорная поверхность только под заданными колонками (X, Z).
// Удобна для консолей и мостов, опирающихся на отдельные площадки.
type PadGround struct {
	Level float64

	mu   sync.RWMutex
	pads map[vec.Vec2]struct{}
}

// NewPadGround создаёт площадки под указанными колонками
func NewPadGround(level float64, pads ...vec.Vec2) *PadGround {
	g := &PadGround{
		Level: level,
		pads:  make(map[vec.Vec2]struct{}, len(pads)),
	}
	for _, p := range pads {
		g.pads[p] = struct{}{}
	}
	return g
}

// AddPad добавляет площадку под колонкой
func (g *PadGround) AddPad(column vec.Vec2) {
	g.mu.Lock()
	g.pads[column] = struct{}{}
	g.mu.Unlock()
}

// ProbeGround реализует GroundProber
func (g *PadGround) ProbeGround(origin vec.Vec3Float, distance float64) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.pads) == 0 {
		return false, ErrNoGround
	}
	column := vec.Vec2{X: roundHalf(origin.X), Y: roundHalf(origin.Z)}
	if _, ok := g.pads[column]; !ok {
		return false, nil
	}
	return rayHitsPlane(origin, distance, g.Level), nil
}

// roundHalf округляет координату центра к ближайшей ячейке
func roundHalf(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
