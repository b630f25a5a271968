package effects

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// BaseColor - цвет ненагруженной ячейки
	BaseColor = colorful.Color{R: 110.0 / 255, G: 110.0 / 255, B: 110.0 / 255}
	// StressColor - цвет ячейки на пределе нагрузки
	StressColor = colorful.Color{R: 200.0 / 255, G: 40.0 / 255, B: 30.0 / 255}
)

// TintForRatio возвращает цвет для доли нагрузки ratio = load / maxLoad
func TintForRatio(ratio float64) colorful.Color {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return BaseColor.BlendLab(StressColor, ratio).Clamped()
}

// LoadRatio возвращает долю нагрузки, 0 при нулевой ёмкости
func LoadRatio(load, maxLoad int) float64 {
	if maxLoad <= 0 {
		return 0
	}
	return float64(load) / float64(maxLoad)
}
