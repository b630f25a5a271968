// Package effects описывает визуальные побочные эффекты движка нагрузок:
// подсветку нагрузки и отложенное удаление разрушенной ячейки.
// Эффекты никогда не влияют на физическое состояние.
package effects

import (
	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/vec"
	"github.com/lucasb-eyer/go-colorful"
)

// Presenter - визуальный коллаборатор движка
type Presenter interface {
	// BeginRemovalEffect запускает затухание разрушенной ячейки
	BeginRemovalEffect(pos vec.Vec3)
	// FinishRemovalEffect освобождает визуальный ресурс после задержки
	FinishRemovalEffect(pos vec.Vec3)
	// SetTint окрашивает ячейку по доле нагрузки
	SetTint(pos vec.Vec3, tint colorful.Color)
}

// NopPresenter ничего не делает (headless режим)
type NopPresenter struct{}

func (NopPresenter) BeginRemovalEffect(vec.Vec3)      {}
func (NopPresenter) FinishRemovalEffect(vec.Vec3)     {}
func (NopPresenter) SetTint(vec.Vec3, colorful.Color) {}

// LogPresenter пишет эффекты в лог на уровне TRACE
type LogPresenter struct {
	Logger *logging.Logger
}

func (p LogPresenter) BeginRemovalEffect(pos vec.Vec3) {
	p.Logger.Trace("💨 затухание ячейки %s", pos)
}

func (p LogPresenter) FinishRemovalEffect(pos vec.Vec3) {
	p.Logger.Trace("🧹 ячейка %s удалена со сцены", pos)
}

func (p LogPresenter) SetTint(pos vec.Vec3, tint colorful.Color) {
	p.Logger.Trace("🎨 ячейка %s окрашена в %s", pos, tint.Hex())
}

// Safe вызывает эффект, подавляя панику коллаборатора
func Safe(logger *logging.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("эффект %s завершился паникой: %v", name, r)
		}
	}()
	fn()
}
