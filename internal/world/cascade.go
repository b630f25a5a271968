package world

import "github.com/annel0/voxelload/internal/effects"

// destroyBatch разрушает набор ячеек как одно событие.
// Сначала все ячейки помечаются разрушенными, затем пересчитываются зависимые.
func (e *Engine) destroyBatch(batch []*Voxel, reason Reason) {
	fresh := make([]*Voxel, 0, len(batch))
	for _, v := range batch {
		if v == nil || v.state == StateDestroyed {
			continue
		}
		v.state = StateDestroyed
		if e.report != nil {
			e.report.addDestroyed(v, reason)
		}
		e.metrics.onDestroyed(reason)
		e.logger.Debug("🧨 Ячейка #%d %s разрушена (%s)", v.id, v.position, reason)
		fresh = append(fresh, v)
	}

	for _, v := range fresh {
		e.scheduleRemoval(v)
	}

	for _, v := range fresh {
		e.detach(v)
		for _, id := range v.Dependants() {
			if d := e.registry.Lookup(id); d != nil {
				e.recompute(d)
			}
		}
	}
}

// scheduleRemoval запускает затухание и откладывает освобождение ячейки
func (e *Engine) scheduleRemoval(v *Voxel) {
	pos, id := v.position, v.id
	effects.Safe(e.logger, "begin-removal", func() { e.presenter.BeginRemovalEffect(pos) })
	e.scheduler.Schedule(e.removalDelay, func() {
		effects.Safe(e.logger, "finish-removal", func() { e.presenter.FinishRemovalEffect(pos) })
		e.registry.Release(id)
	})
}
