package world

import (
	"github.com/annel0/voxelload/internal/effects"
	"github.com/annel0/voxelload/internal/vec"
)

// recompute заново вычисляет путь опоры ячейки и распределяет её нагрузку.
// Ячейка без пути разрушается вместе со всем раскрытым при поиске кластером.
func (e *Engine) recompute(v *Voxel) {
	if v == nil || v.state == StateDestroyed {
		return
	}
	if e.report != nil {
		e.report.Recomputed++
	}

	e.detach(v)
	if v.isBase {
		v.load = 0
		return
	}

	res := e.findSupport(v)
	if !res.found {
		e.logger.Trace("🕳️ Нет опоры для %s, кластер из %d ячеек", v.position, len(res.explored))
		e.destroyBatch(res.explored, ReasonUnsupported)
		return
	}

	// Вертикальный участок цепочки несёт одну единицу нагрузки: заряжается
	// первое звено и каждое звено, где направление меняется.
	for i, p := range res.chain {
		charged := i == 0 || p.position != res.chain[i-1].position.Add(vec.Down)

		p.addDependant(v.id)
		v.path = append(v.path, PathLink{ID: p.id, Position: p.position, Charged: charged})
		if charged && !e.incrementLoad(p) {
			return
		}
	}
}

// detach снимает нагрузку ячейки со всех звеньев её текущего пути
func (e *Engine) detach(v *Voxel) {
	for _, link := range v.path {
		p := e.registry.Lookup(link.ID)
		if p == nil {
			continue
		}
		if link.Charged {
			e.decrementLoad(p)
		}
		p.removeDependant(v.id)
	}
	v.path = nil
}

// incrementLoad добавляет единицу нагрузки. false означает, что ячейка
// разрушена (раньше или только что от перегрузки) и распространение надо прекратить.
func (e *Engine) incrementLoad(p *Voxel) bool {
	if p.state == StateDestroyed {
		return false
	}
	if p.isBase {
		return true
	}

	p.load++
	e.applyTint(p)
	if p.load > e.maxLoad {
		e.logger.Debug("🏋️ Перегрузка ячейки %s: %d > %d", p.position, p.load, e.maxLoad)
		e.destroyBatch([]*Voxel{p}, ReasonOverload)
		return false
	}
	return true
}

// decrementLoad снимает единицу нагрузки, не опускаясь ниже нуля
func (e *Engine) decrementLoad(p *Voxel) {
	if p.isBase {
		return
	}
	if p.load > 0 {
		p.load--
	}
	if p.state == StateAlive {
		e.applyTint(p)
	}
}

func (e *Engine) applyTint(p *Voxel) {
	if !e.tint {
		return
	}
	tint := effects.TintForRatio(effects.LoadRatio(p.load, e.maxLoad))
	pos := p.position
	effects.Safe(e.logger, "tint", func() { e.presenter.SetTint(pos, tint) })
}
