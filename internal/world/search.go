package world

import (
	"github.com/annel0/voxelload/internal/pqueue"
	"github.com/annel0/voxelload/internal/vec"
)

// frontierItem - элемент очереди поиска; cost фиксируется на момент вставки,
// чтобы отличать устаревшие записи.
type frontierItem struct {
	voxel *Voxel
	cost  int
}

// searchResult - итог поиска пути опоры
type searchResult struct {
	found    bool
	chain    []*Voxel // от ближайшей опоры к базовой ячейке
	explored []*Voxel // раскрытые ячейки в порядке раскрытия, включая стартовую
	blocked  int      // соседей отброшено из-за насыщения
}

// findSupport ищет путь опоры в обход насыщенных ячеек. Если путь существует
// только через насыщенные ячейки, они допускаются: перегрузка разрушит слабое звено.
func (e *Engine) findSupport(start *Voxel) searchResult {
	res := e.search(start, true)
	if res.found {
		e.metrics.onSearch("found", len(res.explored))
		return res
	}
	if res.blocked == 0 {
		e.metrics.onSearch("unsupported", len(res.explored))
		return res
	}

	e.logger.Trace("🔁 Путь для %s есть только через насыщенные ячейки (%d), повторный поиск",
		start.position, res.blocked)
	saturated := e.search(start, false)
	if saturated.found {
		e.metrics.onSearch("saturated", len(saturated.explored))
	} else {
		e.metrics.onSearch("unsupported", len(saturated.explored))
	}
	return saturated
}

// search - поиск кратчайшего пути до базовой ячейки.
// Шаг строго вниз бесплатен, любой другой стоит 1. Приоритет соседа равен
// стоимости пути плюс его высота и нагрузка: поиск предпочитает низкие и
// разгруженные ячейки. Успех засчитывается только при извлечении базовой ячейки.
func (e *Engine) search(start *Voxel, respectCapacity bool) searchResult {
	var res searchResult
	if e.report != nil {
		e.report.Searches++
	}

	frontier := pqueue.New[frontierItem, int]()
	cost := map[VoxelID]int{start.id: 0}
	prev := make(map[VoxelID]*Voxel)
	explored := make(map[VoxelID]struct{})

	frontier.Insert(frontierItem{voxel: start, cost: 0}, 0)

	for frontier.Len() > 0 {
		item, _, _ := frontier.PopBest()
		cur := item.voxel
		if item.cost != cost[cur.id] {
			continue // устаревшая запись
		}
		if _, seen := explored[cur.id]; !seen {
			explored[cur.id] = struct{}{}
			res.explored = append(res.explored, cur)
		}
		if e.report != nil {
			e.report.Expanded++
		}

		if cur.isBase && cur != start {
			res.found = true
			res.chain = reconstructChain(prev, start, cur)
			return res
		}

		below := cur.position.Add(vec.Down)
		for _, n := range e.registry.NeighborsOf(cur.position) {
			if n == start {
				continue
			}
			if respectCapacity && !n.isBase && n.load >= e.maxLoad {
				res.blocked++
				continue
			}

			step := 1
			if n.position == below {
				step = 0
			}
			tentative := cost[cur.id] + step
			if known, ok := cost[n.id]; ok && tentative >= known {
				continue
			}
			cost[n.id] = tentative
			prev[n.id] = cur
			frontier.Insert(frontierItem{voxel: n, cost: tentative}, tentative+n.position.Y+n.load)
		}
	}

	return res
}

// reconstructChain разворачивает цепочку предков от базовой ячейки к стартовой
func reconstructChain(prev map[VoxelID]*Voxel, start, base *Voxel) []*Voxel {
	var chain []*Voxel
	for cur := base; cur != nil && cur != start; cur = prev[cur.id] {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
