package world

// Stats - сводка по состоянию конструкции
type Stats struct {
	Live        int     `json:"live"`
	Base        int     `json:"base"`
	PendingFree int     `json:"pending_free"` // разрушены, но ещё не освобождены
	MaxLoad     int     `json:"max_load"`
	PeakLoad    int     `json:"peak_load"`
	MeanLoad    float64 `json:"mean_load"`
	Saturated   int     `json:"saturated"` // нагрузка равна пределу
	Digest      uint64  `json:"digest"`
}

// Stats собирает сводку под блокировкой движка
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	voxels := e.registry.Voxels()
	s := Stats{
		Live:        len(voxels),
		PendingFree: e.registry.ArenaLen() - len(voxels),
		MaxLoad:     e.maxLoad,
		Digest:      e.registry.Digest(),
	}

	total, loaded := 0, 0
	for _, v := range voxels {
		if v.isBase {
			s.Base++
			continue
		}
		loaded++
		total += v.load
		if v.load > s.PeakLoad {
			s.PeakLoad = v.load
		}
		if v.load >= e.maxLoad {
			s.Saturated++
		}
	}
	if loaded > 0 {
		s.MeanLoad = float64(total) / float64(loaded)
	}
	return s
}
