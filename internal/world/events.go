package world

import (
	"context"

	"github.com/annel0/voxelload/internal/eventbus"
	"github.com/annel0/voxelload/internal/vec"
)

// Типы событий движка
const (
	EventVoxelCreated   = "voxel.created"
	EventVoxelDestroyed = "voxel.destroyed"
	EventVoxelCascade   = "voxel.cascade"
)

// VoxelCreatedEvent полезная нагрузка voxel.created
type VoxelCreatedEvent struct {
	ID       VoxelID  `json:"id"`
	Position vec.Vec3 `json:"position"`
	IsBase   bool     `json:"is_base"`
}

// VoxelDestroyedEvent полезная нагрузка voxel.destroyed
type VoxelDestroyedEvent struct {
	ID       VoxelID  `json:"id"`
	Position vec.Vec3 `json:"position"`
	Reason   Reason   `json:"reason"`
}

// CascadeEvent полезная нагрузка voxel.cascade: сводка по операции с разрушениями
type CascadeEvent struct {
	Operation   string         `json:"operation"`
	Origin      vec.Vec3       `json:"origin"`
	Destroyed   int            `json:"destroyed"`
	ByReason    map[Reason]int `json:"by_reason"`
	Recomputed  int            `json:"recomputed"`
	DurationSec float64        `json:"duration_sec"`
}

// Приоритеты событий для backpressure шины
const (
	priorityCreated   = 3
	priorityDestroyed = 7
	priorityCascade   = 8
)

// publishReport рассылает события операции. Вызывается без блокировки движка.
func (e *Engine) publishReport(ctx context.Context, rep *Report, created *Voxel) {
	if e.bus == nil || rep == nil {
		return
	}

	if created != nil {
		e.publish(ctx, rep, EventVoxelCreated, priorityCreated, VoxelCreatedEvent{
			ID:       created.id,
			Position: created.position,
			IsBase:   created.isBase,
		})
	}

	for _, d := range rep.Destroyed {
		e.publish(ctx, rep, EventVoxelDestroyed, priorityDestroyed, VoxelDestroyedEvent(d))
	}

	if len(rep.Destroyed) > 0 {
		byReason := make(map[Reason]int)
		for _, d := range rep.Destroyed {
			byReason[d.Reason]++
		}
		e.publish(ctx, rep, EventVoxelCascade, priorityCascade, CascadeEvent{
			Operation:   rep.Operation,
			Origin:      rep.Origin,
			Destroyed:   len(rep.Destroyed),
			ByReason:    byReason,
			Recomputed:  rep.Recomputed,
			DurationSec: rep.Duration.Seconds(),
		})
	}
}

func (e *Engine) publish(ctx context.Context, rep *Report, eventType string, priority int, payload interface{}) {
	ev, err := eventbus.NewEnvelope(e.source, eventType, payload)
	if err != nil {
		e.logger.Error("❌ Не удалось упаковать событие %s: %v", eventType, err)
		return
	}
	ev.CorrelationID = rep.ID
	ev.Priority = priority
	ev.Metadata = map[string]string{"operation": rep.Operation}

	if err := e.bus.Publish(ctx, ev); err != nil {
		e.logger.Warn("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}
