package storage

import (
	"context"
	"sync/atomic"

	"github.com/annel0/voxelload/internal/eventbus"
	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/world"
)

// Recorder поддерживает раскладку в хранилище по событиям движка
type Recorder struct {
	repo   LayoutRepo
	logger *logging.Logger
	sub    eventbus.Subscription

	saved   atomic.Uint64
	deleted atomic.Uint64
	failed  atomic.Uint64
}

// RecorderStats - счётчики записанных изменений
type RecorderStats struct {
	Saved   uint64 `json:"saved"`
	Deleted uint64 `json:"deleted"`
	Failed  uint64 `json:"failed"`
}

// StartRecorder подписывается на voxel.created и voxel.destroyed
func StartRecorder(ctx context.Context, bus eventbus.EventBus, repo LayoutRepo, logger *logging.Logger) (*Recorder, error) {
	if logger == nil {
		logger = logging.GetStorageLogger()
	}
	r := &Recorder{repo: repo, logger: logger}

	filter := eventbus.Filter{Types: []string{world.EventVoxelCreated, world.EventVoxelDestroyed}}
	sub, err := bus.Subscribe(ctx, filter, r.handle)
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *Recorder) handle(ctx context.Context, ev *eventbus.Envelope) {
	switch ev.EventType {
	case world.EventVoxelCreated:
		var payload world.VoxelCreatedEvent
		if err := ev.Decode(&payload); err != nil {
			r.fail(ev, err)
			return
		}
		if err := r.repo.Save(ctx, payload.Position); err != nil {
			r.fail(ev, err)
			return
		}
		r.saved.Add(1)

	case world.EventVoxelDestroyed:
		var payload world.VoxelDestroyedEvent
		if err := ev.Decode(&payload); err != nil {
			r.fail(ev, err)
			return
		}
		if err := r.repo.Delete(ctx, payload.Position); err != nil {
			r.fail(ev, err)
			return
		}
		r.deleted.Add(1)
	}
}

func (r *Recorder) fail(ev *eventbus.Envelope, err error) {
	r.failed.Add(1)
	r.logger.Error("❌ Не удалось записать %s (%s): %v", ev.EventType, ev.ID, err)
}

// Stats возвращает счётчики
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Saved:   r.saved.Load(),
		Deleted: r.deleted.Load(),
		Failed:  r.failed.Load(),
	}
}

// Stop отписывается от шины
func (r *Recorder) Stop() {
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
}
