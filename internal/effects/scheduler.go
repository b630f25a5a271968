package effects

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/voxelload/internal/logging"
)

// Scheduler выполняет отложенные задачи "выстрелил и забыл"
type Scheduler interface {
	Schedule(delay time.Duration, task func())
}

// Immediate выполняет задачу сразу, игнорируя задержку.
// Подходит для headless-симуляции и детерминированных тестов.
type Immediate struct{}

// Schedule реализует Scheduler
func (Immediate) Schedule(_ time.Duration, task func()) {
	task()
}

// Queue - очередь отложенных задач с одним исполнителем.
// Таймеры складывают созревшие задачи в канал, воркер выполняет их последовательно.
type Queue struct {
	logger  *logging.Logger
	tasks   chan func()
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	pending sync.WaitGroup
	closed  bool
	done    chan struct{}
}

// NewQueue создаёт очередь и запускает воркер
func NewQueue(buffer int, logger *logging.Logger) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logging.Default()
	}
	q := &Queue{
		logger: logger,
		tasks:  make(chan func(), buffer),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
	go q.loop()
	return q
}

// Schedule ставит задачу в очередь после delay. После Close задачи отбрасываются.
func (q *Queue) Schedule(delay time.Duration, task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending.Add(1)

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()
		q.tasks <- task
	})
	q.timers[timer] = struct{}{}
}

// Wait блокируется, пока все запланированные задачи не выполнятся или не истечёт ctx
func (q *Queue) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close останавливает таймеры и воркер. Невыполненные задачи отбрасываются.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for timer := range q.timers {
		if timer.Stop() {
			q.pending.Done()
		}
		delete(q.timers, timer)
	}
	q.mu.Unlock()

	q.pending.Wait()
	close(q.tasks)
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for task := range q.tasks {
		Safe(q.logger, "scheduled", task)
		q.pending.Done()
	}
}
