package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxelload/internal/config"
	"github.com/annel0/voxelload/internal/effects"
	"github.com/annel0/voxelload/internal/eventbus"
	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/physics"
	"github.com/annel0/voxelload/internal/vec"
)

// DefaultMaxLoad - предел нагрузки по умолчанию
const DefaultMaxLoad = 6

// DefaultRemovalDelay - длительность затухания разрушенной ячейки
const DefaultRemovalDelay = 6 * time.Second

// Bounds - ограниченный мир [Min, Max] включительно
type Bounds struct {
	Min vec.Vec3
	Max vec.Vec3
}

// Engine - движок нагрузок. Все публичные операции сериализуются мьютексом;
// каскады выполняются синхронно внутри вызвавшей их операции.
type Engine struct {
	mu sync.Mutex

	registry  *Registry
	prober    physics.GroundProber
	presenter effects.Presenter
	scheduler effects.Scheduler
	bus       eventbus.EventBus
	metrics   *Metrics
	logger    *logging.Logger
	tracer    trace.Tracer

	maxLoad             int
	voxelSize           float64
	probeEpsilon        float64
	bounds              *Bounds
	removalDelay        time.Duration
	tint                bool
	source              string
	cascadeLogThreshold int

	report *Report // отчёт текущей операции
}

// Option настраивает Engine
type Option func(*Engine)

// WithMaxLoad задаёт предел нагрузки
func WithMaxLoad(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLoad = n
		}
	}
}

// WithLogger задаёт логгер движка
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPresenter задаёт визуальный коллаборатор
func WithPresenter(p effects.Presenter) Option {
	return func(e *Engine) {
		if p != nil {
			e.presenter = p
		}
	}
}

// WithScheduler задаёт планировщик отложенного удаления
func WithScheduler(s effects.Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithRemovalDelay задаёт задержку удаления разрушенной ячейки со сцены
func WithRemovalDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.removalDelay = d
		}
	}
}

// WithBounds ограничивает мир параллелепипедом
func WithBounds(min, max vec.Vec3) Option {
	return func(e *Engine) { e.bounds = &Bounds{Min: min, Max: max} }
}

// WithEventBus подключает шину событий
func WithEventBus(bus eventbus.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithMetrics подключает Prometheus-метрики
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithVoxelSize задаёт размер ячейки и запас зонда земли
func WithVoxelSize(size, probeEpsilon float64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.voxelSize = size
		}
		if probeEpsilon >= 0 {
			e.probeEpsilon = probeEpsilon
		}
	}
}

// WithTint включает окраску ячеек по нагрузке
func WithTint(enabled bool) Option {
	return func(e *Engine) { e.tint = enabled }
}

// WithSource задаёт имя источника событий
func WithSource(source string) Option {
	return func(e *Engine) {
		if source != "" {
			e.source = source
		}
	}
}

// WithCascadeLogThreshold задаёт размер каскада, начиная с которого он пишется на INFO
func WithCascadeLogThreshold(n int) Option {
	return func(e *Engine) { e.cascadeLogThreshold = n }
}

// ConfigOptions переводит секции конфигурации в опции движка
func ConfigOptions(cfg *config.Config) []Option {
	p := cfg.Physics
	return []Option{
		WithMaxLoad(p.MaxLoad),
		WithVoxelSize(p.VoxelSize, p.ProbeEpsilon),
		WithBounds(p.Bounds.Min, p.Bounds.Max),
		WithCascadeLogThreshold(p.CascadeLogThreshold),
		WithRemovalDelay(time.Duration(cfg.Effects.RemovalDelayMs) * time.Millisecond),
		WithTint(cfg.Effects.Tint),
	}
}

// NewEngine создаёт движок над реестром и зондом земли
func NewEngine(reg *Registry, prober physics.GroundProber, opts ...Option) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	e := &Engine{
		registry:            reg,
		prober:              prober,
		presenter:           effects.NopPresenter{},
		scheduler:           effects.Immediate{},
		logger:              logging.GetPhysicsLogger(),
		tracer:              otel.Tracer("github.com/annel0/voxelload/internal/world"),
		maxLoad:             DefaultMaxLoad,
		voxelSize:           1,
		probeEpsilon:        physics.DefaultProbeEpsilon,
		removalDelay:        DefaultRemovalDelay,
		source:              "voxelload-" + uuid.NewString()[:8],
		cascadeLogThreshold: 16,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry возвращает реестр движка
func (e *Engine) Registry() *Registry { return e.registry }

// MaxLoad возвращает предел нагрузки
func (e *Engine) MaxLoad() int { return e.maxLoad }

// Source возвращает имя источника событий
func (e *Engine) Source() string { return e.source }

// CreateVoxel создаёт ячейку в свободной позиции, определяет контакт с землёй
// и вычисляет её путь опоры. Если опоры нет, ячейка разрушается в той же операции,
// иначе пересчитываются её живые небазовые соседи.
func (e *Engine) CreateVoxel(ctx context.Context, pos vec.Vec3) (*Voxel, *Report, error) {
	ctx, span := e.tracer.Start(ctx, "world.CreateVoxel",
		trace.WithAttributes(attribute.String("voxel.position", pos.String())))
	defer span.End()

	if e.bounds != nil && !pos.Within(e.bounds.Min, e.bounds.Max) {
		return nil, nil, fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}

	e.mu.Lock()
	if e.registry.Get(pos) != nil {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrCellOccupied, pos)
	}

	rep := e.begin("create", pos)
	v := e.registry.allocate(pos)
	v.isBase = e.probeBase(pos)
	rep.Created = &v.id
	e.metrics.onCreated()
	e.logger.Debug("🧱 Создана ячейка #%d в %s (base=%v)", v.id, pos, v.isBase)

	e.recompute(v)
	if v.state == StateAlive {
		e.recomputeNeighbors(v)
	}
	e.end(rep)
	e.mu.Unlock()

	span.SetAttributes(attribute.Int("voxel.destroyed", len(rep.Destroyed)))
	e.publishReport(ctx, rep, v)
	return v, rep, nil
}

// RecomputePhysics пересчитывает путь опоры ячейки. Для разрушенной ячейки ничего не делает.
func (e *Engine) RecomputePhysics(ctx context.Context, v *Voxel) *Report {
	if v == nil {
		return nil
	}
	ctx, span := e.tracer.Start(ctx, "world.RecomputePhysics",
		trace.WithAttributes(attribute.String("voxel.position", v.position.String())))
	defer span.End()

	e.mu.Lock()
	rep := e.begin("recompute", v.position)
	if e.registry.Lookup(v.id) == v {
		e.recompute(v)
	}
	e.end(rep)
	e.mu.Unlock()

	e.publishReport(ctx, rep, nil)
	return rep
}

// Destroy разрушает ячейку и каскадно пересчитывает зависимые.
// Повторный вызов для разрушенной ячейки ничего не делает.
func (e *Engine) Destroy(ctx context.Context, v *Voxel) *Report {
	if v == nil {
		return nil
	}
	ctx, span := e.tracer.Start(ctx, "world.Destroy",
		trace.WithAttributes(attribute.String("voxel.position", v.position.String())))
	defer span.End()

	e.mu.Lock()
	rep := e.begin("destroy", v.position)
	if e.registry.Lookup(v.id) == v {
		e.destroyBatch([]*Voxel{v}, ReasonForced)
	}
	e.end(rep)
	e.mu.Unlock()

	span.SetAttributes(attribute.Int("voxel.destroyed", len(rep.Destroyed)))
	e.publishReport(ctx, rep, nil)
	return rep
}

// DestroyAt разрушает живую ячейку в позиции
func (e *Engine) DestroyAt(ctx context.Context, pos vec.Vec3) (*Report, error) {
	v := e.VoxelAt(pos)
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pos)
	}
	return e.Destroy(ctx, v), nil
}

// VoxelAt возвращает живую ячейку в позиции
func (e *Engine) VoxelAt(pos vec.Vec3) *Voxel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(pos)
}

// Inspect вызывает fn под блокировкой движка для согласованного чтения состояния
func (e *Engine) Inspect(fn func(reg *Registry)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.registry)
}

// Snapshot возвращает копии состояния всех живых ячеек снизу вверх
func (e *Engine) Snapshot() []VoxelSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	voxels := e.registry.Voxels()
	out := make([]VoxelSnapshot, len(voxels))
	for i, v := range voxels {
		out[i] = v.Snapshot()
	}
	return out
}

// CheckConsistency проверяет инварианты всех живых ячеек
func (e *Engine) CheckConsistency() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CheckConsistency(e.registry, e.maxLoad)
}

func (e *Engine) begin(op string, origin vec.Vec3) *Report {
	e.report = newReport(op, origin)
	return e.report
}

func (e *Engine) end(rep *Report) {
	rep.finish()
	e.report = nil
	e.metrics.onReport(rep)

	if n := len(rep.Destroyed); n > 0 {
		if e.cascadeLogThreshold > 0 && n >= e.cascadeLogThreshold {
			e.logger.Info("💥 Каскад %s из %s: разрушено %d ячеек (overload=%d, unsupported=%d) за %v",
				rep.Operation, rep.Origin, n, rep.Count(ReasonOverload), rep.Count(ReasonUnsupported), rep.Duration)
		} else {
			e.logger.Debug("💥 Операция %s из %s: разрушено %d ячеек", rep.Operation, rep.Origin, n)
		}
	}
}

// recomputeNeighbors пересчитывает живых небазовых соседей ячейки в порядке vec.Neighbors
func (e *Engine) recomputeNeighbors(v *Voxel) {
	for _, n := range e.registry.NeighborsOf(v.position) {
		if n.isBase {
			continue
		}
		e.recompute(n)
	}
}

// probeBase опрашивает зонд земли. Ошибка зонда трактуется как отсутствие контакта.
func (e *Engine) probeBase(pos vec.Vec3) bool {
	if e.prober == nil {
		return false
	}
	origin := vec.Vec3Float{
		X: float64(pos.X) * e.voxelSize,
		Y: float64(pos.Y) * e.voxelSize,
		Z: float64(pos.Z) * e.voxelSize,
	}
	hit, err := e.prober.ProbeGround(origin, physics.ProbeDistance(e.voxelSize, e.probeEpsilon))
	if err != nil {
		e.logger.Warn("⚠️ Зонд земли для %s вернул ошибку: %v", pos, err)
		return false
	}
	return hit
}
