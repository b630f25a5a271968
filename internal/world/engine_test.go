package world

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelload/internal/effects"
	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/physics"
	"github.com/annel0/voxelload/internal/vec"
)

// groundLevel - плоскость земли, на которой стоят ячейки с Y = 0
const groundLevel = -0.5

func quietLogger() *logging.Logger {
	return logging.NewConsoleLogger("world", io.Discard, logging.ERROR)
}

func newTestEngine(prober physics.GroundProber, opts ...Option) *Engine {
	base := []Option{WithLogger(quietLogger()), WithSource("test")}
	return NewEngine(NewRegistry(), prober, append(base, opts...)...)
}

func flatEngine(opts ...Option) *Engine {
	return newTestEngine(physics.FlatGround{Level: groundLevel}, opts...)
}

func mustCreate(t *testing.T, e *Engine, pos vec.Vec3) *Voxel {
	t.Helper()
	v, _, err := e.CreateVoxel(context.Background(), pos)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

func requireConsistent(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.CheckConsistency())
}

// recordingPresenter запоминает вызовы визуальных эффектов
type recordingPresenter struct {
	mu       sync.Mutex
	begun    []vec.Vec3
	finished []vec.Vec3
	tints    map[vec.Vec3]colorful.Color
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{tints: make(map[vec.Vec3]colorful.Color)}
}

func (p *recordingPresenter) BeginRemovalEffect(pos vec.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.begun = append(p.begun, pos)
}

func (p *recordingPresenter) FinishRemovalEffect(pos vec.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, pos)
}

func (p *recordingPresenter) SetTint(pos vec.Vec3, tint colorful.Color) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tints[pos] = tint
}

func (p *recordingPresenter) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.begun), len(p.finished)
}

func TestCreateVoxel_OnGround(t *testing.T) {
	e := flatEngine()

	v := mustCreate(t, e, vec.Vec3{X: 0, Y: 0, Z: 0})

	assert.True(t, v.IsBase(), "Ячейка на земле должна быть базовой")
	assert.Equal(t, 0, v.Load())
	assert.Empty(t, v.SupportPath())
	assert.Equal(t, StateAlive, v.State())
	requireConsistent(t, e)
}

func TestCreateVoxel_OnTopOfBase(t *testing.T) {
	e := flatEngine()

	base := mustCreate(t, e, vec.Vec3{X: 0, Y: 0, Z: 0})
	top := mustCreate(t, e, vec.Vec3{X: 0, Y: 1, Z: 0})

	assert.False(t, top.IsBase())
	assert.Equal(t, []VoxelID{base.ID()}, top.SupportPath())
	assert.Equal(t, []VoxelID{top.ID()}, base.Dependants(), "Базовая ячейка должна знать о зависимой")
	assert.Equal(t, 0, base.Load(), "Базовая ячейка не расходует ёмкость")
	assert.True(t, top.SupportLinks()[0].Charged, "Первое звено всегда заряжается")
	requireConsistent(t, e)
}

func TestCreateVoxel_Floating(t *testing.T) {
	e := flatEngine()

	v, rep, err := e.CreateVoxel(context.Background(), vec.Vec3{X: 0, Y: 5, Z: 0})
	require.NoError(t, err)

	assert.True(t, v.IsDestroyed(), "Ячейка без опоры должна разрушиться")
	assert.Equal(t, 1, rep.Count(ReasonUnsupported))
	assert.Nil(t, e.Registry().Get(vec.Vec3{X: 0, Y: 5, Z: 0}))
	assert.Equal(t, 0, e.Registry().Len())
}

func TestCreateVoxel_Occupied(t *testing.T) {
	e := flatEngine()
	mustCreate(t, e, vec.Vec3{})

	_, _, err := e.CreateVoxel(context.Background(), vec.Vec3{})
	assert.True(t, errors.Is(err, ErrCellOccupied))
	assert.Equal(t, 1, e.Registry().Len())
}

func TestCreateVoxel_OutOfBounds(t *testing.T) {
	e := flatEngine(WithBounds(vec.Vec3{X: -2, Y: 0, Z: -2}, vec.Vec3{X: 2, Y: 4, Z: 2}))

	_, _, err := e.CreateVoxel(context.Background(), vec.Vec3{X: 3, Y: 0, Z: 0})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, _, err = e.CreateVoxel(context.Background(), vec.Vec3{X: 0, Y: -1, Z: 0})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	mustCreate(t, e, vec.Vec3{X: 2, Y: 0, Z: 2})
}

func TestCreateVoxel_ProbeErrorMeansNotBase(t *testing.T) {
	failing := physics.ProberFunc(func(vec.Vec3Float, float64) (bool, error) {
		return false, errors.New("луч недоступен")
	})
	e := newTestEngine(failing)

	v, rep, err := e.CreateVoxel(context.Background(), vec.Vec3{})
	require.NoError(t, err)
	assert.False(t, v.IsBase())
	assert.True(t, v.IsDestroyed())
	assert.Equal(t, 1, rep.Count(ReasonUnsupported))
}

func TestCantileverBridge_OverloadCascade(t *testing.T) {
	ground := physics.NewPadGround(groundLevel, vec.Vec2{X: 0, Y: 0})
	e := newTestEngine(ground, WithMaxLoad(6))

	pillar := mustCreate(t, e, vec.Vec3{X: 0, Y: 0, Z: 0})
	require.True(t, pillar.IsBase())

	var bridge []*Voxel
	for x := 1; x <= 7; x++ {
		bridge = append(bridge, mustCreate(t, e, vec.Vec3{X: x, Y: 0, Z: 0}))
		requireConsistent(t, e)
	}
	for i, v := range bridge {
		assert.False(t, v.IsDestroyed())
		assert.Equal(t, len(bridge)-1-i, v.Load(), "Нагрузка равна числу ячеек дальше по консоли")
	}
	assert.Equal(t, 6, bridge[0].Load(), "Нагрузка ровно на пределе допустима")

	last, rep, err := e.CreateVoxel(context.Background(), vec.Vec3{X: 8, Y: 0, Z: 0})
	require.NoError(t, err)

	assert.True(t, bridge[0].IsDestroyed(), "Ячейка у опоры должна разрушиться от перегрузки")
	assert.True(t, rep.Has(bridge[0].ID()))
	assert.Equal(t, 1, rep.Count(ReasonOverload))
	assert.Equal(t, 7, rep.Count(ReasonUnsupported))
	for _, v := range bridge {
		assert.True(t, v.IsDestroyed())
	}
	assert.True(t, last.IsDestroyed())

	assert.False(t, pillar.IsDestroyed())
	assert.Empty(t, pillar.Dependants())
	assert.Equal(t, 1, e.Registry().Len())
	requireConsistent(t, e)
}

func TestCreateVoxel_NewBaseTakesOverCantilever(t *testing.T) {
	e := flatEngine()

	mustCreate(t, e, vec.Vec3{})
	var bridge []*Voxel
	for x := 0; x <= 3; x++ {
		bridge = append(bridge, mustCreate(t, e, vec.Vec3{X: x, Y: 1}))
	}
	far := bridge[3]
	require.Len(t, far.SupportPath(), 4)
	assert.Equal(t, 3, bridge[0].Load())
	assert.Equal(t, 2, bridge[1].Load())
	assert.Equal(t, 1, bridge[2].Load())

	pier, rep, err := e.CreateVoxel(context.Background(), vec.Vec3{X: 3})
	require.NoError(t, err)
	require.True(t, pier.IsBase())

	assert.Empty(t, rep.Destroyed)
	assert.GreaterOrEqual(t, rep.Recomputed, 2, "Пересчитаны новая ячейка и её сосед")
	assert.Equal(t, []VoxelID{pier.ID()}, far.SupportPath(), "Край консоли опирается на новую базу")
	assert.Equal(t, []VoxelID{far.ID()}, pier.Dependants())
	assert.Equal(t, 2, bridge[0].Load())
	assert.Equal(t, 1, bridge[1].Load())
	assert.Equal(t, 0, bridge[2].Load())
	requireConsistent(t, e)
}

func TestVerticalStack_Compression(t *testing.T) {
	e := flatEngine(WithMaxLoad(2))

	base := mustCreate(t, e, vec.Vec3{})
	var stack []*Voxel
	for y := 1; y <= 8; y++ {
		stack = append(stack, mustCreate(t, e, vec.Vec3{Y: y}))
	}

	top := stack[len(stack)-1]
	assert.False(t, top.IsDestroyed(), "Вертикальная колонна не перегружается")
	assert.Len(t, top.SupportPath(), 8)
	assert.Equal(t, base.ID(), top.SupportPath()[7])

	links := top.SupportLinks()
	assert.True(t, links[0].Charged)
	for _, link := range links[1:] {
		assert.False(t, link.Charged, "Звенья строго под предыдущим не заряжаются")
	}
	for _, v := range stack[:len(stack)-1] {
		assert.Equal(t, 1, v.Load())
	}
	assert.Equal(t, 0, top.Load())
	requireConsistent(t, e)
}

func TestVerticalStack_RemoveMiddle(t *testing.T) {
	e := flatEngine()

	base := mustCreate(t, e, vec.Vec3{})
	var stack []*Voxel
	for y := 1; y <= 5; y++ {
		stack = append(stack, mustCreate(t, e, vec.Vec3{Y: y}))
	}

	rep := e.Destroy(context.Background(), stack[1])

	assert.Equal(t, 1, rep.Count(ReasonForced))
	assert.Equal(t, 3, rep.Count(ReasonUnsupported))
	for _, v := range stack[1:] {
		assert.True(t, v.IsDestroyed())
	}
	assert.False(t, stack[0].IsDestroyed())
	assert.Equal(t, 0, stack[0].Load(), "Нагрузка снята с уцелевшей ячейки")
	assert.False(t, base.IsDestroyed())
	assert.Equal(t, 2, e.Registry().Len())
	requireConsistent(t, e)
}

func TestDestroy_AlternatePath(t *testing.T) {
	e := flatEngine()

	mustCreate(t, e, vec.Vec3{X: 0})
	mustCreate(t, e, vec.Vec3{X: 2})
	left := mustCreate(t, e, vec.Vec3{X: 0, Y: 1})
	right := mustCreate(t, e, vec.Vec3{X: 2, Y: 1})
	span := mustCreate(t, e, vec.Vec3{X: 1, Y: 1})

	require.Equal(t, right.ID(), span.SupportPath()[0], "При равных приоритетах выбирается сосед +X")

	rep := e.Destroy(context.Background(), right)

	assert.Equal(t, 1, len(rep.Destroyed))
	assert.False(t, span.IsDestroyed(), "Ячейка должна найти обходной путь")
	assert.Equal(t, left.ID(), span.SupportPath()[0])
	assert.Equal(t, 1, left.Load())
	requireConsistent(t, e)
}

func TestDestroy_Idempotent(t *testing.T) {
	e := flatEngine()
	mustCreate(t, e, vec.Vec3{})
	v := mustCreate(t, e, vec.Vec3{Y: 1})

	first := e.Destroy(context.Background(), v)
	digest := e.Registry().Digest()
	second := e.Destroy(context.Background(), v)

	assert.Len(t, first.Destroyed, 1)
	assert.Empty(t, second.Destroyed)
	assert.Equal(t, digest, e.Registry().Digest())
	requireConsistent(t, e)
}

func TestRecomputePhysics(t *testing.T) {
	e := flatEngine()
	mustCreate(t, e, vec.Vec3{})
	mid := mustCreate(t, e, vec.Vec3{Y: 1})
	top := mustCreate(t, e, vec.Vec3{X: 1, Y: 1})

	before := e.Registry().Digest()
	rep := e.RecomputePhysics(context.Background(), top)
	assert.Empty(t, rep.Destroyed)
	assert.Equal(t, before, e.Registry().Digest(), "Пересчёт устойчивой конструкции ничего не меняет")
	assert.Equal(t, []VoxelID{mid.ID(), mid.SupportPath()[0]}, top.SupportPath())

	e.Destroy(context.Background(), top)
	rep = e.RecomputePhysics(context.Background(), top)
	assert.Empty(t, rep.Destroyed, "Пересчёт разрушенной ячейки ничего не делает")
	assert.Nil(t, e.RecomputePhysics(context.Background(), nil))
	requireConsistent(t, e)
}

func TestDestroy_DelayedRelease(t *testing.T) {
	presenter := newRecordingPresenter()
	queue := effects.NewQueue(8, quietLogger())
	defer queue.Close()

	e := flatEngine(
		WithPresenter(presenter),
		WithScheduler(queue),
		WithRemovalDelay(20*time.Millisecond),
	)

	old := mustCreate(t, e, vec.Vec3{})
	e.Destroy(context.Background(), old)

	assert.Nil(t, e.Registry().Get(vec.Vec3{}), "Разрушенная ячейка сразу невидима")
	assert.Equal(t, 1, e.Registry().ArenaLen(), "До истечения задержки ячейка остаётся в арене")

	replacement := mustCreate(t, e, vec.Vec3{})
	assert.NotEqual(t, old.ID(), replacement.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))

	assert.Nil(t, e.Registry().Lookup(old.ID()))
	assert.Same(t, replacement, e.Registry().Get(vec.Vec3{}), "Отложенное удаление не трогает новую ячейку")
	begun, finished := presenter.counts()
	assert.Equal(t, 1, begun)
	assert.Equal(t, 1, finished)
}

func TestTintFollowsLoad(t *testing.T) {
	presenter := newRecordingPresenter()
	e := flatEngine(WithPresenter(presenter), WithTint(true), WithMaxLoad(4))

	mustCreate(t, e, vec.Vec3{})
	mustCreate(t, e, vec.Vec3{Y: 1})
	mustCreate(t, e, vec.Vec3{X: 1, Y: 1})

	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	tint, ok := presenter.tints[vec.Vec3{Y: 1}]
	require.True(t, ok)
	assert.Equal(t, effects.TintForRatio(0.25).Hex(), tint.Hex())
}

func TestPanickingPresenterIgnored(t *testing.T) {
	e := flatEngine(WithPresenter(panicPresenter{}), WithTint(true))

	mustCreate(t, e, vec.Vec3{})
	v := mustCreate(t, e, vec.Vec3{Y: 1})
	rep := e.Destroy(context.Background(), v)

	assert.Len(t, rep.Destroyed, 1)
	requireConsistent(t, e)
}

type panicPresenter struct{}

func (panicPresenter) BeginRemovalEffect(vec.Vec3)      { panic("begin") }
func (panicPresenter) FinishRemovalEffect(vec.Vec3)     { panic("finish") }
func (panicPresenter) SetTint(vec.Vec3, colorful.Color) { panic("tint") }

func TestRandomOperations_KeepInvariants(t *testing.T) {
	e := flatEngine(WithMaxLoad(3))
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 400; i++ {
		pos := vec.Vec3{X: rng.Intn(5), Y: rng.Intn(5), Z: rng.Intn(5)}
		switch rng.Intn(4) {
		case 0:
			if v := e.VoxelAt(pos); v != nil {
				e.Destroy(ctx, v)
			}
		case 1:
			if v := e.VoxelAt(pos); v != nil {
				e.RecomputePhysics(ctx, v)
			}
		default:
			_, _, err := e.CreateVoxel(ctx, pos)
			if err != nil {
				require.ErrorIs(t, err, ErrCellOccupied)
			}
		}
		require.NoError(t, e.CheckConsistency(), "шаг %d", i)
	}
}

func TestDigest_Deterministic(t *testing.T) {
	build := func() *Engine {
		e := flatEngine()
		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				mustCreate(t, e, vec.Vec3{X: x, Y: y})
			}
		}
		return e
	}

	a, b := build(), build()
	assert.Equal(t, a.Registry().Digest(), b.Registry().Digest())

	mustCreate(t, b, vec.Vec3{X: 0, Y: 3})
	assert.NotEqual(t, a.Registry().Digest(), b.Registry().Digest())
}
