package scenario

import (
	"context"
	"io"
	"testing"

	"github.com/aquilax/go-perlin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/physics"
	"github.com/annel0/voxelload/internal/vec"
	"github.com/annel0/voxelload/internal/world"
)

func newEngine(opts ...world.Option) *world.Engine {
	base := []world.Option{
		world.WithLogger(logging.NewConsoleLogger("physics", io.Discard, logging.ERROR)),
		world.WithSource("scenario-test"),
	}
	return world.NewEngine(world.NewRegistry(), physics.FlatGround{Level: -0.5}, append(base, opts...)...)
}

func TestCube_Order(t *testing.T) {
	s := Cube(vec.Vec3{}, 3)
	require.Len(t, s.Positions, 27)
	assert.Equal(t, vec.Vec3{}, s.Positions[0])
	assert.Equal(t, vec.Vec3{Z: 1}, s.Positions[1])
	assert.Equal(t, vec.Vec3{Y: 1}, s.Positions[3])
	assert.Equal(t, vec.Vec3{X: 2, Y: 2, Z: 2}, s.Positions[26])
	assert.True(t, s.Recompute)
}

func TestRunCube(t *testing.T) {
	e := newEngine()
	res, err := Run(context.Background(), e, Cube(vec.Vec3{}, 3))
	require.NoError(t, err)

	assert.Equal(t, 27, res.Created)
	assert.Equal(t, 27, res.Recomputed)
	assert.Zero(t, res.Destroyed)
	assert.Equal(t, 27, e.Registry().Len())
	assert.Equal(t, 9, e.Stats().Base)
	require.NoError(t, e.CheckConsistency())
}

func TestRunColumn_RejectsOccupied(t *testing.T) {
	e := newEngine()
	s := Column(vec.Vec3{}, 4)

	res, err := Run(context.Background(), e, s)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)

	res, err = Run(context.Background(), e, s)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 4, res.Rejected)
}

func TestRunBridge_Overload(t *testing.T) {
	e := newEngine(world.WithMaxLoad(2))
	res, err := Run(context.Background(), e, Bridge(vec.Vec3{}, 2, 4))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Created)
	assert.Greater(t, res.ByReason[string(world.ReasonOverload)], 0, "Консоль длиннее предела ломается")
	require.NoError(t, e.CheckConsistency())
}

func TestTerrain_Deterministic(t *testing.T) {
	a := Terrain(42, 6, 6, 4)
	b := Terrain(42, 6, 6, 4)
	assert.Equal(t, a.Positions, b.Positions)
	assert.GreaterOrEqual(t, len(a.Positions), 36, "Каждая колонка не ниже одной ячейки")

	for i := 1; i < len(a.Positions); i++ {
		assert.LessOrEqual(t, a.Positions[i-1].Y, a.Positions[i].Y, "Слои строятся снизу вверх")
	}

	e := newEngine()
	res, err := Run(context.Background(), e, a)
	require.NoError(t, err)
	assert.Zero(t, res.Destroyed)
	assert.Equal(t, len(a.Positions), e.Registry().Len())
}

func TestTerrainHeight_Range(t *testing.T) {
	noise := perlin.NewPerlin(2, 2, 3, 7)
	for x := 0; x < 20; x++ {
		for z := 0; z < 20; z++ {
			h := TerrainHeight(noise, x, z, 5)
			assert.GreaterOrEqual(t, h, 1)
			assert.LessOrEqual(t, h, 5)
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		s, err := ByName(name, 3, 1)
		require.NoError(t, err, name)
		assert.NotEmpty(t, s.Positions, name)
	}

	_, err := ByName("pyramid", 3, 1)
	assert.Error(t, err)
	_, err = ByName("cube", 0, 1)
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, newEngine(), Column(vec.Vec3{}, 3))
	assert.ErrorIs(t, err, context.Canceled)
}
