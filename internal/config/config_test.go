package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/voxelload/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
physics:
  max_load: 3
  bounds:
    min: {x: -4, y: 0, z: -4}
    max: {x: 4, y: 8, z: 4}
storage:
  backend: badger
  path: /tmp/voxels
server:
  rest_port: 9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Physics.MaxLoad)
	assert.Equal(t, vec.Vec3{X: 4, Y: 8, Z: 4}, cfg.Physics.Bounds.Max)
	assert.Equal(t, 1.0, cfg.Physics.VoxelSize, "Незаданные поля сохраняют значения по умолчанию")
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
}

func TestLoad_FromEnv(t *testing.T) {
	path := writeConfig(t, "physics:\n  max_load: 11\n")
	t.Setenv("VOXEL_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Physics.MaxLoad)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "physics:\n  max_load: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: floppy\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "physics: [broken"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortFallbacks(t *testing.T) {
	var s ServerConfig
	t.Setenv("VOXEL_REST_PORT", "")
	assert.Equal(t, 8088, s.GetRESTPort())

	t.Setenv("VOXEL_METRICS_PORT", "9911")
	assert.Equal(t, 9911, s.GetMetricsPort())

	t.Setenv("VOXEL_METRICS_PORT", "not-a-port")
	assert.Equal(t, 2112, s.GetMetricsPort())
}
