package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		"":        INFO,
		"warning": WARN,
		"Error":   ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConsoleLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger("physics", &buf, WARN)

	l.Debug("скрыто %d", 1)
	l.Info("тоже скрыто")
	l.Warn("перегрузка %s", "(1,2,3)")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [physics] перегрузка (1,2,3)")

	assert.False(t, l.Enabled(DEBUG))
	l.SetLevels(TRACE, ERROR)
	assert.True(t, l.Enabled(DEBUG))
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("logs")

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.consoleLogger.SetOutput(&bytes.Buffer{})

	l.Trace("пишется только в файл")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "Повторное закрытие безопасно")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[TRACE] [storage] пишется только в файл")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("ничего") })
}

func TestLoggerManager_SharesLevels(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("logs")

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	physics := lm.Logger(ComponentPhysics)
	assert.Same(t, physics, lm.Logger(ComponentPhysics), "Логгер компонента создаётся один раз")

	lm.SetLevels(ERROR, WARN)
	assert.False(t, physics.Enabled(INFO))

	storage := lm.Logger(ComponentStorage)
	assert.False(t, storage.Enabled(INFO), "Пороги применяются и к новым логгерам")
	assert.True(t, storage.Enabled(WARN))

	require.NoError(t, lm.CloseAll())
	assert.NotSame(t, physics, lm.Logger(ComponentPhysics), "После CloseAll логгер создаётся заново")
	require.NoError(t, lm.CloseAll())
}
