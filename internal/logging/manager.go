package logging

import (
	"fmt"
	"os"
	"sync"
)

// Компоненты движка, у каждого свой файл логов
const (
	ComponentPhysics = "physics"
	ComponentStorage = "storage"
	ComponentServer  = "server"
	ComponentEvents  = "events"
	ComponentEffects = "effects"
)

// LoggerManager хранит логгеры компонентов и общие для них пороги уровней
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	levels  *[2]LogLevel // console, file; nil - пороги NewLogger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return globalManager
}

// Logger возвращает логгер компонента, создавая его при первом обращении.
// Если файл логов открыть не удалось, компонент пишет только в stdout.
func (lm *LoggerManager) Logger(component string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, ok := lm.loggers[component]; ok {
		return logger
	}

	logger, err := NewLogger(component)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️ Логгер %s без файла: %v\n", component, err)
		logger = NewConsoleLogger(component, os.Stdout, INFO)
	}
	if lm.levels != nil {
		logger.SetLevels(lm.levels[0], lm.levels[1])
	}
	lm.loggers[component] = logger
	return logger
}

// SetLevels задаёт пороги всем уже созданным и будущим логгерам компонентов
func (lm *LoggerManager) SetLevels(console, file LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.levels = &[2]LogLevel{console, file}
	for _, logger := range lm.loggers {
		logger.SetLevels(console, file)
	}
}

// CloseAll закрывает файлы всех логгеров компонентов
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("ошибка закрытия логгера %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// GetComponentLogger возвращает логгер компонента из глобального менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().Logger(component)
}

func GetPhysicsLogger() *Logger { return GetComponentLogger(ComponentPhysics) }

func GetServerLogger() *Logger { return GetComponentLogger(ComponentServer) }

func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }
