package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxelload/internal/vec"
)

// Config корневая структура конфигурации симуляции.
type Config struct {
	Physics   PhysicsConfig   `yaml:"physics"`
	Effects   EffectsConfig   `yaml:"effects"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PhysicsConfig параметры движка нагрузок
type PhysicsConfig struct {
	MaxLoad             int          `yaml:"max_load"`
	VoxelSize           float64      `yaml:"voxel_size"`
	ProbeEpsilon        float64      `yaml:"probe_epsilon"`
	GroundLevel         float64      `yaml:"ground_level"`
	Bounds              BoundsConfig `yaml:"bounds"`
	CascadeLogThreshold int          `yaml:"cascade_log_threshold"`
}

// BoundsConfig задаёт ограниченный мир [Min, Max] включительно
type BoundsConfig struct {
	Min vec.Vec3 `yaml:"min"`
	Max vec.Vec3 `yaml:"max"`
}

// EffectsConfig параметры визуальных эффектов
type EffectsConfig struct {
	RemovalDelayMs int  `yaml:"removal_delay_ms"`
	Tint           bool `yaml:"tint"`
}

// StorageConfig выбор хранилища раскладки
type StorageConfig struct {
	Backend   string `yaml:"backend"` // memory | badger | redis
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// EventBusConfig параметры шины событий. Пустой URL - in-memory шина.
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

// ServerConfig порты HTTP
type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	JWTSecret   string `yaml:"jwt_secret"`
}

// TelemetryConfig OpenTelemetry
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig уровни и директория логов
type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Physics: PhysicsConfig{
			MaxLoad:      6,
			VoxelSize:    1,
			ProbeEpsilon: 0.1,
			GroundLevel:  -0.5,
			Bounds: BoundsConfig{
				Min: vec.Vec3{X: -512, Y: 0, Z: -512},
				Max: vec.Vec3{X: 512, Y: 256, Z: 512},
			},
			CascadeLogThreshold: 16,
		},
		Effects: EffectsConfig{
			RemovalDelayMs: 6000,
			Tint:           true,
		},
		Storage: StorageConfig{
			Backend:  "memory",
			Path:     "data",
			RedisKey: "voxelload:layout",
		},
		EventBus: EventBusConfig{
			Stream:    "VOXELS",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "voxelload",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "TRACE",
		},
	}
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.Physics.MaxLoad <= 0 {
		return fmt.Errorf("physics.max_load должен быть положительным, получено %d", c.Physics.MaxLoad)
	}
	if c.Physics.VoxelSize <= 0 {
		return fmt.Errorf("physics.voxel_size должен быть положительным, получено %v", c.Physics.VoxelSize)
	}
	b := c.Physics.Bounds
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return fmt.Errorf("physics.bounds: min %s больше max %s", b.Min, b.Max)
	}
	switch c.Storage.Backend {
	case "memory", "badger", "redis":
	default:
		return fmt.Errorf("storage.backend: неизвестное хранилище %q", c.Storage.Backend)
	}
	if c.Effects.RemovalDelayMs < 0 {
		return fmt.Errorf("effects.removal_delay_ms не может быть отрицательным")
	}
	return nil
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
	}

	cfg := Default()
	if path == "" {
		return cfg, nil // конфиг не задан - использовать дефолты
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
