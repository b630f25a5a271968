package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/vec"
)

// RedisLayoutRepo хранит раскладку в Redis SET: элемент множества - ключ "x:y:z"
type RedisLayoutRepo struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *logging.Logger
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr     string        // Адрес Redis сервера
	Password string        // Пароль (пустой если не требуется)
	DB       int           // Номер базы данных
	Key      string        // Ключ множества раскладки
	TTL      time.Duration // Время жизни снимков (0 - без ограничения)
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr: "localhost:6379",
		Key:  "voxelload:layout",
	}
}

// NewRedisLayoutRepo подключается к Redis и проверяет соединение
func NewRedisLayoutRepo(ctx context.Context, config *RedisConfig) (*RedisLayoutRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.GetStorageLogger()
	logger.Info("🔴 Connected to Redis at %s", config.Addr)

	return &RedisLayoutRepo{
		client: client,
		key:    config.Key,
		ttl:    config.TTL,
		logger: logger,
	}, nil
}

// Save реализует LayoutRepo
func (r *RedisLayoutRepo) Save(ctx context.Context, pos vec.Vec3) error {
	if err := r.client.SAdd(ctx, r.key, pos.Key()).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", pos, err)
	}
	return nil
}

// BatchSave реализует LayoutRepo через пайплайн
func (r *RedisLayoutRepo) BatchSave(ctx context.Context, positions []vec.Vec3) error {
	if len(positions) == 0 {
		return nil
	}

	members := make([]interface{}, len(positions))
	for i, pos := range positions {
		members[i] = pos.Key()
	}

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, r.key, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Delete реализует LayoutRepo
func (r *RedisLayoutRepo) Delete(ctx context.Context, pos vec.Vec3) error {
	if err := r.client.SRem(ctx, r.key, pos.Key()).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", pos, err)
	}
	return nil
}

// LoadAll реализует LayoutRepo
func (r *RedisLayoutRepo) LoadAll(ctx context.Context) ([]vec.Vec3, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load layout: %w", err)
	}

	out := make([]vec.Vec3, 0, len(members))
	for _, m := range members {
		pos, err := vec.ParseKey(m)
		if err != nil {
			r.logger.Warn("⚠️ Пропущен некорректный элемент раскладки %q: %v", m, err)
			continue
		}
		out = append(out, pos)
	}
	sortPositions(out)
	return out, nil
}

// SaveSnapshot реализует SnapshotStore
func (r *RedisLayoutRepo) SaveSnapshot(ctx context.Context, name string, positions []vec.Vec3) error {
	data, err := EncodeLayout(positions)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.snapshotKey(name), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot %q: %w", name, err)
	}
	return nil
}

// LoadSnapshot реализует SnapshotStore
func (r *RedisLayoutRepo) LoadSnapshot(ctx context.Context, name string) ([]vec.Vec3, bool, error) {
	data, err := r.client.Get(ctx, r.snapshotKey(name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot %q: %w", name, err)
	}

	positions, err := DecodeLayout(data)
	if err != nil {
		return nil, false, err
	}
	return positions, true, nil
}

func (r *RedisLayoutRepo) snapshotKey(name string) string {
	return r.key + ":snapshot:" + name
}

// Close закрывает соединение с Redis
func (r *RedisLayoutRepo) Close() error {
	return r.client.Close()
}
