package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/world/entity"
)

// RedisPlayerRepo хранит записи игроков в Redis
type RedisPlayerRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        `yaml:"addr"`       // Адрес Redis сервера
	Password  string        `yaml:"password"`   // Пароль (пустой если не требуется)
	DB        int           `yaml:"db"`         // Номер базы данных
	KeyPrefix string        `yaml:"key_prefix"` // Префикс для ключей
	TTL       time.Duration `yaml:"ttl"`        // Время жизни записей, 0 - бессрочно
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "tileworld:player:",
	}
}

// NewRedisPlayerRepo подключается к Redis и проверяет соединение
func NewRedisPlayerRepo(ctx context.Context, config *RedisConfig) (*RedisPlayerRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Подключено к Redis %s", config.Addr)
	return newRedisPlayerRepo(client, config), nil
}

func newRedisPlayerRepo(client *redis.Client, config *RedisConfig) *RedisPlayerRepo {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisConfig().KeyPrefix
	}
	return &RedisPlayerRepo{
		client:    client,
		keyPrefix: prefix,
		ttl:       config.TTL,
	}
}

// Save сохраняет запись игрока
func (r *RedisPlayerRepo) Save(ctx context.Context, name string, rec entity.Record) error {
	if name == "" {
		return ErrInvalidName
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации игрока %s: %w", name, err)
	}
	if err := r.client.Set(ctx, r.keyPrefix+name, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения игрока %s: %w", name, err)
	}
	return nil
}

// Load получает запись игрока
func (r *RedisPlayerRepo) Load(ctx context.Context, name string) (entity.Record, bool, error) {
	var rec entity.Record
	if name == "" {
		return rec, false, ErrInvalidName
	}

	data, err := r.client.Get(ctx, r.keyPrefix+name).Bytes()
	if err == redis.Nil {
		return rec, false, nil
	} else if err != nil {
		return rec, false, fmt.Errorf("ошибка загрузки игрока %s: %w", name, err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return entity.Record{}, false, fmt.Errorf("ошибка десериализации игрока %s: %w", name, err)
	}
	return rec, true, nil
}

// Delete удаляет запись игрока
func (r *RedisPlayerRepo) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, r.keyPrefix+name).Err(); err != nil {
		return fmt.Errorf("ошибка удаления игрока %s: %w", name, err)
	}
	return nil
}

// BatchSave записывает все записи одним пайплайном
func (r *RedisPlayerRepo) BatchSave(ctx context.Context, records map[string]entity.Record) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for name, rec := range records {
		if name == "" {
			return ErrInvalidName
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("ошибка сериализации игрока %s: %w", name, err)
		}
		pipe.Set(ctx, r.keyPrefix+name, data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка пакетного сохранения: %w", err)
	}
	return nil
}

// Names перебирает ключи через SCAN
func (r *RedisPlayerRepo) Names(ctx context.Context) ([]string, error) {
	var names []string
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перебора игроков: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close закрывает соединение с Redis
func (r *RedisPlayerRepo) Close() error {
	return r.client.Close()
}
