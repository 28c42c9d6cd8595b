package storage

import (
	"context"
	"fmt"
)

// Бэкенды записей игроков
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMaria  = "maria"
)

// RepoConfig выбор хранилища записей игроков
type RepoConfig struct {
	Backend  string      `yaml:"backend"`
	Redis    RedisConfig `yaml:"redis"`
	MariaDSN string      `yaml:"maria_dsn"`
}

// OpenPlayerRepo открывает репозиторий игроков по конфигурации.
// Для badger (по умолчанию) используется уже открытое хранилище мира.
func OpenPlayerRepo(ctx context.Context, cfg RepoConfig, ws *WorldStorage) (PlayerRepo, error) {
	switch cfg.Backend {
	case "", BackendBadger:
		if ws == nil {
			return nil, fmt.Errorf("бэкенд %s требует хранилище мира", BackendBadger)
		}
		return ws, nil
	case BackendMemory:
		return NewMemoryPlayerRepo(), nil
	case BackendRedis:
		return NewRedisPlayerRepo(ctx, &cfg.Redis)
	case BackendMaria:
		return NewMariaPlayerRepo(ctx, cfg.MariaDSN)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд игроков %q", cfg.Backend)
	}
}
