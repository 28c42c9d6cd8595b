// Package config читает YAML-конфигурацию сервера и клиента.
// Незаданные значения берутся из переменных окружения, затем из значений по умолчанию.
package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/storage"
)

// Config корневая структура конфигурации приложения
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	World     WorldConfig        `yaml:"world"`
	Players   storage.RepoConfig `yaml:"players"`
	EventBus  EventBusConfig     `yaml:"eventbus"`
	Logging   LoggingConfig      `yaml:"logging"`
	Telemetry TelemetryConfig    `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	TCPPort          int           `yaml:"tcp_port"`
	HTTPPort         int           `yaml:"http_port"`
	Transport        string        `yaml:"transport"` // tcp или kcp
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxMessageSize   int           `yaml:"max_message_size"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

type WorldConfig struct {
	Seed      int64  `yaml:"seed"`
	DataPath  string `yaml:"data_path"`
	BlocksDir string `yaml:"blocks_dir"` // каталог с JSON-описаниями блоков поверх встроенных
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`

	// Components пороги отдельных компонентов (network, world, HTTP...)
	Components map[string]ComponentLogging `yaml:"components"`
}

// ComponentLogging пороги компонента; пустое значение берётся из общих
type ComponentLogging struct {
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// ComponentLevels разбирает пороги компонентов, подставляя общие вместо пустых
func (l *LoggingConfig) ComponentLevels() (map[string][2]logging.LogLevel, error) {
	out := make(map[string][2]logging.LogLevel, len(l.Components))
	for name, c := range l.Components {
		console, file := c.ConsoleLevel, c.FileLevel
		if console == "" {
			console = l.ConsoleLevel
		}
		if file == "" {
			file = l.FileLevel
		}
		cl, err := logging.ParseLevel(console)
		if err != nil {
			return nil, fmt.Errorf("logging.components.%s: %w", name, err)
		}
		fl, err := logging.ParseLevel(file)
		if err != nil {
			return nil, fmt.Errorf("logging.components.%s: %w", name, err)
		}
		out[name] = [2]logging.LogLevel{cl, fl}
	}
	return out, nil
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default конфигурация по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:      "tcp",
			ReadTimeout:    20 * time.Second,
			WriteTimeout:   5 * time.Second,
			MaxMessageSize: 16 << 20,
			TickInterval:   time.Second,
		},
		Players: storage.RepoConfig{
			Backend: storage.BackendBadger,
			Redis:   *storage.DefaultRedisConfig(),
		},
		EventBus: EventBusConfig{
			Stream:    "TILEWORLD",
			Retention: 24,
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tileworld-server",
		},
	}
}

// GetTCPPort возвращает порт игрового сервера с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "GAME_TCP_PORT", 7777)
}

// GetHTTPPort возвращает порт HTTP статуса с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, "GAME_HTTP_PORT", 8088)
}

// Addr адрес прослушивания игрового сервера
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GetTCPPort())
}

// HTTPAddr адрес прослушивания HTTP статуса
func (s *ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GetHTTPPort())
}

// GetSeed возвращает сид: config -> GAME_SEED -> случайный в [0, 100000]
func (w *WorldConfig) GetSeed() int64 {
	if w.Seed != 0 {
		return w.Seed
	}
	if envVal := os.Getenv("GAME_SEED"); envVal != "" {
		if seed, err := strconv.ParseInt(envVal, 10, 64); err == nil {
			return seed
		}
	}
	return rand.Int63n(100001)
}

// GetDataPath каталог данных сервера: config -> GAME_DATA_PATH -> "data"
func (w *WorldConfig) GetDataPath() string {
	if w.DataPath != "" {
		return w.DataPath
	}
	if envVal := os.Getenv("GAME_DATA_PATH"); envVal != "" {
		return envVal
	}
	return "data"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, которые нельзя исправить fallback'ом
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "", "tcp", "kcp":
	default:
		return fmt.Errorf("server.transport: неизвестный транспорт %q", c.Server.Transport)
	}
	if c.Server.MaxMessageSize < 0 {
		return fmt.Errorf("server.max_message_size: отрицательное значение %d", c.Server.MaxMessageSize)
	}
	if _, err := c.Logging.ComponentLevels(); err != nil {
		return err
	}
	switch c.Players.Backend {
	case "", storage.BackendBadger, storage.BackendMemory, storage.BackendRedis, storage.BackendMaria:
	default:
		return fmt.Errorf("players.backend: неизвестное хранилище %q", c.Players.Backend)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV GAME_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
