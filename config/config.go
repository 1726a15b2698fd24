package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultEnv           = "development"
	defaultHTTPHost      = "0.0.0.0"
	defaultHTTPPort      = 8080
	defaultInstrument    = "BTC-USD"
	defaultCommandBuffer = 1000
	defaultRedisAddr     = "localhost:6379"
	defaultRedisDB       = 0
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Env      string
	HTTP     HTTPConfig
	Engine   EngineConfig
	Replay   ReplayConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// EngineConfig holds matching engine settings.
type EngineConfig struct {
	Instrument    string
	VerboseEvents bool
	CommandBuffer int
}

// ReplayConfig points at the command file to replay on startup, if any.
type ReplayConfig struct {
	File string
}

// RedisConfig stores Redis connection parameters. An empty Addr disables
// the Redis event sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// PostgresConfig stores journal connection parameters. An empty DSN
// disables the Postgres event sink.
type PostgresConfig struct {
	DSN     string
	Enabled bool
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, err
	}
	commandBuffer, err := getInt("ENGINE_COMMAND_BUFFER", defaultCommandBuffer)
	if err != nil {
		return nil, err
	}
	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, err
	}
	verbose, err := getBool("ENGINE_VERBOSE_EVENTS", false)
	if err != nil {
		return nil, err
	}
	redisEnabled, err := getBool("REDIS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	pgDSN := getString("POSTGRES_DSN", "")

	return &Config{
		Env: getString("APP_ENV", defaultEnv),
		HTTP: HTTPConfig{
			Host: getString("HTTP_HOST", defaultHTTPHost),
			Port: port,
		},
		Engine: EngineConfig{
			Instrument:    getString("ENGINE_INSTRUMENT", defaultInstrument),
			VerboseEvents: verbose,
			CommandBuffer: commandBuffer,
		},
		Replay: ReplayConfig{
			File: getString("REPLAY_FILE", ""),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Enabled:  redisEnabled,
		},
		Postgres: PostgresConfig{
			DSN:     pgDSN,
			Enabled: pgDSN != "",
		},
	}, nil
}

func getString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}
