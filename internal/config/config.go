package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the session command engine server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Lock      LockConfig      `mapstructure:"lock"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Narrative NarrativeConfig `mapstructure:"narrative"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// LockConfig selects and tunes the session lock backend.
//
// Backend is an explicit deployment choice: "postgres" for multi-instance
// deployments sharing one store, "memory" for single-process deployments.
// There is no fallback from one to the other.
type LockConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// EngineConfig tunes the game engine.
type EngineConfig struct {
	MaxUndoEntries   int           `mapstructure:"max_undo_entries"`
	MaxEventHistory  int           `mapstructure:"max_event_history"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	InitiativeSeed   int64         `mapstructure:"initiative_seed"`
	EnemyStrategy    string        `mapstructure:"enemy_strategy"`
}

// NarrativeConfig points at the external AI narrative/image service.
type NarrativeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds the administrative credential.
type AuthConfig struct {
	AdminPassword string `mapstructure:"admin_password"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file path, applying defaults and
// RPG_-prefixed environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("RPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.max_conn_lifetime", time.Hour)

	v.SetDefault("lock.backend", "postgres")
	v.SetDefault("lock.ttl", 30*time.Second)

	v.SetDefault("engine.max_undo_entries", 20)
	v.SetDefault("engine.max_event_history", 100)
	v.SetDefault("engine.autosave_interval", 60*time.Second)
	v.SetDefault("engine.idle_timeout", 30*time.Minute)
	v.SetDefault("engine.initiative_seed", 0)
	v.SetDefault("engine.enemy_strategy", "lowest_health")

	v.SetDefault("narrative.timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid lock backend %q: must be \"postgres\" or \"memory\"", c.Lock.Backend)
	}

	if c.Lock.Backend == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when lock.backend is \"postgres\"")
	}

	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive, got %s", c.Lock.TTL)
	}

	if c.Engine.MaxUndoEntries <= 0 {
		return fmt.Errorf("engine.max_undo_entries must be positive, got %d", c.Engine.MaxUndoEntries)
	}

	if c.Engine.MaxEventHistory <= 0 {
		return fmt.Errorf("engine.max_event_history must be positive, got %d", c.Engine.MaxEventHistory)
	}

	switch c.Engine.EnemyStrategy {
	case "lowest_health", "highest_threat":
	default:
		return fmt.Errorf("invalid enemy strategy %q", c.Engine.EnemyStrategy)
	}

	return nil
}
