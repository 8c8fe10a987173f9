// Package config loads service settings from YAML with CARDSMITH_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CARDSMITH_SERVER_ADDRESS.
const EnvPrefix = "CARDSMITH"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Bot      BotConfig      `mapstructure:"bot"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	MessagesPerSec float64       `mapstructure:"messages_per_sec"`
	Burst          int           `mapstructure:"burst"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	GRPCAddress    string        `mapstructure:"grpc_address"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	RevertDelay time.Duration `mapstructure:"revert_delay"`
	PeekDelay   time.Duration `mapstructure:"peek_delay"`
	PeekCost    int           `mapstructure:"peek_cost"`
	PairPoints  int           `mapstructure:"pair_points"`
	Seed        int64         `mapstructure:"seed"`
}

type BotConfig struct {
	ThinkMin   time.Duration `mapstructure:"think_min"`
	ThinkMax   time.Duration `mapstructure:"think_max"`
	MaxActions int           `mapstructure:"max_actions"`
	MaxProbes  int           `mapstructure:"max_probes"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.messages_per_sec", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.max_message_size", 64*1024)
	v.SetDefault("server.grpc_address", ":9090")
	v.SetDefault("server.health_interval", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("engine.revert_delay", time.Second)
	v.SetDefault("engine.peek_delay", 2*time.Second)
	v.SetDefault("engine.peek_cost", 1)
	v.SetDefault("engine.pair_points", 1)
	v.SetDefault("engine.seed", 0)

	v.SetDefault("bot.think_min", 300*time.Millisecond)
	v.SetDefault("bot.think_max", 900*time.Millisecond)
	v.SetDefault("bot.max_actions", 500)
	v.SetDefault("bot.max_probes", 4096)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.state_ttl", time.Hour)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "cardsmith")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "replays")
}

// Load reads path if it exists, then applies environment overrides. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("read config %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Server.MessagesPerSec <= 0 {
		return errors.New("server.messages_per_sec must be positive")
	}
	if c.Bot.ThinkMax < c.Bot.ThinkMin {
		return fmt.Errorf("bot.think_max %s is below bot.think_min %s", c.Bot.ThinkMax, c.Bot.ThinkMin)
	}
	if c.Replay.Enabled && c.Replay.Directory == "" {
		return errors.New("replay.directory is required when replay is enabled")
	}
	return nil
}
