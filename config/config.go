package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Storage backend names accepted in the config file.
const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port             int      `mapstructure:"port"`
	LogLevel         string   `mapstructure:"log_level"`
	LogFile          string   `mapstructure:"log_file"`
	NATSURL          string   `mapstructure:"nats_url"`
	RedisURL         string   `mapstructure:"redis_url"`
	PostgresURL      string   `mapstructure:"postgres_url"`
	Storage          string   `mapstructure:"storage"`
	Rooms            []string `mapstructure:"rooms"`
	DefaultRoom      string   `mapstructure:"default_room"`
	HistoryLimit     int      `mapstructure:"history_limit"`
	SearchLimit      int      `mapstructure:"search_limit"`
	MaxMessageLength int      `mapstructure:"max_message_length"`
}

// ReadConfig reads the configuration from the specified JSON file and
// applies defaults for the optional fields.
func ReadConfig(configPath string) (Config, error) {
	var cfg Config

	viper.SetConfigFile(configPath)
	viper.SetConfigType("json")

	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("storage", StorageRedis)
	viper.SetDefault("rooms", []string{"general", "random", "tech", "gaming"})
	viper.SetDefault("default_room", "general")
	viper.SetDefault("history_limit", 50)
	viper.SetDefault("search_limit", 50)
	viper.SetDefault("max_message_length", 1000)

	if err := viper.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// MustReadConfig reads the configuration or panics if there's an error.
func MustReadConfig(configPath string) Config {
	cfg, err := ReadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return cfg
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("storage %q requires redis_url", c.Storage)
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("storage %q requires postgres_url", c.Storage)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}

	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room must be configured")
	}
	for _, room := range c.Rooms {
		if room == c.DefaultRoom {
			return nil
		}
	}
	return fmt.Errorf("default_room %q is not in the room list", c.DefaultRoom)
}
