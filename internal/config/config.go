package config

import (
	"encoding/json"
	"os"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// PostgresConfig holds source-of-truth connection settings
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// ServerConfig holds daemon-specific settings
type ServerConfig struct {
	HTTPAddr  string `json:"http_addr"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Redis    RedisConfig    `json:"redis"`
	Postgres PostgresConfig `json:"postgres"`
	Server   ServerConfig   `json:"server"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Password:  "",
			DB:        0,
			KeyPrefix: "atrium:cache:",
		},
		Postgres: PostgresConfig{
			DSN: "",
		},
		Server: ServerConfig{
			HTTPAddr:  ":8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ATRIUM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ATRIUM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ATRIUM_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("ATRIUM_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("ATRIUM_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("ATRIUM_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("ATRIUM_LOG_FORMAT"); v != "" {
		cfg.Server.LogFormat = v
	}
}
