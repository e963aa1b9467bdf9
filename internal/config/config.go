// Package config loads the engine configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the engaged binary.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Chain    ChainConfig    `yaml:"chain"`
	Messages MessagesConfig `yaml:"messages"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL,default=info"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Addr      string  `yaml:"addr" env:"HTTP_ADDR,default=:8080"`
	RateLimit float64 `yaml:"rate_limit" env:"HTTP_RATE_LIMIT,default=50"`
	RateBurst int     `yaml:"rate_burst" env:"HTTP_RATE_BURST,default=100"`
}

// PostgresConfig configures the relational backend. An empty DSN keeps users
// and the ledger in memory.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN,default="`
}

// RedisConfig configures the snapshot backend. An empty address keeps the
// snapshot in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR,default="`
	Password string `yaml:"password" env:"REDIS_PASSWORD,default="`
	DB       int    `yaml:"db" env:"REDIS_DB,default=0"`
}

// ChainConfig configures the contract gateway. An empty RPC URL selects the
// simulator.
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url" env:"CHAIN_RPC_URL,default="`
	Network string `yaml:"network" env:"CHAIN_NETWORK,default=devnet"`
}

// MessagesConfig configures direct-message sealing. An empty secret disables
// encryption at rest.
type MessagesConfig struct {
	Secret string `yaml:"secret" env:"MESSAGE_SECRET,default="`
}

// Load reads the YAML file at path, if present, and applies environment
// overrides on top. A missing file is not an error; environment defaults
// apply.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// applyEnv decodes environment variables into cfg, keeping YAML values for
// variables that are unset.
func applyEnv(cfg *Config) error {
	var env Config
	if err := envdecode.Decode(&env); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	} else if cfg.LogLevel == "" {
		cfg.LogLevel = env.LogLevel
	}
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok && v != "" {
		cfg.HTTP.Addr = v
	} else if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = env.HTTP.Addr
	}
	if _, ok := os.LookupEnv("HTTP_RATE_LIMIT"); ok {
		cfg.HTTP.RateLimit = env.HTTP.RateLimit
	} else if cfg.HTTP.RateLimit == 0 {
		cfg.HTTP.RateLimit = env.HTTP.RateLimit
	}
	if _, ok := os.LookupEnv("HTTP_RATE_BURST"); ok {
		cfg.HTTP.RateBurst = env.HTTP.RateBurst
	} else if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = env.HTTP.RateBurst
	}
	if v, ok := os.LookupEnv("POSTGRES_DSN"); ok && v != "" {
		cfg.Postgres.DSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok && v != "" {
		cfg.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok && v != "" {
		cfg.Redis.Password = v
	}
	if _, ok := os.LookupEnv("REDIS_DB"); ok {
		cfg.Redis.DB = env.Redis.DB
	}
	if v, ok := os.LookupEnv("CHAIN_RPC_URL"); ok && v != "" {
		cfg.Chain.RPCURL = v
	}
	if v, ok := os.LookupEnv("CHAIN_NETWORK"); ok && v != "" {
		cfg.Chain.Network = v
	} else if cfg.Chain.Network == "" {
		cfg.Chain.Network = env.Chain.Network
	}
	if v, ok := os.LookupEnv("MESSAGE_SECRET"); ok && v != "" {
		cfg.Messages.Secret = v
	}
	return nil
}
