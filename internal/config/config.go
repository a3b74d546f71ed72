package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr         string        `yaml:"addr"`         // ":8080"
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // "15s"
	WriteTimeout time.Duration `yaml:"writeTimeout"` // "30s"
	IdleTimeout  time.Duration `yaml:"idleTimeout"`  // "60s"
}

type Auth struct {
	Enabled    bool          `yaml:"enabled"`
	JWTSecret  string        `yaml:"jwtSecret"`
	SessionTTL time.Duration `yaml:"sessionTTL"` // "24h"
	DBPath     string        `yaml:"dbPath"`
}

// Executor is the external code-execution service the compile endpoint
// forwards to.
type Executor struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Logging struct {
	Env       string `yaml:"env"`     // dev|prod
	Service   string `yaml:"service"` // "cocreate-relay"
	Backend   string `yaml:"backend"` // "std"|"zap"
	Debug     bool   `yaml:"debug"`
	AddSource bool   `yaml:"addSource"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Auth     Auth     `yaml:"auth"`
	Executor Executor `yaml:"executor"`
	Logging  Logging  `yaml:"logging"`
}

// Load reads the yaml config named by CONFIG_PATH (default
// config.yaml) and applies defaults. A missing file is not an error:
// the defaults alone run a local relay.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Auth.DBPath == "" {
		cfg.Auth.DBPath = "./data/cocreate.db"
	}
	if cfg.Executor.Timeout == 0 {
		cfg.Executor.Timeout = 30 * time.Second
	}
	if cfg.Logging.Service == "" {
		cfg.Logging.Service = "cocreate-relay"
	}

	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwtSecret is required when auth is enabled")
	}

	return &cfg, nil
}
