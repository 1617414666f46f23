package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the server configuration. The durable store behind the presence
// contract is picked here, explicitly, at startup — never by sniffing the
// environment at call time.
type Config struct {
	Port string `yaml:"port"`

	Store struct {
		Driver string `yaml:"driver"` // "mongo" | "sqlite"
	} `yaml:"store"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
}

// Load reads the YAML file at path (skipped when absent or path is empty),
// then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	cfg.Port = getEnv("PORT", defaultStr(cfg.Port, "8080"))
	cfg.Store.Driver = getEnv("STORE_DRIVER", defaultStr(cfg.Store.Driver, DriverMongo))
	cfg.Mongo.URI = getEnv("MONGO_URI", defaultStr(cfg.Mongo.URI, "mongodb://localhost:27017"))
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", defaultStr(cfg.Mongo.Database, "stillmind"))
	cfg.SQLite.Path = getEnv("SQLITE_PATH", defaultStr(cfg.SQLite.Path, "stillmind.db"))
	cfg.Redis.Addr = getEnv("REDIS_URI", defaultStr(cfg.Redis.Addr, "localhost:6379"))

	// Remove redis:// prefix if present
	if len(cfg.Redis.Addr) > 8 && cfg.Redis.Addr[:8] == "redis://" {
		cfg.Redis.Addr = cfg.Redis.Addr[8:]
	}

	switch cfg.Store.Driver {
	case DriverMongo, DriverSQLite:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func defaultStr(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}
