package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines engine and server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	DB        DBConfig        `yaml:"db"`
	Lease     LeaseConfig     `yaml:"lease"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http"
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LeaseConfig struct {
	// Duration is the lock lease length. A holder that stops renewing loses
	// the workspace after this long.
	Duration time.Duration `yaml:"duration"`
	// HeartbeatInterval overrides the renewal cadence; zero means a third of
	// the lease duration.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		DB: DBConfig{
			Path: "baton.db",
		},
		Lease: LeaseConfig{
			Duration: 30 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("BATON_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("BATON_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("BATON_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BATON_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("BATON_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if dbPath := os.Getenv("BATON_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if leaseStr := os.Getenv("BATON_LEASE_DURATION"); leaseStr != "" {
		lease, err := time.ParseDuration(leaseStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BATON_LEASE_DURATION: %w", err)
		}
		cfg.Lease.Duration = lease
	}
	if level := os.Getenv("BATON_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if cfg.Lease.Duration <= 0 {
		return Config{}, fmt.Errorf("lease duration must be positive, got %s", cfg.Lease.Duration)
	}

	return cfg, nil
}

// HeartbeatInterval returns the configured renewal cadence, defaulting to a
// third of the lease duration.
func (c Config) HeartbeatInterval() time.Duration {
	if c.Lease.HeartbeatInterval > 0 {
		return c.Lease.HeartbeatInterval
	}
	return c.Lease.Duration / 3
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
