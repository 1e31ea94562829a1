// Package config loads the server's YAML configuration file, following the
// LoadConfig/validate shape used across the reference mesh tooling.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration schema (§6): server identity, the
// listen port, the Postgres connection parameters, and the ambient
// additions (blob directory, key file path, log level).
type Config struct {
	Name string `yaml:"name"`
	Motd string `yaml:"motd"`
	Port int    `yaml:"port"`

	DbName string `yaml:"db_name"`
	DbHost string `yaml:"db_host"`
	DbPort int    `yaml:"db_port"`
	DbUser string `yaml:"db_user"`
	DbPass string `yaml:"db_pass"`

	UserShare string `yaml:"user_share"`
	KeyFile   string `yaml:"key_file"`
	LogLevel  string `yaml:"log_level"`
}

// Load reads the YAML file at path, parses it, fills ambient defaults, and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.UserShare == "" {
		cfg.UserShare = "usershare"
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = "server.crt"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN builds the Postgres connection string pgxpool expects.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.DbUser, cfg.DbPass, cfg.DbHost, cfg.DbPort, cfg.DbName)
}

func (cfg *Config) validate() error {
	var errs []string

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, "name is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d is out of range", cfg.Port))
	}
	if strings.TrimSpace(cfg.DbName) == "" {
		errs = append(errs, "db_name is required")
	}
	if strings.TrimSpace(cfg.DbHost) == "" {
		errs = append(errs, "db_host is required")
	}
	if cfg.DbPort <= 0 || cfg.DbPort > 65535 {
		errs = append(errs, fmt.Sprintf("db_port %d is out of range", cfg.DbPort))
	}
	if strings.TrimSpace(cfg.DbUser) == "" {
		errs = append(errs, "db_user is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n - %s", strings.Join(errs, "\n - "))
	}
	return nil
}
