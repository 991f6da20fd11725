package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath string `yaml:"db_path"`
	Tenant string `yaml:"tenant"`
	Debug  bool   `yaml:"debug"`
}

// loadConfig reads a YAML config file, expanding ${VAR} environment
// variables before parsing.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "marketbot.db"
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "local"
	}
	return &cfg, nil
}
