package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	CachePolicyProcess    = "process"
	CachePolicyPerRequest = "per_request"
)

// Config holds cytodash configuration.
type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Data struct {
		Path string `yaml:"path"`
	} `yaml:"data"`
	Model struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
		ONNX struct {
			SharedLibrary     string `yaml:"shared_library"`
			InputName         string `yaml:"input_name"`
			LabelOutput       string `yaml:"label_output"`
			ProbabilityOutput string `yaml:"probability_output"`
		} `yaml:"onnx"`
	} `yaml:"model"`
	Scaler struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
	} `yaml:"scaler"`
	Cache struct {
		Policy      string `yaml:"policy"`
		Watch       bool   `yaml:"watch"`
		Predictions int    `yaml:"predictions"`
	} `yaml:"cache"`
	History struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"history"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Cache.Watch = true
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	cfg.Cache.Watch = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8501
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Data.Path == "" {
		cfg.Data.Path = "data/data.csv"
	}
	if cfg.Model.Type == "" {
		cfg.Model.Type = "logistic_regression"
	}
	if cfg.Model.Path == "" {
		cfg.Model.Path = "model/model.json"
	}
	if cfg.Scaler.Type == "" {
		cfg.Scaler.Type = "standard"
	}
	if cfg.Scaler.Path == "" {
		cfg.Scaler.Path = "model/scaler.json"
	}
	if cfg.Cache.Policy == "" {
		cfg.Cache.Policy = CachePolicyProcess
	}
	if cfg.Cache.Predictions == 0 {
		cfg.Cache.Predictions = 1024
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/history.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Cache.Policy {
	case CachePolicyProcess, CachePolicyPerRequest:
	default:
		return fmt.Errorf("cache.policy must be %q or %q, got %q", CachePolicyProcess, CachePolicyPerRequest, c.Cache.Policy)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Cache.Predictions < 0 {
		return fmt.Errorf("cache.predictions must not be negative: %d", c.Cache.Predictions)
	}
	return nil
}
