// Package config loads the service configuration: an optional YAML file,
// then REVIEW_* environment overrides, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jacokyle01/game-review/src/analysis"
	"github.com/jacokyle01/game-review/src/engine"
)

type Config struct {
	EnginesDir string      `yaml:"engines_dir"`
	Engine     engine.Name `yaml:"engine"`
	Workers    int         `yaml:"workers"`
	HashMB     int         `yaml:"hash_mb"`

	Depth    int           `yaml:"depth"`
	MoveTime time.Duration `yaml:"move_time"`
	MultiPV  int           `yaml:"multipv"`

	AnalysisTimeout  time.Duration `yaml:"analysis_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	DesyncThreshold  int           `yaml:"desync_threshold"`
	CacheSize        int           `yaml:"cache_size"`

	// Thresholds override the classification bounds; nil keeps the defaults.
	Thresholds *analysis.Thresholds `yaml:"thresholds"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	Addr      string `yaml:"addr"`
	QueueSize int    `yaml:"queue_size"`
}

func Default() Config {
	return Config{
		Engine:           engine.Stockfish17Lite,
		HashMB:           16,
		Depth:            16,
		MultiPV:          1,
		AnalysisTimeout:  30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ShutdownTimeout:  3 * time.Second,
		DesyncThreshold:  8,
		CacheSize:        4096,
		LogLevel:         "info",
		Addr:             ":8080",
		QueueSize:        100,
	}
}

// Load reads path (when not empty), applies the environment and fills the
// remaining defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("REVIEW_ENGINES_DIR"); v != "" {
		c.EnginesDir = v
	}
	if v := os.Getenv("REVIEW_ENGINE"); v != "" {
		c.Engine = engine.Name(v)
	}
	if v := os.Getenv("REVIEW_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REVIEW_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("REVIEW_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("REVIEW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("REVIEW_ADDR"); v != "" {
		c.Addr = v
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Engine == "" {
		c.Engine = def.Engine
	}
	if c.HashMB <= 0 {
		c.HashMB = def.HashMB
	}
	if c.Depth <= 0 && c.MoveTime <= 0 {
		c.Depth = def.Depth
	}
	if c.MultiPV <= 0 {
		c.MultiPV = def.MultiPV
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = def.AnalysisTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.DesyncThreshold <= 0 {
		c.DesyncThreshold = def.DesyncThreshold
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
}

// Validate rejects values no component could work with.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Engine.Identity(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}
	if c.MultiPV > 500 {
		errs = append(errs, errors.New("multipv must be at most 500"))
	}
	if t := c.Thresholds; t != nil && !(t.Best <= t.Excellent && t.Excellent <= t.Good && t.Good <= t.Inaccuracy && t.Inaccuracy <= t.Mistake) {
		errs = append(errs, errors.New("thresholds must be non-decreasing"))
	}
	switch c.LogLevel {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// EngineOptions is what the engine selector needs from the configuration.
func (c Config) EngineOptions() engine.Options {
	return engine.Options{
		EnginesDir:       c.EnginesDir,
		HashMB:           c.HashMB,
		AnalysisTimeout:  c.AnalysisTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
		ShutdownTimeout:  c.ShutdownTimeout,
		DesyncThreshold:  c.DesyncThreshold,
	}
}
