package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	EnginePath   string `yaml:"engine_path"`
	BestLines    int    `yaml:"best_lines"`
	MaxLines     int    `yaml:"max_lines"`
	MaxElo       int    `yaml:"max_elo"`
	MoveTimeMS   int    `yaml:"movetime_ms"`
	MaxMoveMS    int    `yaml:"max_movetime_ms"`
	PoolCapacity int    `yaml:"pool_capacity"`

	RedisURL       string `yaml:"redis_url"`
	DatabaseURL    string `yaml:"database_url"`
	CacheTTLSec    int    `yaml:"cache_ttl_sec"`
	HTTPAddr       string `yaml:"http_addr"`
	RequestTimeout int    `yaml:"request_timeout_sec"`
}

func (c *AppConfig) MoveTime() time.Duration {
	return time.Duration(c.MoveTimeMS) * time.Millisecond
}

func (c *AppConfig) MaxMoveTime() time.Duration {
	return time.Duration(c.MaxMoveMS) * time.Millisecond
}

func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

func defaults() *AppConfig {
	return &AppConfig{
		BestLines:      1,
		MaxLines:       16,
		MoveTimeMS:     1000,
		MaxMoveMS:      30000,
		CacheTTLSec:    600,
		HTTPAddr:       ":8080",
		RequestTimeout: 60,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then the environment.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("ENGINE_PATH")); v != "" {
		cfg.EnginePath = v
	} else if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		cfg.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"UCI_BEST_LINES", &cfg.BestLines},
		{"UCI_MAX_LINES", &cfg.MaxLines},
		{"UCI_MOVETIME_MS", &cfg.MoveTimeMS},
		{"UCI_MAX_MOVETIME_MS", &cfg.MaxMoveMS},
		{"UCI_POOL_CAPACITY", &cfg.PoolCapacity},
		{"ANALYSIS_CACHE_TTL", &cfg.CacheTTLSec},
		{"HTTP_REQUEST_TIMEOUT", &cfg.RequestTimeout},
	}
	for _, it := range ints {
		if v := strings.TrimSpace(os.Getenv(it.key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*it.dst = n
			}
		}
	}
	// zero is meaningful here: no strength cap
	if v := strings.TrimSpace(os.Getenv("UCI_MAX_ELO")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxElo = n
		}
	}

	if cfg.EnginePath == "" {
		return nil, errors.New("ENGINE_PATH is required")
	}
	if cfg.BestLines > cfg.MaxLines {
		return nil, fmt.Errorf("UCI_BEST_LINES (%d) exceeds UCI_MAX_LINES (%d)", cfg.BestLines, cfg.MaxLines)
	}
	if cfg.MoveTimeMS > cfg.MaxMoveMS {
		return nil, fmt.Errorf("UCI_MOVETIME_MS (%d) exceeds UCI_MAX_MOVETIME_MS (%d)", cfg.MoveTimeMS, cfg.MaxMoveMS)
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
