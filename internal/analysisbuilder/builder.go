package analysisbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/analysis"
	"github.com/park285/chess-uci/internal/config"
	"github.com/park285/chess-uci/internal/uci"
)

type Deps struct {
	Service *analysis.Service
	Pool    *uci.Pool
	Redis   *redis.Client
	Repo    analysis.Repository

	closers []func() error
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.EnginePath) == "" {
		return nil, fmt.Errorf("ENGINE_PATH is required for the analysis engine")
	}

	deps := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = deps.Close()
		}
	}()

	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath:         cfg.EnginePath,
		PerOptionsCapacity: cfg.PoolCapacity,
		Logger:             logger.Named("uci"),
	})
	if err != nil {
		return nil, fmt.Errorf("init engine pool: %w", err)
	}
	deps.Pool = pool
	deps.closers = append(deps.closers, pool.Close)

	// Cache (Redis optional)
	var cache analysis.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		deps.Redis = rdb
		deps.closers = append(deps.closers, rdb.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		cache = analysis.NewRedisCache(rdb, cfg.CacheTTL())
	} else {
		logger.Info("REDIS_URL not set; analysis cache disabled")
	}

	// Repository (Postgres optional)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := analysis.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres repository: %w", err)
		}
		deps.Repo = repo
		deps.closers = append(deps.closers, repo.Close)
	} else {
		logger.Info("DATABASE_URL not set; reports kept in memory")
		deps.Repo = analysis.NewMemoryRepository()
	}

	deps.Service = analysis.NewService(pool, cache, deps.Repo, analysis.Config{
		DefaultLines:    cfg.BestLines,
		MaxLines:        cfg.MaxLines,
		DefaultMaxElo:   cfg.MaxElo,
		DefaultMoveTime: cfg.MoveTime(),
		MaxMoveTime:     cfg.MaxMoveTime(),
	}, logger.Named("analysis"))

	ok = true
	return deps, nil
}

// Close releases everything New opened, newest first.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
