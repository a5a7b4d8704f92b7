// Package app assembles the database, cache, repositories and service shared
// by the server, the scheduler and loanctl.
package app

import (
	"context"
	"fmt"

	"github.com/segyhp/loan-tracker/internal/cache"
	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/repository"
	"github.com/segyhp/loan-tracker/internal/service"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Cache   cache.SummaryCache
	Service *service.LoanService
}

// New connects to Postgres and, when configured, Redis, and builds the
// service on top of them.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := initDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &App{Config: cfg, Log: log, DB: db, Cache: cache.NewNopCache()}

	if cfg.CacheEnabled() {
		client, err := cache.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.Redis = client
		a.Cache = cache.NewRedisCache(client, cfg.Cache.TTL)
	} else {
		log.Info("REDIS_URL not set; summary cache disabled")
	}

	a.Service = service.NewLoanService(
		repository.NewLoanRepository(db),
		repository.NewPaymentRepository(db),
		a.Cache,
		log,
	)

	return a, nil
}

func initDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

// CachePinger returns the cache for readiness checks, or nil when Redis is
// not configured.
func (a *App) CachePinger() interface{ Ping(context.Context) error } {
	if a.Redis == nil {
		return nil
	}
	return a.Cache
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.WithError(err).Warn("closing redis client failed")
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Log.WithError(err).Warn("closing database failed")
	}
}
