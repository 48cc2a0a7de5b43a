// Package app builds the service graph shared by the HTTP server, cron jobs
// and CLI commands.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"solarcycle.GO/config"
	"solarcycle.GO/core/lock"
	"solarcycle.GO/core/logger"
	"solarcycle.GO/model/entity"
	materialRepo "solarcycle.GO/model/repository/material"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/events"
	"solarcycle.GO/service/ledger"
	"solarcycle.GO/service/material"
	"solarcycle.GO/service/settlement"
	"solarcycle.GO/service/triage"
)

type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Ledger     *ledger.SerializedClient
	Sync       *ledger.Synchronizer
	Triage     *triage.Engine
	Events     events.Publisher
	Assets     *asset.Registry
	Recovery   *material.Recovery
	Settlement *settlement.Service

	raw ledger.Client
}

// New connects to the database, Redis (optional) and the ledger described
// by cfg and wires the services on top of them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := config.NewDB(cfg.DB, cfg.App.Debug)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	rdb := config.NewRedis(cfg.Redis)
	var l lock.DistributedLock
	if rdb != nil {
		l = lock.NewRedisLock(rdb)
		logger.Info("redis connected, signer lock enabled", zap.String("addr", cfg.Redis.Addr))
	} else if cfg.Redis.Addr != "" {
		logger.Warn("redis configured but not reachable, signer lock disabled", zap.String("addr", cfg.Redis.Addr))
	}

	a := Build(cfg, db, ledger.NewClient(ctx, cfg.Ledger), l, events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	a.Redis = rdb
	return a, nil
}

// Build wires services over already opened resources. l may be nil.
func Build(cfg *config.Config, db *gorm.DB, client ledger.Client, l lock.DistributedLock, pub events.Publisher) *App {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	serialized := ledger.NewSerializedClient(client, l)
	sync := ledger.NewSynchronizer(db, serialized, ledger.Options{
		MaxAttempts: cfg.Ledger.MaxAttempts,
		RetryBase:   cfg.Ledger.RetryBase,
		RetryMax:    cfg.Ledger.RetryMax,
		ClaimTTL:    2 * cfg.Ledger.TxTimeout,
	})
	engine := triage.New(cfg.Triage.Strategy, cfg.Triage.ReuseMinWatts)
	registry := asset.NewRegistry(db, engine, sync, pub)
	recovery := material.NewRecovery(db, registry, material.Options{
		Treasury:    cfg.Ledger.Treasury,
		TokensPerKg: cfg.Ledger.TokensPerKg,
	})

	return &App{
		Config:     cfg,
		DB:         db,
		Ledger:     serialized,
		Sync:       sync,
		Triage:     engine,
		Events:     pub,
		Assets:     registry,
		Recovery:   recovery,
		Settlement: settlement.NewService(db, registry, cfg.Ledger.TokensPerKg),
		raw:        client,
	}
}

// Migrate creates or updates every table and seeds one stock row per material.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		return err
	}
	return materialRepo.NewStockRepository(db).Seed()
}

// Close stops the signer queue and releases external connections.
func (a *App) Close() {
	a.Ledger.Close()
	if c, ok := a.raw.(interface{ Close() }); ok {
		c.Close()
	}
	if err := a.Events.Close(); err != nil {
		logger.Warn("event publisher close", zap.Error(err))
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
