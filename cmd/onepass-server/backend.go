package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Techtrust201/cannes-one-pass/internal/config"
	"github.com/Techtrust201/cannes-one-pass/internal/db"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store/memory"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store/postgres"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store/sqlite"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/zone"
)

// openStore opens the configured backend, applying migrations. The returned
// func releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil

	case "postgres":
		pool, err := db.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres store ready")
		return postgres.New(pool), pool.Close, nil

	default:
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.SQLitePath})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{}); err != nil {
				_ = sqlDB.Close()
				return nil, nil, fmt.Errorf("seed dev data: %w", err)
			}
		}
		writer := db.NewWorker(sqlDB)
		logger.Info("sqlite store ready", "path", cfg.SQLitePath)
		return sqlite.New(sqlDB, writer), func() {
			writer.Close()
			_ = sqlDB.Close()
		}, nil
	}
}

func loadGraph(cfg config.Config) (*zone.Graph, error) {
	if cfg.ZonesFile == "" {
		return zone.Default(), nil
	}
	g, err := zone.Load(cfg.ZonesFile)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	return g, nil
}
