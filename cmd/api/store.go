package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TalentedProger/Preloader-Animate/internal/config"
	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/persistence"
	"github.com/TalentedProger/Preloader-Animate/internal/persistence/memory"
	"github.com/TalentedProger/Preloader-Animate/internal/persistence/postgres"
)

// buildStore picks the storage backend once at startup. Without a reachable
// database the service runs on the volatile store. The returned pool is nil
// unless the durable backend is active.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.Store, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; subscribers are kept in memory and lost on restart")
		return memory.NewStore(), nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseConnectTimeout)
	if err != nil {
		logger.Warn("database unreachable at startup; subscribers are kept in memory and lost on restart", zap.Error(err))
		return memory.NewStore(), nil
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		logger.Error("database migration failed; subscribers are kept in memory and lost on restart", zap.Error(err))
		pool.Close()
		return memory.NewStore(), nil
	}

	var store domain.Store = postgres.NewStore(pool)
	if cfg.StorageFallback {
		store = persistence.NewFallbackStore(store, memory.NewStore(), logger)
	}
	logger.Info("using postgres subscriber store", zap.Bool("fallback", cfg.StorageFallback))
	return store, pool
}
