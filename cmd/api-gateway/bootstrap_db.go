package main

import (
	"context"

	config "github.com/NordCoder/Alertus/internal/config/api-gateway"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Alertus/internal/repository/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("db connected")
	return db, nil
}

// initRedis returns nil when redis.addr is empty.
func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*goredis.Client, error) {
	rdb, err := redisrepo.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		logger.Info("redis disabled: in-app inbox and sweep lock are off")
		return nil, nil
	}
	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	return rdb, nil
}
