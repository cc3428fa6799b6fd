package pricestore

import (
	"context"
	"fmt"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/config"
	"github.com/wonny/zscreen/pkg/database"
	"github.com/wonny/zscreen/pkg/logger"
	"github.com/wonny/zscreen/pkg/redis"
)

// Open builds the price store selected by cfg, wrapped with the Redis cache
// and the load limiter when configured. The returned closer releases
// connections.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (contracts.PriceStore, func(), error) {
	names, err := LoadNames(cfg.StocklistPath)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   contracts.PriceStore
		closers []func()
	)

	switch cfg.PriceBackend {
	case "postgres":
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		store = NewPostgresStore(db.Pool, names)
	case "parquet", "":
		store = NewParquetStore(cfg.DataDir, names)
	default:
		return nil, nil, fmt.Errorf("unknown price backend %q", cfg.PriceBackend)
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, cfg)
		if err != nil {
			// 캐시는 선택 사항: 연결 실패 시 캐시 없이 진행
			log.WithError(err).Warn("Redis unavailable, series cache disabled")
		} else {
			closers = append(closers, func() { client.Close() })
			store = NewCachedStore(store, redis.NewCache(client, "zscreen"), cfg.Redis.TTL, log)
		}
	}

	if cfg.Engine.LoadRateLimit > 0 {
		store = NewThrottled(store, cfg.Engine.LoadRateLimit)
	}

	log.WithFields(map[string]interface{}{
		"backend": cfg.PriceBackend,
		"names":   len(names),
		"cache":   cfg.Redis.Enabled,
	}).Debug("Price store ready")

	return store, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
