package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/zscreen/pkg/config"
)

// connectTimeout bounds the startup ping; an unreachable cache fails fast
// instead of stalling a batch run
const connectTimeout = 3 * time.Second

// Client is the series cache connection. The zero value and Disabled()
// are valid and make every cache call a no-op.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb *redis.Client
}

// New connects when REDIS_ENABLED is set and verifies the server answers
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return Disabled(), nil
	}

	c := &Client{rdb: redis.NewClient(options(cfg.Redis))}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func options(rc config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(rc.Host, rc.Port),
		Password:     rc.Password,
		DB:           rc.DB,
		ClientName:   "zscreen",
		DialTimeout:  connectTimeout,
		ReadTimeout:  2 * time.Second, // 시계열 한 건 조회 기준
		WriteTimeout: 2 * time.Second,
	}
}

// NewFromClient wraps an existing client (tests, shared pools)
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Disabled returns a client with caching turned off
func Disabled() *Client {
	return &Client{}
}

// Enabled reports whether a connection is configured
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Ping measures one round trip. A disabled client reports zero and no error.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	if !c.Enabled() {
		return 0, nil
	}
	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("redis ping %s: %w", c.rdb.Options().Addr, err)
	}
	return time.Since(start), nil
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// Redis exposes the go-redis client to the cache helpers
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
