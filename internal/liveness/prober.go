// Package liveness reports whether the bot core process is alive based on
// the heartbeat it writes to Redis.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Prober answers whether the bot core is alive. Implementations never fail:
// an unreachable store means the bot is reported offline.
type Prober interface {
	IsAlive(ctx context.Context) bool
}

// RedisConfig points a RedisProber at the heartbeat key.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	Key      string
	// Timeout bounds a single probe on top of the client's own dial/read timeouts.
	Timeout time.Duration
	// MaxAge rejects heartbeats whose unix-timestamp value is older than this. Zero disables it.
	MaxAge time.Duration
}

// RedisProber checks a single well-known key in Redis.
type RedisProber struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewRedisProber creates a prober with its own connection pool. No network I/O happens here.
func NewRedisProber(cfg RedisConfig, logger *slog.Logger) *RedisProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		Password:     cfg.Password,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   -1,
	})
	return newRedisProber(client, cfg, logger)
}

func newRedisProber(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *RedisProber {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisProber{
		client:  client,
		key:     cfg.Key,
		timeout: cfg.Timeout,
		maxAge:  cfg.MaxAge,
		now:     time.Now,
		logger:  logger.With("component", "liveness"),
	}
}

// IsAlive reports whether the heartbeat key is present and fresh.
func (p *RedisProber) IsAlive(ctx context.Context) bool {
	alive, err := p.Check(ctx)
	if err != nil {
		p.logger.Warn("Heartbeat probe failed, reporting bot offline", "key", p.key, "error", err)
		return false
	}
	return alive
}

// Check is IsAlive with the store error exposed, for health reporting.
func (p *RedisProber) Check(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	n, err := p.client.Exists(ctx, p.key).Result()
	if err != nil {
		return false, fmt.Errorf("check heartbeat %q: %w", p.key, err)
	}
	if n == 0 {
		return false, nil
	}
	if p.maxAge <= 0 {
		return true, nil
	}

	// Only string heartbeats carry a timestamp; any other type counts as present.
	kind, err := p.client.Type(ctx, p.key).Result()
	if err != nil {
		return false, fmt.Errorf("check heartbeat type %q: %w", p.key, err)
	}
	if kind != "string" {
		return kind != "none", nil
	}
	value, err := p.client.Get(ctx, p.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read heartbeat %q: %w", p.key, err)
	}
	if ts, ok := parseUnix(value); ok && p.now().Sub(ts) > p.maxAge {
		p.logger.Debug("Heartbeat is stale", "key", p.key, "last_beat", ts)
		return false, nil
	}
	return true, nil
}

// Close releases the connection pool.
func (p *RedisProber) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close heartbeat client: %w", err)
	}
	return nil
}

// parseUnix accepts integer or fractional unix seconds.
func parseUnix(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos), true
}
