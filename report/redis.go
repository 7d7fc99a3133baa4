package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis sink configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Key      string `yaml:"key"`
	MaxLen   int64  `yaml:"max_len"` // 0 = unbounded
}

// RedisReporter keeps a capped list of recent failure events in Redis.
type RedisReporter struct {
	rdb    *redis.Client
	key    string
	maxLen int64
}

// NewRedis creates a RedisReporter and verifies the connection.
func NewRedis(cfg RedisConfig) (*RedisReporter, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.Key == "" {
		cfg.Key = "failure_events"
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisReporter{rdb: rdb, key: cfg.Key, maxLen: cfg.MaxLen}, nil
}

func (r *RedisReporter) Report(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to encode failure event", "event_id", ev.ID, "error", err)
		return
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, payload)
	if r.maxLen > 0 {
		pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("Failed to store failure event in redis", "event_id", ev.ID, "error", err)
	}
}

// Recent returns up to n of the most recent failure events, newest first.
func (r *RedisReporter) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 10
	}
	raw, err := r.rdb.LRange(ctx, r.key, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("invalid failure event payload: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close closes the Redis connection.
func (r *RedisReporter) Close() error {
	return r.rdb.Close()
}
