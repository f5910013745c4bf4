package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
)

// TallyStore shares exposure-control counters between engine instances via
// redis INCR, so concurrent sessions on different nodes see one tally.
type TallyStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewTallyStore(log *logger.Logger) (*TallyStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &TallyStore{
		log: log.With("service", "RedisTallyStore"),
		rdb: rdb,
	}, nil
}

func (s *TallyStore) Incr(ctx context.Context, key string) (int64, error) {
	if s == nil || s.rdb == nil {
		return 0, fmt.Errorf("redis tally store not initialized")
	}
	return s.rdb.Incr(ctx, key).Result()
}

func (s *TallyStore) Get(ctx context.Context, key string) (int64, error) {
	if s == nil || s.rdb == nil {
		return 0, fmt.Errorf("redis tally store not initialized")
	}
	val, err := s.rdb.Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return val, err
}

func (s *TallyStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
