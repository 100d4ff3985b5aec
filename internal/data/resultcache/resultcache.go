package resultcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instance *Store
	once     sync.Once
	logger   *logger_i.Logger
)

// Store wraps the shared redis client behind the small surface the query
// service needs. The cache is advisory: callers must treat every error here
// as a miss, never as a request failure.
type Store struct {
	client *redis.Client
}

func GetResultCache(ctx context.Context) *Store {
	once.Do(func() {
		logger = logger_i.NewLogger("ResultCache")
		instance = newStore(ctx)
	})
	return instance
}

func newStore(ctx context.Context) *Store {
	addr := config.EnvOr("REDIS_ADDR", config.RedisAddr)

	client := redis.NewClient(&redis.Options{
		Addr:                  addr,
		Password:              config.RedisPassword,
		DB:                    config.ResultCacheDB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		// Cache outage is survivable, search degrades to recompute.
		logger.Error("Redis is offline", "error", err.Error())
	} else {
		logger.Info("Result cache connected", "addr", addr)
	}

	go closeOnDone(ctx, client)
	return &Store{client: client}
}

func closeOnDone(ctx context.Context, client *redis.Client) {
	<-ctx.Done()
	logger.Info("Closing result cache")
	if err := client.Close(); err != nil {
		logger.Error("Error closing redis client", "error", err)
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Probe(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Only for _test.go files
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client}
}
