package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/lock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes a lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
	lockTTL    time.Duration
	lockWait   time.Duration
}

func NewRedisCache(cfg config.RedisConfig, booking config.BookingConfig) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: booking.FlightsCacheDuration(),
		lockTTL:    booking.LockTTL(),
		lockWait:   booking.LockWait(),
	}
}

// Client exposes the underlying client for components that share the
// connection, such as the rate limiter store.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetFlights(ctx context.Context, key string) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, key string, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(key), payload, c.flightsTTL).Err()
}

// InvalidateFlights drops every cached flight listing.
func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, flightsKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Lock takes every key with SET NX PX in ascending order, polling until the
// configured wait elapses. Keys expire after the lock TTL so a crashed
// holder cannot block a flight forever.
func (c *RedisCache) Lock(ctx context.Context, keys ...string) (lock.Unlock, error) {
	token := uuid.NewString()
	ordered := lock.SortedKeys(keys)
	held := make([]string, 0, len(ordered))

	release := func() {
		// Release with a fresh context so a cancelled request still frees its keys.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = releaseScript.Run(rctx, c.client, []string{lockKey(held[i])}, token).Err()
		}
	}

	for _, key := range ordered {
		if err := c.acquire(ctx, lockKey(key), token); err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (c *RedisCache) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(c.lockWait)
	backoff := 10 * time.Millisecond
	for {
		ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

func flightsKey(key string) string {
	return "cache:flights:" + key
}

func lockKey(key string) string {
	return "lock:" + key
}

var _ lock.Locker = (*RedisCache)(nil)
