package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/lock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, lockWait time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, config.BookingConfig{
		FlightsCacheTTL: 30,
		LockTTLSeconds:  15,
		LockWaitMillis:  int(lockWait / time.Millisecond),
	})
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewRedisCache(t *testing.T) {
	c := NewRedisCache(config.RedisConfig{Addr: "localhost:6379"}, config.BookingConfig{
		FlightsCacheTTL: 30,
		LockTTLSeconds:  15,
		LockWaitMillis:  250,
	})
	defer c.Close()

	assert.NotNil(t, c.Client())
	assert.Equal(t, 30*time.Second, c.flightsTTL)
	assert.Equal(t, 15*time.Second, c.lockTTL)
	assert.Equal(t, 250*time.Millisecond, c.lockWait)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cache:flights:all", flightsKey("all"))
	assert.Equal(t, "lock:booking:abc", lockKey(lock.BookingKey("abc")))
	assert.Equal(t, "lock:flight:0000000000000000042", lockKey(lock.FlightKey(42)))
}

func TestRedisCache_Flights(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	got, err := c.GetFlights(ctx, "all")
	require.NoError(t, err)
	assert.Nil(t, got)

	flights := []domain.Flight{{ID: 1, FromAirport: "DEL", ToAirport: "MAA", TotalSeats: 4, AvailableSeats: 4}}
	require.NoError(t, c.SetFlights(ctx, "all", flights))
	require.NoError(t, c.SetFlights(ctx, "search:DEL:MAA", flights))
	assert.Equal(t, 30*time.Second, mr.TTL(flightsKey("all")))

	got, err = c.GetFlights(ctx, "all")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	require.NoError(t, mr.Set(lockKey("flight:1"), "token"))
	require.NoError(t, c.InvalidateFlights(ctx))
	assert.False(t, mr.Exists(flightsKey("all")))
	assert.False(t, mr.Exists(flightsKey("search:DEL:MAA")))
	assert.True(t, mr.Exists(lockKey("flight:1")))
}

func TestRedisCache_LockExclusive(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := c.Lock(ctx, lock.FlightKey(1))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestRedisCache_LockTimeout(t *testing.T) {
	c, mr := newTestCache(t, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, mr.TTL(lockKey("k")))

	_, err = c.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock()
	assert.False(t, mr.Exists(lockKey("k")))

	again, err := c.Lock(ctx, "k")
	require.NoError(t, err)
	again()
}

func TestRedisCache_LockReleasesHeldKeysOnFailure(t *testing.T) {
	c, mr := newTestCache(t, 50*time.Millisecond)
	ctx := context.Background()

	holder, err := c.Lock(ctx, "b")
	require.NoError(t, err)
	defer holder()

	_, err = c.Lock(ctx, "b", "a")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, mr.Exists(lockKey("a")))
	assert.True(t, mr.Exists(lockKey("b")))
}

func TestRedisCache_StaleUnlockKeepsSuccessorKey(t *testing.T) {
	c, mr := newTestCache(t, 50*time.Millisecond)
	ctx := context.Background()

	stale, err := c.Lock(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(16 * time.Second)
	require.False(t, mr.Exists(lockKey("k")))

	successor, err := c.Lock(ctx, "k")
	require.NoError(t, err)
	token, err := mr.Get(lockKey("k"))
	require.NoError(t, err)

	stale()
	got, err := mr.Get(lockKey("k"))
	require.NoError(t, err)
	assert.Equal(t, token, got)

	_, err = c.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	successor()
	assert.False(t, mr.Exists(lockKey("k")))
}

func TestRedisCache_LockContextCancelled(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Second)

	unlock, err := c.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.Lock(ctx, "k")
	assert.Error(t, err)
}
