package travel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	coords Coordinates
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (c *countingGeocoder) Geocode(_ context.Context, _ string) (Coordinates, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.coords, c.err
}

func setupCache(t *testing.T, next Geocoder) (*CachedGeocoder, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedGeocoder(next, client, logger), mr
}

func TestCachedGeocoder_CachesHits(t *testing.T) {
	upstream := &countingGeocoder{coords: Coordinates{Lat: 52.1, Lon: 5.1}}
	cache, mr := setupCache(t, upstream)
	ctx := context.Background()

	for range 3 {
		coords, err := cache.Geocode(ctx, "Domplein 1, Utrecht")
		require.NoError(t, err)
		assert.Equal(t, upstream.coords, coords)
	}

	assert.Equal(t, int32(1), upstream.calls.Load())
	assert.Equal(t, DefaultPositiveTTL, mr.TTL("geocode:domplein 1, utrecht"))
}

func TestCachedGeocoder_NormalizesAddress(t *testing.T) {
	upstream := &countingGeocoder{coords: Coordinates{Lat: 52.1, Lon: 5.1}}
	cache, _ := setupCache(t, upstream)
	ctx := context.Background()

	_, err := cache.Geocode(ctx, "Domplein 1,  Utrecht")
	require.NoError(t, err)
	_, err = cache.Geocode(ctx, "  domplein 1, UTRECHT ")
	require.NoError(t, err)

	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestCachedGeocoder_CachesMisses(t *testing.T) {
	upstream := &countingGeocoder{err: ErrNotFound}
	cache, mr := setupCache(t, upstream)
	ctx := context.Background()

	_, err := cache.Geocode(ctx, "Nergens 99")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cache.Geocode(ctx, "Nergens 99")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(1), upstream.calls.Load())
	assert.Equal(t, DefaultNegativeTTL, mr.TTL("geocode:nergens 99"))

	mr.FastForward(DefaultNegativeTTL + time.Second)
	_, _ = cache.Geocode(ctx, "Nergens 99")
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCachedGeocoder_DoesNotCacheFailures(t *testing.T) {
	upstream := &countingGeocoder{err: errors.New("upstream down")}
	cache, mr := setupCache(t, upstream)

	_, err := cache.Geocode(context.Background(), "Domplein 1")
	assert.ErrorContains(t, err, "upstream down")
	assert.False(t, mr.Exists("geocode:domplein 1"))
}

func TestCachedGeocoder_CollapsesConcurrentLookups(t *testing.T) {
	upstream := &countingGeocoder{coords: Coordinates{Lat: 52.1, Lon: 5.1}, delay: 50 * time.Millisecond}
	cache, _ := setupCache(t, upstream)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Geocode(context.Background(), "Domplein 1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestCachedGeocoder_RedisDownFallsThrough(t *testing.T) {
	upstream := &countingGeocoder{coords: Coordinates{Lat: 52.1, Lon: 5.1}}
	cache, mr := setupCache(t, upstream)
	mr.Close()

	coords, err := cache.Geocode(context.Background(), "Domplein 1")
	require.NoError(t, err)
	assert.Equal(t, upstream.coords, coords)
}

type gatedGeocoder struct {
	coords  Coordinates
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedGeocoder) Geocode(ctx context.Context, _ string) (Coordinates, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return g.coords, nil
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	}
}

func TestCachedGeocoder_CancelledCallerDoesNotFailOthers(t *testing.T) {
	upstream := &gatedGeocoder{coords: Coordinates{Lat: 52.1, Lon: 5.1}, release: make(chan struct{})}
	cache, _ := setupCache(t, upstream)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Geocode(firstCtx, "Domplein 1")
		firstErr <- err
	}()

	require.Eventually(t, func() bool { return upstream.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		coords Coordinates
		err    error
	}
	second := make(chan result, 1)
	go func() {
		coords, err := cache.Geocode(context.Background(), "Domplein 1")
		second <- result{coords, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(upstream.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, upstream.coords, res.coords)
	assert.Equal(t, int32(1), upstream.calls.Load())
}
