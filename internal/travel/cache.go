package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPositiveTTL = 30 * 24 * time.Hour
	DefaultNegativeTTL = 24 * time.Hour

	// lookupTimeout bounds a shared lookup once it no longer follows the
	// context of the caller that started it.
	lookupTimeout = 15 * time.Second

	notFoundMarker = "-"
)

// CachedGeocoder remembers geocode results in Redis, including misses, and
// collapses concurrent lookups for the same address into one upstream call.
// Cache errors are logged and fall through to the upstream geocoder.
type CachedGeocoder struct {
	next        Geocoder
	client      *redis.Client
	logger      *slog.Logger
	positiveTTL time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
}

func NewCachedGeocoder(next Geocoder, client *redis.Client, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		next:        next,
		client:      client,
		logger:      logger,
		positiveTTL: DefaultPositiveTTL,
		negativeTTL: DefaultNegativeTTL,
	}
}

// Geocode waits for the shared lookup only as long as ctx allows. A caller
// giving up does not cancel the lookup for the others waiting on it.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (Coordinates, error) {
	key := geocodeKey(address)

	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		cached, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil && cached == notFoundMarker:
			return Coordinates{}, ErrNotFound
		case err == nil:
			var coords Coordinates
			if err := json.Unmarshal([]byte(cached), &coords); err == nil {
				return coords, nil
			}
			c.logger.Warn("discarding corrupt geocode cache entry", "key", key)
		case !errors.Is(err, redis.Nil):
			c.logger.Error("geocode cache get failed", "error", err)
		}

		coords, err := c.next.Geocode(ctx, address)
		switch {
		case errors.Is(err, ErrNotFound):
			c.store(ctx, key, notFoundMarker, c.negativeTTL)
			return Coordinates{}, ErrNotFound
		case err != nil:
			return Coordinates{}, err
		}

		data, _ := json.Marshal(coords)
		c.store(ctx, key, string(data), c.positiveTTL)
		return coords, nil
	})

	select {
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Coordinates{}, res.Err
		}
		return res.Val.(Coordinates), nil
	}
}

func (c *CachedGeocoder) store(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Error("geocode cache set failed", "error", err)
	}
}

func geocodeKey(address string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	return fmt.Sprintf("geocode:%s", normalized)
}
