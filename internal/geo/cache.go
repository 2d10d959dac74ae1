package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/metrics"
	"github.com/go-redis/redis/v8"
)

// Cache stores geocoding results by normalized query.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Coordinates, bool, error)
	Set(ctx context.Context, key string, c domain.Coordinates, ttl time.Duration) error
}

// RedisCache is a Cache on top of a redis server.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the redis server at rawURL
// (redis://[:password@]host:port/db) and pings it.
func NewRedisCache(ctx context.Context, rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, prefix: "geocode:"}, nil
}

// Get returns the cached coordinate for key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.Coordinates, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Coordinates{}, false, nil
	}
	if err != nil {
		return domain.Coordinates{}, false, err
	}
	var coords domain.Coordinates
	if err := json.Unmarshal(raw, &coords); err != nil {
		return domain.Coordinates{}, false, err
	}
	return coords, true, nil
}

// Set stores a coordinate for key.
func (c *RedisCache) Set(ctx context.Context, key string, coords domain.Coordinates, ttl time.Duration) error {
	raw, err := json.Marshal(coords)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

// Close closes the redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedGeocoder consults a Cache before asking the wrapped Geocoder. Cache
// failures are logged and never fail a lookup.
type CachedGeocoder struct {
	next   Geocoder
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedGeocoder wraps next with cache.
func NewCachedGeocoder(next Geocoder, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Geocode implements Geocoder.
func (g *CachedGeocoder) Geocode(ctx context.Context, query string) (domain.Coordinates, error) {
	key := CacheKey(query)

	if coords, ok, err := g.cache.Get(ctx, key); err != nil {
		g.logger.Warn("geocode cache read failed", "error", err)
	} else if ok {
		metrics.GeocodeLookup("cached")
		return coords, nil
	}

	coords, err := g.next.Geocode(ctx, query)
	if err != nil {
		return coords, err
	}

	if err := g.cache.Set(ctx, key, coords, g.ttl); err != nil {
		g.logger.Warn("geocode cache write failed", "error", err)
	}
	return coords, nil
}

// CacheKey normalizes a query so trivially different spellings share an
// entry.
func CacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
