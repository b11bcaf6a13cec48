// Package rediscache holds Redis-backed caches.
package rediscache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bookclub-orders/internal/domain/city"
)

var _ city.Cache = (*CityCache)(nil)

// DefaultCityTTL is used when no TTL is configured.
const DefaultCityTTL = 24 * time.Hour

// NewClient connects to addr and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return c, nil
}

// CityCache stores resolved city names under "city:<zip>".
type CityCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCityCache creates a cache with the given TTL.
func NewCityCache(client redis.Cmdable, ttl time.Duration) *CityCache {
	if ttl <= 0 {
		ttl = DefaultCityTTL
	}
	return &CityCache{client: client, ttl: ttl}
}

func cityKey(zip string) string { return "city:" + zip }

// Get returns the cached city for zip.
func (c *CityCache) Get(ctx context.Context, zip string) (city.City, bool, error) {
	name, err := c.client.Get(ctx, cityKey(zip)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return city.City{}, false, nil
	case err != nil:
		return city.City{}, false, errors.Wrap(err, "get")
	}
	return city.City{ZipCode: zip, Name: name}, true, nil
}

// Set caches a city.
func (c *CityCache) Set(ctx context.Context, v city.City) error {
	if err := c.client.Set(ctx, cityKey(v.ZipCode), v.Name, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "set")
	}
	return nil
}
