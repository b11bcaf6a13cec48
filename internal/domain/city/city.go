// Package city resolves postal codes to city names.
package city

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

// MsgNotFound is returned when a postal code is unknown.
const MsgNotFound = "No city found for zip code"

// City is a postal code with its city.
type City struct {
	ZipCode string
	Name    string
}

// Store resolves postal codes. Cities returns every match in a stable
// order; it may be empty.
type Store interface {
	CitiesByZip(ctx context.Context, zip string) ([]City, error)
}

// Cache holds resolved cities. A miss is (City{}, false, nil).
type Cache interface {
	Get(ctx context.Context, zip string) (City, bool, error)
	Set(ctx context.Context, c City) error
}

// Service looks cities up, optionally through a read-through cache.
type Service struct {
	store Store
	cache Cache
}

// NewService creates a Service. cache may be nil.
func NewService(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

// CityByZip returns the first city registered for zip. Cache failures are
// logged and the store is used instead.
func (s *Service) CityByZip(ctx context.Context, zip string) (City, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return City{}, apperr.MissingParameters("zipCode")
	}

	if s.cache != nil {
		c, ok, err := s.cache.Get(ctx, zip)
		switch {
		case err != nil:
			zctx.From(ctx).Warn("City cache read failed", zap.String("zip", zip), zap.Error(err))
		case ok:
			return c, nil
		}
	}

	cities, err := s.store.CitiesByZip(ctx, zip)
	if err != nil {
		return City{}, errors.Wrap(err, "lookup city")
	}
	if len(cities) == 0 {
		return City{}, apperr.NotFound(MsgNotFound)
	}
	c := cities[0]

	if s.cache != nil {
		if err := s.cache.Set(ctx, c); err != nil {
			zctx.From(ctx).Warn("City cache write failed", zap.String("zip", zip), zap.Error(err))
		}
	}
	return c, nil
}
