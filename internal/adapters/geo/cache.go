package geo

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
	"github.com/Peuqui/endlessh-exporter/internal/ports"
)

// Cache memoizes successful lookups for the process lifetime; addresses are
// assumed not to relocate within a run, so entries are never invalidated.
// Failed lookups are not cached and will be retried on a later pass.
//
// Implements ports.GeoResolver as a decorator around the online resolver.
type Cache struct {
	mu        sync.RWMutex
	resolver  ports.GeoResolver
	locations map[string]domain.GeoLocation
}

func NewCache(resolver ports.GeoResolver) *Cache {
	return &Cache{
		resolver:  resolver,
		locations: make(map[string]domain.GeoLocation),
	}
}

// Resolve returns the cached location for ip, or populates the cache from
// the wrapped resolver. On lookup failure the Unknown placeholder and the
// error are returned and nothing is cached.
func (c *Cache) Resolve(ctx context.Context, ip string) (domain.GeoLocation, error) {
	c.mu.RLock()
	loc, ok := c.locations[ip]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := c.resolver.Resolve(ctx, ip)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("Geolocation lookup failed, using placeholder")
		return domain.UnknownLocation(), err
	}

	c.mu.Lock()
	c.locations[ip] = loc
	c.mu.Unlock()
	return loc, nil
}

// Len returns the number of cached locations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.locations)
}
