package marketdata

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// staleRetention is how long an expired entry remains readable through
// GetStale before the janitor drops it. Expired entries are only ever
// served as an explicit last resort.
const staleRetention = 24 * time.Hour

// entry wraps a cached payload with its logical expiry. The backing store
// keeps entries for the full stale-retention window; freshness is decided
// against ExpiresAt, not the store's own eviction.
type entry struct {
	payload   interface{}
	expiresAt time.Time
}

// Cache is a TTL-keyed store for quote batches and curated lists. Values
// are immutable snapshots, so concurrent last-writer-wins on a key is
// acceptable without per-key locking. There is no eviction beyond expiry:
// the key space is bounded by the finite universe of requested ticker
// sets. At larger scale this would need LRU eviction.
type Cache struct {
	store *gocache.Cache
	log   zerolog.Logger
}

// NewCache creates a new cache
func NewCache(log zerolog.Logger) *Cache {
	return &Cache{
		store: gocache.New(staleRetention, 2*staleRetention),
		log:   log.With().Str("component", "cache").Logger(),
	}
}

// Put stores a value under key with the given TTL
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, entry{
		payload:   value,
		expiresAt: time.Now().Add(ttl),
	}, staleRetention)
}

// Get returns the value for key if it has not expired
func (c *Cache) Get(key string) (interface{}, bool) {
	raw, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	e := raw.(entry)
	if time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}

// GetStale returns the value for key ignoring expiry. Last-resort
// fallback only: stale prices beat blocking on dead providers.
func (c *Cache) GetStale(key string) (interface{}, bool) {
	raw, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	e := raw.(entry)
	if time.Now().After(e.expiresAt) {
		c.log.Debug().Str("key", key).Msg("Serving expired cache entry")
	}
	return e.payload, true
}
