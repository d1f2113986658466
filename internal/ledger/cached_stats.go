package ledger

import (
	"context"
	"encoding/json"
	"time"

	"tally/internal/cache"
	"tally/internal/logger"
)

// DefaultCacheTTL is how long cached series stay readable.
const DefaultCacheTTL = 10 * time.Minute

// cachedStats serves time series and available years from the read cache.
// Range queries scan entries and are passed straight through.
type cachedStats struct {
	StatsServicer
	store cache.Store
	ttl   time.Duration
}

// NewCachedStatsService wraps inner with a generation-keyed read cache.
func NewCachedStatsService(inner StatsServicer, store cache.Store, ttl time.Duration) StatsServicer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &cachedStats{StatsServicer: inner, store: store, ttl: ttl}
}

func (c *cachedStats) GetTimeSeries(ctx context.Context, ownerID string, q TimeSeriesQuery) ([]Period, error) {
	return cached(ctx, c, ownerID, func() ([]Period, error) {
		return c.StatsServicer.GetTimeSeries(ctx, ownerID, q)
	}, "series", q.Granularity, q.Year, q.Month)
}

func (c *cachedStats) GetAvailableYears(ctx context.Context, ownerID string) ([]int, error) {
	return cached(ctx, c, ownerID, func() ([]int, error) {
		return c.StatsServicer.GetAvailableYears(ctx, ownerID)
	}, "years")
}

// cached returns the value stored under the owner's current generation, or
// computes it with load and stores it. Cache failures degrade to load.
func cached[T any](ctx context.Context, c *cachedStats, ownerID string, load func() (T, error), parts ...interface{}) (T, error) {
	log := logger.Component("ledger")

	gen, err := c.store.Generation(ctx, ownerID)
	if err != nil {
		log.Warnw("Read cache unavailable", "user_id", ownerID, "error", err)
		return load()
	}
	key := cache.Key(ownerID, gen, parts...)

	if data, found, err := c.store.Get(ctx, key); err != nil {
		log.Warnw("Read cache get failed", "key", key, "error", err)
	} else if found {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}
		log.Warnw("Discarding undecodable cache value", "key", key)
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if data, err := json.Marshal(value); err != nil {
		log.Warnw("Failed to encode cache value", "key", key, "error", err)
	} else if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		log.Warnw("Read cache set failed", "key", key, "error", err)
	}
	return value, nil
}
