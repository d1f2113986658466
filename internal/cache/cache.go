// Package cache provides the read cache used for aggregate queries.
//
// Entries are keyed by a per-owner generation number. Writers bump the
// generation after their transaction commits, which orphans every key built
// from the previous generation; orphaned keys expire through their TTL.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is a generation-keyed byte cache.
type Store interface {
	// Generation returns the current generation of an owner's cached data.
	Generation(ctx context.Context, ownerID string) (int64, error)
	// Invalidate advances the owner's generation.
	Invalidate(ctx context.Context, ownerID string) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const keyPrefix = "tally"

// Key builds a cache key scoped to an owner and generation.
func Key(ownerID string, generation int64, parts ...interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%d", keyPrefix, ownerID, generation)
	for _, p := range parts {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

func generationKey(ownerID string) string {
	return keyPrefix + ":gen:" + ownerID
}

type nopStore struct{}

// NewNop returns a Store that never holds anything.
func NewNop() Store { return nopStore{} }

func (nopStore) Generation(context.Context, string) (int64, error) { return 0, nil }
func (nopStore) Invalidate(context.Context, string) error           { return nil }
func (nopStore) Get(context.Context, string) ([]byte, bool, error)  { return nil, false, nil }
func (nopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
