package dedup

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"aprsd/internal/constants"
)

// MemoryStore keeps fingerprints in an in-process TTL cache with a
// periodic janitor sweep. This is the default backend; the cache is
// rebuilt empty on restart.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	if window <= 0 {
		window = constants.DefaultDedupWindow
	}
	sweep := constants.DedupSweepInterval
	if sweep > window {
		sweep = window
	}
	return &MemoryStore{c: gocache.New(window, sweep)}
}

func (st *MemoryStore) Seen(_ context.Context, fp uint64) (bool, error) {
	key := strconv.FormatUint(fp, 16)
	// Add fails when the key is already present and unexpired.
	if err := st.c.Add(key, struct{}{}, gocache.DefaultExpiration); err != nil {
		return true, nil
	}
	return false, nil
}

func (st *MemoryStore) Size() int {
	return st.c.ItemCount()
}

func (st *MemoryStore) Close() error {
	st.c.Flush()
	return nil
}
