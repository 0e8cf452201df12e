package dedup

import "context"

// Store is the arbiter of "already delivered". Seen atomically checks
// and records a fingerprint: the first caller within the window gets
// false, everyone else true until the entry expires.
type Store interface {
	Seen(ctx context.Context, fp uint64) (bool, error)
	// Size returns the current number of live entries, or -1 when the
	// backend cannot count them cheaply.
	Size() int
	Close() error
}
