package peering

import "time"

// Backoff produces the wait before each reconnect attempt: exponential
// from min to max, reset to min after a stable connection.
type Backoff struct {
	min, max time.Duration
	next     time.Duration
}

func NewBackoff(min, max time.Duration) *Backoff {
	return &Backoff{min: min, max: max, next: min}
}

// Next returns the current interval and advances the schedule.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func (b *Backoff) Reset() {
	b.next = b.min
}
