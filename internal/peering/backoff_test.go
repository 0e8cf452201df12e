package peering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffMonotonic(t *testing.T) {
	b := NewBackoff(time.Second, 60*time.Second)

	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, prev, "intervals never decrease")
		assert.LessOrEqual(t, d, 60*time.Second, "intervals never exceed the cap")
		prev = d
	}
	assert.Equal(t, 60*time.Second, prev, "schedule saturates at the cap")
}

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(time.Second, 60*time.Second)
	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, 60*time.Second)
	b.Next()
	b.Next()
	b.Next()

	b.Reset()
	assert.Equal(t, time.Second, b.Next(), "stable connection resets to the minimum")
}
