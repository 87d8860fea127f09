package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := FixedClock{T: at}
	assert.Equal(t, at, clock.Now())
	assert.Equal(t, at, clock.Now(), "fixed clocks never advance")
}

func TestSystemClock_UTC(t *testing.T) {
	now := SystemClock{}.Now()
	_, offset := now.Zone()
	assert.Equal(t, 0, offset)
	assert.WithinDuration(t, time.Now().UTC(), now, time.Minute)
}
