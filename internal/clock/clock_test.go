package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockTracksWallTime(t *testing.T) {
	c := NewSystem()

	// The test host's clock is synced, so Now is epoch seconds.
	assert.True(t, c.Synced())
	assert.InDelta(t, time.Now().Unix(), c.Now(), 2)
}

func TestFakeClock(t *testing.T) {
	c := &Fake{TS: 100}
	assert.Equal(t, int64(100), c.Now())
	assert.True(t, c.Synced())

	c.Advance(30)
	assert.Equal(t, int64(130), c.Now())
}
