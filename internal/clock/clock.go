// Package clock supplies timestamps for readings. Wall-clock time is used
// once the host clock looks synchronized; until then timestamps are
// boot-relative seconds, matching what the firmware produced before NTP.
package clock

import "time"

// Clock is the timestamp source injected into the retention store and the
// scheduler. Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current timestamp in integer seconds: epoch seconds
	// when synchronized, boot-relative seconds otherwise.
	Now() int64
	// Synced reports whether Now returns epoch time.
	Synced() bool
}

// Hosts with a dead RTC and no NTP boot into the 1970s; anything before
// this is treated as "not synchronized yet".
var sanityEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// System is the production clock.
type System struct {
	start time.Time
}

// NewSystem creates a system clock anchored at process start.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (c *System) Now() int64 {
	now := time.Now()
	if now.After(sanityEpoch) {
		return now.Unix()
	}
	return int64(now.Sub(c.start) / time.Second)
}

func (c *System) Synced() bool {
	return time.Now().After(sanityEpoch)
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	TS int64
}

func (c *Fake) Now() int64   { return c.TS }
func (c *Fake) Synced() bool { return true }

// Advance moves the fake clock forward by d seconds.
func (c *Fake) Advance(d int64) { c.TS += d }
