package timeutil

import "time"

var nowFunc = time.Now

// Now returns the current time. It is wrapped so tests can freeze the
// clock for the scheduler staleness checks and repository timestamps.
func Now() time.Time {
	return nowFunc()
}

// SetNowFunc overrides the function used by Now. Passing nil resets it.
func SetNowFunc(fn func() time.Time) {
	if fn == nil {
		nowFunc = time.Now
		return
	}
	nowFunc = fn
}
