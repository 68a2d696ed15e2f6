package userauth

import "time"

// Clock is the time source for every expiry decision.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports wall time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC()
})

func resolveClock(clock Clock) Clock {
	if clock == nil {
		return SystemClock
	}
	return clock
}

// isPast reports whether now is strictly after expiresAt. The expiry
// instant itself is still valid.
func isPast(now, expiresAt time.Time) bool {
	return now.After(expiresAt)
}
