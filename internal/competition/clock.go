package competition

import "time"

// Clock decides whether scoring mutations are still permitted.
type Clock struct {
	end time.Time
}

// NewClock creates a clock that closes at end.
func NewClock(end time.Time) Clock {
	return Clock{end: end}
}

// IsOpen reports whether now is strictly before the end of the competition.
func (c Clock) IsOpen(now time.Time) bool {
	return now.Before(c.end)
}

// EndsAt returns the configured end instant.
func (c Clock) EndsAt() time.Time {
	return c.end
}
