package util

import "time"

// TimePointer converts a time.Time to a pointer to a time.Time.
func TimePointer(t time.Time) *time.Time {
	return &t
}

// Clock returns the current time. Components take a Clock so tests can pin time.
type Clock func() time.Time

// SystemClock returns time.Now in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}
