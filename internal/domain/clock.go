package domain

import "time"

// Clock supplies the current time. The location of the returned time
// defines calendar day boundaries.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// DayWindow is a calendar day, inclusive at both ends.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// DayOf returns the local calendar day containing t, using t's location.
func DayOf(t time.Time) DayWindow {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	next := time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	return DayWindow{Start: start, End: next.Add(-time.Nanosecond)}
}

// Contains reports whether t falls within the day.
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
