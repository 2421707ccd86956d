// utils/dates.go
package utils

import (
	"strconv"
	"time"
)

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func DaysBetween(start, end time.Time) int {
	start = BeginningOfDay(start)
	end = BeginningOfDay(end)
	return int(end.Sub(start).Hours() / 24)
}

// IsTomorrow reports whether date falls on the calendar day after now, with
// both instants read in loc.
func IsTomorrow(date, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	tomorrow := BeginningOfDay(now.In(loc)).AddDate(0, 0, 1)
	return BeginningOfDay(date.In(loc)).Equal(tomorrow)
}

// DayRange returns [start of day, start of next day) for t in loc.
func DayRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := BeginningOfDay(t.In(loc))
	return start, start.AddDate(0, 0, 1)
}

// RelativeDay renders a date as "Today", "Tomorrow", "Yesterday" or "N days".
func RelativeDay(date, now time.Time) string {
	switch d := DaysBetween(now, date); {
	case d == 0:
		return "Today"
	case d == 1:
		return "Tomorrow"
	case d == -1:
		return "Yesterday"
	case d < 0:
		return strconv.Itoa(-d) + " days ago"
	default:
		return strconv.Itoa(d) + " days"
	}
}
