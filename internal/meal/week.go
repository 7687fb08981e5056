package meal

import "time"

// Week is the Monday-to-Sunday window containing a reference instant.
type Week struct {
	Start time.Time // Monday 00:00:00
	End   time.Time // Sunday 23:59:59.999999
}

// CurrentWeek returns the week containing now, in now's location.
func CurrentWeek(now time.Time) Week {
	y, m, d := now.Date()
	offset := DayIndex(now.Weekday())
	loc := now.Location()
	return Week{
		Start: time.Date(y, m, d-offset, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d-offset+6, 23, 59, 59, 999999000, loc),
	}
}

// ContainsDate reports whether the calendar date of t (read in t's own
// location) is one of the week's seven dates.
func (w Week) ContainsDate(t time.Time) bool {
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, w.Start.Location())
	return !date.Before(w.Start) && !date.After(w.End)
}

// DayIndex maps a weekday to the schedule index, Monday=0 … Sunday=6.
func DayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
