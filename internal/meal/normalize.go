package meal

import "time"

// Normalize converts an event start into the reference zone ref.
// Date-only values are taken as midnight UTC of their date, whatever
// location they were parsed in. Floating values are expected to arrive
// already anchored to UTC.
func Normalize(start time.Time, allDay bool, ref *time.Location) time.Time {
	if ref == nil {
		ref = time.UTC
	}
	if allDay {
		y, m, d := start.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return start.In(ref)
}
