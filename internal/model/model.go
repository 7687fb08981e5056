package model

import "time"

// Occurrence represents a single concrete instance of an event after
// recurrence expansion. Start keeps the zone it was resolved in; the meal
// classifier converts it to the reference zone.
type Occurrence struct {
	UID string // iCalendar UID, may be empty

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the UTC start time.
	InstanceKey string

	Summary string
	AllDay  bool

	Start time.Time
	End   time.Time
}
