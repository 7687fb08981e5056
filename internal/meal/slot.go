package meal

import (
	"fmt"
	"time"
)

// Slot is one of the three meal buckets. The zero value means no slot.
type Slot string

const (
	SlotNone      Slot = ""
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
)

// Slots lists the meal slots in day order.
var Slots = [...]Slot{SlotBreakfast, SlotLunch, SlotDinner}

// SlotRule holds the lower bound of each slot as an offset from midnight.
// Ranges are half-open: [Breakfast, Lunch) is breakfast, [Lunch, Dinner)
// is lunch, and Dinner onwards until midnight is dinner. Anything before
// Breakfast has no slot.
type SlotRule struct {
	Breakfast time.Duration
	Lunch     time.Duration
	Dinner    time.Duration
}

// DefaultSlotRule is 08:00 / 11:00 / 17:00.
var DefaultSlotRule = SlotRule{
	Breakfast: 8 * time.Hour,
	Lunch:     11 * time.Hour,
	Dinner:    17 * time.Hour,
}

// Validate checks the thresholds are ordered and inside one day.
func (r SlotRule) Validate() error {
	if r.Breakfast < 0 || r.Breakfast >= r.Lunch || r.Lunch >= r.Dinner || r.Dinner >= 24*time.Hour {
		return fmt.Errorf("meal: slot thresholds must satisfy 0 <= breakfast < lunch < dinner < 24h, got %v/%v/%v",
			r.Breakfast, r.Lunch, r.Dinner)
	}
	return nil
}

// Classify maps a time of day (offset from midnight) to a slot.
//
// An older rule compared dinner first with inclusive lower bounds and no
// upper bounds; it agrees with this one everywhere, including exactly at
// the thresholds, as long as the thresholds are ordered.
func (r SlotRule) Classify(timeOfDay time.Duration) Slot {
	switch {
	case timeOfDay >= r.Dinner && timeOfDay < 24*time.Hour:
		return SlotDinner
	case timeOfDay >= r.Lunch && timeOfDay < r.Dinner:
		return SlotLunch
	case timeOfDay >= r.Breakfast && timeOfDay < r.Lunch:
		return SlotBreakfast
	default:
		return SlotNone
	}
}

// TimeOfDay returns the wall-clock offset of t from midnight in t's own
// location.
func TimeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
