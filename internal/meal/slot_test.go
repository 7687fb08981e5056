package meal

import (
	"testing"
	"time"
)

func hm(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func TestSlotRuleClassify(t *testing.T) {
	tests := []struct {
		name string
		tod  time.Duration
		want Slot
	}{
		{"midnight", 0, SlotNone},
		{"early morning", hm(7, 59), SlotNone},
		{"just before breakfast", hm(8, 0) - time.Nanosecond, SlotNone},
		{"breakfast start", hm(8, 0), SlotBreakfast},
		{"mid breakfast", hm(9, 30), SlotBreakfast},
		{"just before lunch", hm(11, 0) - time.Nanosecond, SlotBreakfast},
		{"lunch start", hm(11, 0), SlotLunch},
		{"afternoon", hm(15, 45), SlotLunch},
		{"just before dinner", hm(17, 0) - time.Nanosecond, SlotLunch},
		{"dinner start", hm(17, 0), SlotDinner},
		{"late dinner", hm(23, 59), SlotDinner},
		{"last instant", 24*time.Hour - time.Nanosecond, SlotDinner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultSlotRule.Classify(tt.tod); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.tod, got, tt.want)
			}
		})
	}
}

// dinnerFirst is the older inclusive rule, kept here to pin that both
// rules agree.
func dinnerFirst(r SlotRule, tod time.Duration) Slot {
	switch {
	case tod >= r.Dinner:
		return SlotDinner
	case tod >= r.Lunch:
		return SlotLunch
	case tod >= r.Breakfast:
		return SlotBreakfast
	}
	return SlotNone
}

func TestSlotRuleMatchesDinnerFirstRule(t *testing.T) {
	for tod := time.Duration(0); tod < 24*time.Hour; tod += time.Minute {
		if got, want := DefaultSlotRule.Classify(tod), dinnerFirst(DefaultSlotRule, tod); got != want {
			t.Fatalf("at %v: half-open = %q, dinner-first = %q", tod, got, want)
		}
	}
}

func TestSlotRuleValidate(t *testing.T) {
	if err := DefaultSlotRule.Validate(); err != nil {
		t.Errorf("DefaultSlotRule.Validate() = %v", err)
	}
	bad := SlotRule{Breakfast: hm(12, 0), Lunch: hm(11, 0), Dinner: hm(17, 0)}
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for unordered thresholds")
	}
	if err := (SlotRule{Breakfast: hm(8, 0), Lunch: hm(11, 0), Dinner: 24 * time.Hour}).Validate(); err == nil {
		t.Errorf("expected error for dinner at 24h")
	}
}

func TestTimeOfDay(t *testing.T) {
	ts := time.Date(2026, 10, 14, 17, 5, 9, 42, time.UTC)
	want := hm(17, 5) + 9*time.Second + 42
	if got := TimeOfDay(ts); got != want {
		t.Errorf("TimeOfDay() = %v, want %v", got, want)
	}
}
