package meal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
)

// DaysPerWeek is the fixed number of day entries in a schedule.
const DaysPerWeek = 7

// DateLayout renders the "today" entry's Date field, e.g. "October, 14, 2026".
const DateLayout = "January, 02, 2006"

// DayMeals is one day's record. Empty strings mean no event was classified
// into that slot.
type DayMeals struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

// Get returns the title stored in slot s.
func (d DayMeals) Get(s Slot) string {
	switch s {
	case SlotBreakfast:
		return d.Breakfast
	case SlotLunch:
		return d.Lunch
	case SlotDinner:
		return d.Dinner
	}
	return ""
}

func (d *DayMeals) set(s Slot, title string) {
	switch s {
	case SlotBreakfast:
		d.Breakfast = title
	case SlotLunch:
		d.Lunch = title
	case SlotDinner:
		d.Dinner = title
	}
}

// TodayMeals mirrors the current day's record and adds a display date.
type TodayMeals struct {
	DayMeals
	Date string `json:"Date"`
}

// WeeklySchedule maps day index (0=Monday … 6=Sunday) to that day's meals.
// It always has exactly seven entries; Today is optional.
type WeeklySchedule struct {
	Days  [DaysPerWeek]DayMeals
	Today *TodayMeals
}

// NewWeeklySchedule returns a schedule with every slot empty.
func NewWeeklySchedule() *WeeklySchedule {
	return &WeeklySchedule{}
}

// Set stores title in day/slot unless that slot already holds a non-empty
// title. It reports whether title was stored. Callers fold events in feed
// order, so the first titled event wins.
func (w *WeeklySchedule) Set(day int, slot Slot, title string) bool {
	if day < 0 || day >= DaysPerWeek || slot == SlotNone {
		return false
	}
	if w.Days[day].Get(slot) != "" {
		return false
	}
	w.Days[day].set(slot, title)
	return true
}

// WithToday sets the "today" entry from the day record for now's weekday.
// It must run after folding so it mirrors the final data.
func (w *WeeklySchedule) WithToday(now time.Time) {
	w.Today = &TodayMeals{
		DayMeals: w.Days[DayIndex(now.Weekday())],
		Date:     now.Format(DateLayout),
	}
}

// MarshalJSON renders the schedule as an object keyed "0".."6" plus
// "today" when present. Titles are not HTML-escaped.
func (w WeeklySchedule) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, DaysPerWeek+1)
	for i, d := range w.Days {
		out[strconv.Itoa(i)] = d
	}
	if w.Today != nil {
		out["today"] = w.Today
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON is the inverse of MarshalJSON. Missing day keys decode as
// empty days.
func (w *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out WeeklySchedule
	for i := range out.Days {
		msg, ok := raw[strconv.Itoa(i)]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, &out.Days[i]); err != nil {
			return fmt.Errorf("day %d: %w", i, err)
		}
	}
	if msg, ok := raw["today"]; ok && string(msg) != "null" {
		var today TodayMeals
		if err := json.Unmarshal(msg, &today); err != nil {
			return fmt.Errorf("today: %w", err)
		}
		out.Today = &today
	}
	*w = out
	return nil
}

// Classifier decides where, if anywhere, an occurrence belongs.
type Classifier struct {
	Rule     SlotRule
	Location *time.Location // reference zone
	Week     Week
}

// NewClassifier builds a Classifier for the week containing now.
func NewClassifier(rule SlotRule, ref *time.Location, now time.Time) Classifier {
	if ref == nil {
		ref = time.UTC
	}
	return Classifier{Rule: rule, Location: ref, Week: CurrentWeek(now)}
}

// Placement is the outcome of classifying one occurrence.
type Placement struct {
	Day   int
	Slot  Slot
	Local time.Time // start in the reference zone
}

// Reason explains why an occurrence was not placed.
type Reason string

const (
	ReasonPlaced      Reason = ""
	ReasonOutsideWeek Reason = "outside_week"
	ReasonNoSlot      Reason = "no_slot"
)

// Classify normalizes start into the reference zone, checks the week and
// picks a slot.
func (c Classifier) Classify(start time.Time, allDay bool) (Placement, Reason) {
	local := Normalize(start, allDay, c.Location)
	if !c.Week.ContainsDate(local) {
		return Placement{Local: local}, ReasonOutsideWeek
	}
	slot := c.Rule.Classify(TimeOfDay(local))
	if slot == SlotNone {
		return Placement{Local: local}, ReasonNoSlot
	}
	return Placement{Day: DayIndex(local.Weekday()), Slot: slot, Local: local}, ReasonPlaced
}

// FoldStats counts what happened to each occurrence during Fold.
type FoldStats struct {
	Considered  int
	Placed      int
	OutsideWeek int
	NoSlot      int
	Duplicates  int
}

// Fold classifies occurrences in order and stores each placed title with
// first-writer-wins precedence: the earliest occurrence in the slice keeps
// a day+slot, later ones are counted as duplicates and dropped.
func Fold(occurrences []model.Occurrence, c Classifier) (*WeeklySchedule, FoldStats) {
	sched := NewWeeklySchedule()
	var stats FoldStats

	for _, occ := range occurrences {
		stats.Considered++
		p, reason := c.Classify(occ.Start, occ.AllDay)
		switch reason {
		case ReasonOutsideWeek:
			stats.OutsideWeek++
			continue
		case ReasonNoSlot:
			stats.NoSlot++
			continue
		}
		if sched.Set(p.Day, p.Slot, occ.Summary) {
			stats.Placed++
		} else {
			stats.Duplicates++
			appLog.Debug("meal slot already filled",
				"uid", occ.UID,
				"instance", occ.InstanceKey,
				"day", p.Day,
				"slot", string(p.Slot),
			)
		}
	}

	return sched, stats
}
