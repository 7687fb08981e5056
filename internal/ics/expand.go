package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive window occurrence starts
	// must fall in.
	RangeStart time.Time
	RangeEnd   time.Time

	// Recurrence enables RRULE expansion. When false every VEVENT,
	// overrides included, contributes exactly its own DTSTART.
	Recurrence bool

	// MaxOccurrencesPerEvent is a safety cap. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and information
// about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences inside
// the configured window. Output order follows feed order: events in the
// order they were parsed, and occurrences of one recurring event in
// chronological order. Downstream first-writer-wins folding relies on this.
//
// It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, which replace the matching base occurrence
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides are only pulled out of the stream when their recurring
	// base is present; orphans are emitted like ordinary events.
	recurringUIDs := make(map[string]bool)
	overridesByUID := make(map[string][]ParsedEvent)
	if cfg.Recurrence {
		for _, ev := range events {
			if ev.RawRRule != "" && !ev.IsOverride && ev.UID != "" {
				recurringUIDs[ev.UID] = true
			}
		}
		for _, ev := range events {
			if ev.IsOverride && ev.Recurrence != nil && recurringUIDs[ev.UID] {
				overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			}
		}
	}

	out := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		if cfg.Recurrence && ev.IsOverride && ev.Recurrence != nil && recurringUIDs[ev.UID] {
			continue
		}

		if !cfg.Recurrence || ev.RawRRule == "" {
			if inRange(ev.Start, cfg) {
				out = append(out, makeOccurrence(ev, ev.Start, ev.End))
			}
			continue
		}

		occ, hitCap := expandRecurringEvent(ev, overridesByUID[ev.UID], cfg)
		out = append(out, occ...)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Occurrences = out
	return result, nil
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		// Keep the event's own start rather than losing it entirely.
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		if inRange(ev.Start, cfg) {
			out = append(out, makeOccurrence(ev, ev.Start, ev.End))
		}
		out = appendUnusedOverrides(out, overrides, nil, cfg)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	used := make([]bool, len(overrides))
	for _, occStart := range occTimes {
		baseEv := ev
		start, end := occStart, occStart.Add(dur)

		if i := findOverrideForStart(overrides, occStart); i >= 0 {
			used[i] = true
			baseEv = overrides[i]
			start, end = baseEv.Start, baseEv.End
			if !inRange(start, cfg) {
				continue
			}
		}

		out = append(out, makeOccurrence(baseEv, start, end))
	}

	// An instance moved into the window from outside it has a
	// RECURRENCE-ID that no expanded start matches.
	out = appendUnusedOverrides(out, overrides, used, cfg)
	return out, hitCap
}

// appendUnusedOverrides adds overrides not consumed by expansion whose own
// start lies in the window, then keeps out in chronological order.
func appendUnusedOverrides(out []model.Occurrence, overrides []ParsedEvent, used []bool, cfg ExpandConfig) []model.Occurrence {
	added := false
	for i, ov := range overrides {
		if used != nil && used[i] {
			continue
		}
		if !inRange(ov.Start, cfg) {
			continue
		}
		appLog.Debug("expand: override moved into range", "uid", ov.UID, "start", ov.Start.Format(time.RFC3339))
		out = append(out, makeOccurrence(ov, ov.Start, ov.End))
		added = true
	}
	if added {
		sort.SliceStable(out, func(a, b int) bool { return out[a].Start.Before(out[b].Start) })
	}
	return out
}

// findOverrideForStart returns the index of the override whose
// RECURRENCE-ID is the same instant as start, or -1.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) int {
	for i, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return i
		}
	}
	return -1
}

func makeOccurrence(ev ParsedEvent, start, end time.Time) model.Occurrence {
	return model.Occurrence{
		UID:         ev.UID,
		InstanceKey: start.UTC().Format(time.RFC3339),
		Summary:     ev.Summary,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && !t.After(cfg.RangeEnd)
}
