package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "mealcal/internal/log"
)

// ErrParse marks a feed body that is not a usable iCalendar document.
var ErrParse = errors.New("parse error")

var utf8BOM = []byte("\xef\xbb\xbf")

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	UID     string
	Summary string

	// Start is the resolved DTSTART instant. Date-only values are midnight
	// UTC of their date; floating values are read as UTC.
	Start    time.Time
	End      time.Time
	AllDay   bool
	Floating bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides a recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent in feed
// order.
//
//   - Structure (line folding, escaping, component nesting) is handled by
//     arran4/golang-ical.
//   - DTSTART/DTEND/EXDATE/RECURRENCE-ID values are resolved by propTime so
//     that floating and date-only values are anchored to UTC rather than the
//     host's local zone.
//   - RRULE is recorded but not expanded; see ExpandOccurrences.
//
// VEVENTs whose start cannot be resolved are logged and skipped.
func ParseICS(body []byte) ([]ParsedEvent, error) {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty ICS body", ErrParse)
	}
	if err := validateICalFormat(body); err != nil {
		return nil, err
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	vevents := cal.Events()
	events := make([]ParsedEvent, 0, len(vevents))
	floating := 0
	for _, comp := range vevents {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(comp, ical.ComponentPropertyUniqueId))
			continue
		}
		if ev.Floating {
			floating++
			appLog.Debug("ics floating DTSTART read as UTC", "uid", ev.UID, "start", ev.Start.Format(time.RFC3339))
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "vevent_count", len(vevents), "event_count", len(events), "floating_count", floating)
	return events, nil
}

// validateICalFormat rejects bodies that are obviously not iCalendar, most
// often an HTML login page served for an expired private link.
func validateICalFormat(trimmed []byte) error {
	upper := bytes.ToUpper(trimmed[:min(len(trimmed), 64)])
	if bytes.HasPrefix(upper, []byte("<!DOCTYPE")) || bytes.HasPrefix(upper, []byte("<HTML")) {
		return fmt.Errorf("%w: received HTML instead of iCalendar data; check whether the feed URL requires authentication", ErrParse)
	}
	if !bytes.HasPrefix(upper, []byte("BEGIN:VCALENDAR")) {
		preview := string(trimmed[:min(len(trimmed), 40)])
		return fmt.Errorf("%w: expected BEGIN:VCALENDAR, got %q", ErrParse, preview)
	}
	return nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	// UID is optional here: only overrides need it to find their base.
	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	out.Summary = propValue(ve, ical.ComponentPropertySummary)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	st, err := propTime(dtStart)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = st.t
	out.AllDay = st.dateOnly
	out.Floating = st.floating

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if et, err := propTime(dtEnd); err == nil {
			out.End = et.t
		}
	}
	if out.End.IsZero() || out.End.Before(out.Start) {
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = strings.TrimSpace(rruleProp.Value)
	}

	// EXDATE can appear multiple times, each possibly comma-separated.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			ex := *p
			ex.Value = part
			if et, err := propTime(&ex); err == nil {
				out.ExDates = append(out.ExDates, et.t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		if rt, err := propTime(ridProp); err == nil {
			rid := rt.t
			out.Recurrence = &rid
			out.IsOverride = true
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

type resolvedTime struct {
	t        time.Time
	dateOnly bool
	floating bool
}

const (
	layoutDate     = "20060102"
	layoutLocal    = "20060102T150405"
	layoutUTC      = "20060102T150405Z"
	layoutNoSecond = "20060102T1504"
)

// propTime resolves a DATE or DATE-TIME property value.
//
//   - VALUE=DATE or no 'T': midnight UTC of that date.
//   - trailing 'Z': UTC.
//   - TZID parameter: wall time in that zone.
//   - otherwise (floating): wall time read as UTC.
func propTime(p *ical.IANAProperty) (resolvedTime, error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return resolvedTime{}, errors.New("empty time value")
	}

	if isDateValue(p, v) {
		t, err := time.ParseInLocation(layoutDate, v[:min(len(v), len(layoutDate))], time.UTC)
		if err != nil {
			return resolvedTime{}, err
		}
		return resolvedTime{t: t, dateOnly: true}, nil
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(layoutUTC, v)
		if err != nil {
			return resolvedTime{}, err
		}
		return resolvedTime{t: t}, nil
	}

	loc := time.UTC
	floating := true
	if tzid := paramValue(p, "TZID"); tzid != "" {
		l, err := resolveLocation(tzid)
		if err != nil {
			return resolvedTime{}, fmt.Errorf("unknown TZID %q: %w", tzid, err)
		}
		loc = l
		floating = false
	}

	t, err := time.ParseInLocation(layoutLocal, v, loc)
	if err != nil {
		// Some generators drop the seconds.
		t, err = time.ParseInLocation(layoutNoSecond, v, loc)
		if err != nil {
			return resolvedTime{}, err
		}
	}
	return resolvedTime{t: t, floating: floating}, nil
}

func isDateValue(p *ical.IANAProperty, v string) bool {
	if strings.EqualFold(paramValue(p, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(v, "T")
}

func paramValue(p *ical.IANAProperty, name string) string {
	if p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
