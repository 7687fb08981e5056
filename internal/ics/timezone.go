package ics

import (
	"strings"
	"sync"
	"time"

	// TZIDs must resolve even on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// Exchange and Outlook feeds frequently carry Windows zone names in TZID.
var windowsToIANA = map[string]string{
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"US Mountain Standard Time":    "America/Phoenix",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"Atlantic Standard Time":       "America/Halifax",
	"Alaskan Standard Time":        "America/Anchorage",
	"Hawaiian Standard Time":       "Pacific/Honolulu",
	"GMT Standard Time":            "Europe/London",
	"W. Europe Standard Time":      "Europe/Berlin",
	"Central Europe Standard Time": "Europe/Budapest",
	"Romance Standard Time":        "Europe/Paris",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"Korea Standard Time":          "Asia/Seoul",
	"India Standard Time":          "Asia/Kolkata",
	"AUS Eastern Standard Time":    "Australia/Sydney",
	"New Zealand Standard Time":    "Pacific/Auckland",
	"UTC":                          "UTC",
	"Coordinated Universal Time":   "UTC",
}

var (
	locCacheMu sync.Mutex
	locCache   = map[string]*time.Location{}
)

// resolveLocation maps a TZID parameter to a *time.Location. Windows names
// are translated, and Google's quoted "/mozilla.org/..." style prefixes are
// stripped.
func resolveLocation(tzid string) (*time.Location, error) {
	name := strings.Trim(strings.TrimSpace(tzid), `"`)
	if iana, ok := windowsToIANA[name]; ok {
		name = iana
	}
	if i := strings.Index(name, "/mozilla.org/"); i >= 0 {
		name = name[i+len("/mozilla.org/"):]
		if j := strings.Index(name, "/"); j >= 0 {
			name = name[j+1:]
		}
	}

	locCacheMu.Lock()
	defer locCacheMu.Unlock()
	if loc, ok := locCache[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	locCache[name] = loc
	return loc, nil
}
