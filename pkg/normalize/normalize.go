// Package normalize converts raw date/time substrings from bank notifications
// into canonical forms and combines them into absolute instants.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// rocEpochOffset converts a Republic-of-China era year to the Gregorian year.
const rocEpochOffset = 1911

var (
	// The era year must be exactly three digits: a digit boundary keeps
	// "2024/3/5" from matching as era year 202.
	rocDateRe       = regexp.MustCompile(`(?:^|[^0-9])([0-9]{3})[^0-9]+([0-9]{1,2})[^0-9]+([0-9]{1,2})`)
	gregorianDateRe = regexp.MustCompile(`([0-9]{4})[/\-]([0-9]{1,2})[/\-]([0-9]{1,2})`)
	timeRe          = regexp.MustCompile(`([0-9]{1,2}:[0-9]{1,2})(:[0-9]{1,2})?`)
)

// Date normalizes a raw date substring to "yyyy/mm/dd". A 3-digit era year is
// tried first and converted by the fixed epoch offset; otherwise a 4-digit
// Gregorian year with "/" or "-" separators is accepted. Month and day are
// zero-padded. Returns "" when neither form matches; callers must treat that
// as message-unusable, not as a zero date.
func Date(s string) string {
	if s == "" {
		return ""
	}
	if m := rocDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%04d/%s/%s", year+rocEpochOffset, pad2(m[2]), pad2(m[3]))
	}
	if m := gregorianDateRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s/%s/%s", m[1], pad2(m[2]), pad2(m[3]))
	}
	return ""
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Time normalizes a raw time substring to "H:M:S" form, appending ":00" when
// seconds are absent. Hour and minute widths are preserved as captured.
// Returns "" on no match.
func Time(s string) string {
	if s == "" {
		return ""
	}
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return m[0]
	}
	return m[1] + ":00"
}

// Location resolves the configured timezone identifier to a fixed-offset
// location. Only Asia/Taipei is recognized; anything else falls back to UTC.
// A deliberate simplification: the deployment targets one civil timezone with
// no daylight saving.
func Location(tz string) *time.Location {
	if tz == "Asia/Taipei" {
		return time.FixedZone("Asia/Taipei", 8*60*60)
	}
	return time.UTC
}

// instantLayout tolerates unpadded month/day/hour as produced by Time.
const instantLayout = "2006/1/2 15:4:5"

// Instant combines a normalized "yyyy/mm/dd" date and "H:M:S" time into an
// absolute instant in the given location.
func Instant(ymd, hms string, loc *time.Location) (time.Time, error) {
	if hms == "" {
		hms = "00:00:00"
	}
	t, err := time.ParseInLocation(instantLayout, ymd+" "+hms, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing instant %q %q: %w", ymd, hms, err)
	}
	return t, nil
}
