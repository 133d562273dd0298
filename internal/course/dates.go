package course

import (
	"regexp"
	"strings"
	"time"
)

// DisplayLayout is the boundary format for a single date.
const DisplayLayout = "2006.01.02"

// Seoul is the fixed +09:00 zone all course dates are interpreted in.
var Seoul = time.FixedZone("KST", 9*60*60)

var (
	dateToken = regexp.MustCompile(`(\d{4})[.\-/년\s]*(\d{1,2})[.\-/월\s]*(\d{1,2})일?`)
	compact   = regexp.MustCompile(`^\d{8}$`)
)

// ParseDate accepts YYYY-MM-DD, YYYYMMDD, YYYY.MM.DD, YYYY/MM/DD and
// "YYYY년 M월 D일" forms and returns the date at midnight in Seoul.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if compact.MatchString(s) {
		t, err := time.ParseInLocation("20060102", s, Seoul)
		return t, err == nil
	}
	m := dateToken.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-1-2", m[1]+"-"+m[2]+"-"+m[3], Seoul)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a raw date in DisplayLayout, or returns it trimmed when
// it cannot be parsed.
func FormatDate(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return t.Format(DisplayLayout)
}

// FormatDateRange renders "YYYY.MM.DD ~ YYYY.MM.DD". A missing end collapses
// to a single date; a missing start yields "".
func FormatDateRange(start, end string) string {
	a := FormatDate(start)
	b := FormatDate(end)
	switch {
	case a == "" && b == "":
		return ""
	case b == "" || a == b:
		return a
	case a == "":
		return "~ " + b
	default:
		return a + " ~ " + b
	}
}

// FormatRange renders two times as a display range.
func FormatRange(start, end time.Time) string {
	return start.In(Seoul).Format(DisplayLayout) + " ~ " + end.In(Seoul).Format(DisplayLayout)
}

// StartOfDay truncates t to midnight in Seoul.
func StartOfDay(t time.Time) time.Time {
	t = t.In(Seoul)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Seoul)
}

// DaysBetween returns whole calendar days from a to b in Seoul time.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}
