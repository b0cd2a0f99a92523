package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ISODateLayout is the wire and storage layout for calendar dates.
const ISODateLayout = "2006-01-02"

// DatePlaceholder is rendered wherever a calendar date is absent.
const DatePlaceholder = "---"

var spanishMonths = [...]string{
	"ene", "feb", "mar", "abr", "may", "jun",
	"jul", "ago", "sep", "oct", "nov", "dic",
}

// ParseDate parses an ISO calendar date, tolerating a trailing time-of-day
// component (anything from the first 'T' on is discarded). The zero time and
// false are returned for empty or unparseable input; callers are expected to
// degrade rather than fail.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if idx := strings.IndexByte(value, 'T'); idx >= 0 {
		value = value[:idx]
	}
	// Dates are civil dates, not instants. Parsing in UTC keeps every span
	// an exact multiple of 24h regardless of the host zone's DST shifts.
	t, err := time.ParseInLocation(ISODateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetween returns the ceiling of the absolute difference between two
// calendar dates in whole days. Missing or unparseable inputs yield 0, never
// an error. The absolute value keeps chronologically reversed entries
// reporting a positive count; this leniency is load-bearing and must not be
// tightened.
func DaysBetween(a, b string) int {
	start, ok := ParseDate(a)
	if !ok {
		return 0
	}
	end, ok := ParseDate(b)
	if !ok {
		return 0
	}
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// TodayISO returns the current local date as YYYY-MM-DD.
func TodayISO() string {
	return time.Now().Format(ISODateLayout)
}

// FormatDisplayDate renders a calendar date in the es-EC short form
// ("8 feb 2026"), or the placeholder glyph when absent.
func FormatDisplayDate(value string) string {
	t, ok := ParseDate(value)
	if !ok {
		return DatePlaceholder
	}
	return strconv.Itoa(t.Day()) + " " + spanishMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// FormatCurrency renders an amount as a USD string in the es-EC convention:
// dot-grouped thousands, comma decimal separator, exactly two fraction digits.
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	whole, frac := parts[0], parts[1]

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	out := "$" + grouped.String() + "," + frac
	if negative {
		out = "-" + out
	}
	return out
}
