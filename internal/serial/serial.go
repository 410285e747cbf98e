// Package serial generates the human-readable order serial:
// DMERCH-<YYYY><MON><DD>-<NNN>, where the 3-digit suffix is unique within
// the calendar month of the prefix. Allocation itself is an optimistic
// retry loop owned by the submission service; this package holds the pure
// formatting and parsing rules.
package serial

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Prefix is the fixed storefront prefix on every serial.
const Prefix = "DMERCH"

// MaxAttempts bounds the allocator's optimistic retry loop.
const MaxAttempts = 6

// suffixPattern extracts the numeric suffix from a well-formed serial.
var suffixPattern = regexp.MustCompile(`-(\d{3})$`)

// Pattern matches a complete serial, e.g. DMERCH-2025AUG24-001.
var Pattern = regexp.MustCompile(`^` + Prefix + `-\d{4}[A-Z]{3}\d{2}-\d{3}$`)

// location is the fixed timezone the date part is rendered in, independent
// of server locale. Falls back to a fixed UTC+8 zone when tzdata is absent.
var location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}

// DatePart renders the serial's date segment, e.g. "2025AUG24".
func DatePart(t time.Time) string {
	t = t.In(location)
	return fmt.Sprintf("%04d%s%02d", t.Year(), monthAbbrev(t.Month()), t.Day())
}

// MonthPrefix returns the prefix shared by every serial issued in the
// month of t, e.g. "DMERCH-2025AUG". Suffix uniqueness is scoped to it.
func MonthPrefix(t time.Time) string {
	t = t.In(location)
	return fmt.Sprintf("%s-%04d%s", Prefix, t.Year(), monthAbbrev(t.Month()))
}

// Format builds a complete serial for the given date and suffix.
func Format(t time.Time, suffix int) string {
	return fmt.Sprintf("%s-%s-%03d", Prefix, DatePart(t), suffix)
}

// ParseSuffix extracts the numeric suffix from an existing serial. Returns
// 0 and false when the serial does not carry a parseable suffix.
func ParseSuffix(serialNo string) (int, bool) {
	match := suffixPattern.FindStringSubmatch(serialNo)
	if match == nil {
		return 0, false
	}
	suffix, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return suffix, true
}

// MaxSuffix scans existing serials from the current month and returns the
// highest suffix found, defaulting to 0 when none parse.
func MaxSuffix(serials []string) int {
	max := 0
	for _, s := range serials {
		if suffix, ok := ParseSuffix(s); ok && suffix > max {
			max = suffix
		}
	}
	return max
}

func monthAbbrev(m time.Month) string {
	abbrevs := [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}
	return abbrevs[m-1]
}
