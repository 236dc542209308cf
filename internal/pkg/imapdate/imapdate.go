// Package imapdate converts between time.Time and the IMAP date-time
// wire format (RFC 3501, section 9):
//
//	date-time = DQUOTE date-day-fixed "-" date-month "-" date-year
//	            SP time SP zone DQUOTE
//
// Quotes are expected to be stripped by the caller.
package imapdate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrMalformed is returned for text that does not match the date-time grammar.
var ErrMalformed = errors.New("malformed IMAP date-time")

// The day is either "SP DIGIT" or "2DIGIT", but a single digit without the
// leading space is accepted as well since callers may have trimmed it.
//
// Some servers omit the zone entirely, in which case UTC is assumed.
var reDateTime = regexp.MustCompile(`^( ?\d|\d{2})-(.{3})-(\d{4}) (\d{2}):(\d{2}):(\d{2})(?: ([+-])(\d{2})(\d{2}))?$`)

var months = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

func monthByName(name string) (time.Month, bool) {
	for i, m := range months {
		if m == name {
			return time.Month(i + 1), true
		}
	}

	return 0, false
}

// Parse parses an IMAP date-time into a UTC instant.
//
// The numeric components are first read as if they were UTC, then the zone
// offset is subtracted: "-0700" means seven hours behind UTC, so seven hours
// are added.
func Parse(s string) (time.Time, error) {
	m := reDateTime.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	month, ok := monthByName(m[2])
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month %q in %q", ErrMalformed, m[2], s)
	}

	// The regexp guarantees digits only, Atoi can't fail below.
	day, _ := strconv.Atoi(trimSpace(m[1]))
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])

	t := time.Date(year, month, day, hour, minute, second, 0, time.UTC)

	if m[7] != "" {
		zoneHours, _ := strconv.Atoi(m[8])
		zoneMinutes, _ := strconv.Atoi(m[9])

		offset := time.Duration(zoneHours)*time.Hour + time.Duration(zoneMinutes)*time.Minute
		if m[7] == "-" {
			offset = -offset
		}

		t = t.Add(-offset)
	}

	return t, nil
}

// Format renders t as an IMAP date-time in the local system zone, e.g.
// " 7-Feb-1994 21:52:25 -0800".
func Format(t time.Time) string {
	t = t.Local()
	_, offset := t.Zone()

	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}

	offsetMinutes := offset / 60

	return fmt.Sprintf("%2d-%s-%04d %02d:%02d:%02d %c%02d%02d",
		t.Day(), months[t.Month()-1], t.Year(),
		t.Hour(), t.Minute(), t.Second(),
		sign, offsetMinutes/60, offsetMinutes%60,
	)
}

func trimSpace(s string) string {
	if len(s) > 0 && s[0] == ' ' {
		return s[1:]
	}

	return s
}
