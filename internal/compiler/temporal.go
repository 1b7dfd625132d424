package compiler

import (
	"strconv"
	"strings"
	"time"
)

// This file implements the temporal-order predicate (spec §4.4 "Temporal
// order").
//
// Strings beginning optionally with `@` and then matching `T…` (time),
// `YYYY-MM-DDT…` (datetime), or `YYYY[-MM[-DD]]` (date). Time values are
// normalized by padding missing seconds/milliseconds with zeros and
// compared lexicographically. Datetimes are compared by absolute instant.
// Dates with differing precision compare segment-wise; equality on the
// common prefix returns zero (spec §8 boundary behavior: @2023 and
// @2023-05-01 are equal).

// temporalCompare returns -1, 0, or 1 comparing two temporal-string payloads
// (with or without a leading '@', which it strips), or ok=false if either is malformed
// beyond what segment-wise comparison can handle.
func temporalCompare(a, b string) (int, bool) {
	a = strings.TrimPrefix(a, "@")
	b = strings.TrimPrefix(b, "@")

	aIsTime := strings.HasPrefix(a, "T")
	bIsTime := strings.HasPrefix(b, "T")
	if aIsTime || bIsTime {
		if aIsTime != bIsTime {
			return 0, false
		}
		return compareTimeStrings(strings.TrimPrefix(a, "T"), strings.TrimPrefix(b, "T")), true
	}

	aHasClock := strings.ContainsAny(a, "T")
	bHasClock := strings.ContainsAny(b, "T")
	if aHasClock && bHasClock {
		return compareInstants(a, b)
	}
	if aHasClock != bHasClock {
		// a date vs a datetime: compare on the date portion only, per the
		// segment-wise common-prefix rule.
		aDate := a
		if aHasClock {
			aDate = a[:strings.IndexByte(a, 'T')]
		}
		bDate := b
		if bHasClock {
			bDate = b[:strings.IndexByte(b, 'T')]
		}
		return compareDateSegments(aDate, bDate), true
	}
	return compareDateSegments(a, b), true
}

// compareTimeStrings pads missing seconds/milliseconds with zeros and
// compares lexicographically (spec: this is valid because zero-padded
// ISO time components sort the same lexicographically as numerically).
func compareTimeStrings(a, b string) int {
	return strings.Compare(padTime(a), padTime(b))
}

func padTime(s string) string {
	// no offset suffix is removed; offsets are not expected on bare time
	// literals.
	parts := strings.Split(s, ":")
	for len(parts) < 3 {
		parts = append(parts, "00")
	}
	if !strings.Contains(parts[2], ".") {
		parts[2] = parts[2] + ".000"
	}
	return strings.Join(parts, ":")
}

// compareDateSegments compares year/month/day components numerically up to
// the shorter precision; equal common prefix returns 0 regardless of
// differing precision.
func compareDateSegments(a, b string) int {
	as := strings.Split(a, "-")
	bs := strings.Split(b, "-")
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, aerr := strconv.Atoi(as[i])
		bv, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			return strings.Compare(as[i], bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// datetimeLayouts are tried in order when parsing an absolute instant.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
}

func compareInstants(a, b string) (int, bool) {
	at, aok := parseInstant(a)
	bt, bok := parseInstant(b)
	if !aok || !bok {
		return compareDateSegments(strings.SplitN(a, "T", 2)[0], strings.SplitN(b, "T", 2)[0]), true
	}
	switch {
	case at.Before(bt):
		return -1, true
	case at.After(bt):
		return 1, true
	default:
		return 0, true
	}
}

func parseInstant(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// daysBetween computes the whole-day difference used by temporal
// subtraction (spec §9 "Quantity arithmetic": no unit conversion, the
// result is always in days regardless of the operands' precision).
func daysBetween(a, b string) (int64, bool) {
	at, aok := parseAnyInstant(a)
	bt, bok := parseAnyInstant(b)
	if !aok || !bok {
		return 0, false
	}
	return int64(at.Sub(bt).Hours() / 24), true
}

func parseAnyInstant(s string) (time.Time, bool) {
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimPrefix(s, "T")
	if t, ok := parseInstant(s); ok {
		return t, true
	}
	parts := strings.Split(s, "-")
	year, month, day := 0, 1, 1
	if len(parts) >= 1 {
		if v, err := strconv.Atoi(parts[0]); err == nil {
			year = v
		} else {
			return time.Time{}, false
		}
	}
	if len(parts) >= 2 {
		if v, err := strconv.Atoi(parts[1]); err == nil {
			month = v
		}
	}
	if len(parts) >= 3 {
		if v, err := strconv.Atoi(parts[2]); err == nil {
			day = v
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
