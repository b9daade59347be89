package shared

import (
	"strings"
	"time"
)

// DateLayout is the calendar key format used across snapshots and exports.
const DateLayout = "2006-01-02"

// ParseDate reads an ERP date field into a calendar date at UTC midnight.
//
// Accepted shapes include "20260105", "20260105 00:00:00.000",
// "2026-01-05" and "2026-01-05T13:45:00". Anything after the first
// whitespace or 'T' is dropped, separators are ignored and the first eight
// digits are read as YYYYMMDD. Impossible calendar dates are rejected.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexAny(raw, " \tT"); idx >= 0 {
		raw = raw[:idx]
	}
	digits := make([]byte, 0, 8)
	for i := 0; i < len(raw) && len(digits) < 8; i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) < 8 {
		return time.Time{}, false
	}
	year := atoi(digits[0:4])
	month := atoi(digits[4:6])
	day := atoi(digits[6:8])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, false
	}
	return date, true
}

// DateKey formats a calendar date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey is the inverse of DateKey.
func ParseDateKey(key string) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CivilDate strips the clock from t, keeping the calendar day observed in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WeekStart returns the Monday of the week containing t. Sunday belongs to
// the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset = 6
	}
	return t.AddDate(0, 0, -offset)
}

// DaysBetween returns the whole number of days from a to b, floored. It
// works on Unix seconds so spans beyond time.Duration's range stay exact.
func DaysBetween(a, b time.Time) int {
	secs := b.Unix() - a.Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay != 0 && secs < 0 {
		days--
	}
	return int(days)
}

const secondsPerDay = 24 * 60 * 60

func atoi(b []byte) int {
	n := 0
	for _, c := range b {
		n = n*10 + int(c-'0')
	}
	return n
}
