// Package timeutil holds the clock arithmetic the scheduling core is built
// on: minute-of-day parsing, DST-safe local↔UTC conversion for a tenant's
// IANA zone, and the half-open interval overlap test.
package timeutil

import (
	"fmt"
	"time"
)

// MinutesPerDay is the scan range for one local day.
const MinutesPerDay = 24 * 60

// Date is a civil date with no time-of-day or zone attached. All schedule
// configuration is keyed by civil dates; instants appear only at the edges.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Weekday returns the day of week (Sunday=0) of the civil date itself.
func (d Date) Weekday() int {
	return int(time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday())
}

// UTCMidnight returns the date's midnight as a UTC instant, for comparing
// against DATE columns stored at UTC-day granularity.
func (d Date) UTCMidnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// MinuteToUTC converts a minute-of-day on this date in loc to a UTC instant.
//
// The conversion goes through time.Date with the whole offset expressed in
// minutes, which normalizes across DST transitions: on a spring-forward day
// minute 600 still lands on the instant a local clock showing that much
// elapsed wall time would; a fixed-offset shortcut would be an hour off for
// part of the day. Minutes past 1440 roll into the next civil day.
func (d Date) MinuteToUTC(minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, minute, 0, 0, loc).UTC()
}

// DayOfWeekIn reports the day of week (Sunday=0) of an instant as observed
// in loc, not in UTC.
func DayOfWeekIn(t time.Time, loc *time.Location) int {
	return int(t.In(loc).Weekday())
}

// ClockIn formats an instant as the HH:mm a wall clock in loc would show.
func ClockIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// MinutesOfDay parses an HH:mm clock string into minutes since midnight.
func MinutesOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:mm", clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes renders minutes since midnight as HH:mm, wrapping past 24h
// so a slot that spills into the next day reads as a next-day clock time.
func FormatMinutes(m int) string {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Overlaps reports whether the half-open instant intervals [aStart,aEnd)
// and [bStart,bEnd) conflict. Touching endpoints do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
