package timeutil

import (
	"testing"
	"time"
)

func TestMinutesOfDayRoundTrip(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"09:00": 540,
		"17:30": 1050,
		"23:59": 1439,
	}
	for clock, want := range cases {
		got, err := MinutesOfDay(clock)
		if err != nil {
			t.Fatalf("MinutesOfDay(%q) failed: %v", clock, err)
		}
		if got != want {
			t.Fatalf("MinutesOfDay(%q) = %d, want %d", clock, got, want)
		}
		if back := FormatMinutes(got); back != clock {
			t.Fatalf("FormatMinutes(%d) = %q, want %q", got, back, clock)
		}
	}
	if _, err := MinutesOfDay("9am"); err == nil {
		t.Fatal("expected parse error for non HH:mm input")
	}
}

func TestFormatMinutesWraps(t *testing.T) {
	if got := FormatMinutes(1440); got != "00:00" {
		t.Fatalf("FormatMinutes(1440) = %q, want 00:00", got)
	}
	if got := FormatMinutes(1485); got != "00:45" {
		t.Fatalf("FormatMinutes(1485) = %q, want 00:45", got)
	}
}

func TestMinuteToUTCRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	day := Date{Year: 2026, Month: time.January, Day: 19}

	for _, clock := range []string{"00:00", "09:00", "13:45", "23:45"} {
		m, err := MinutesOfDay(clock)
		if err != nil {
			t.Fatalf("MinutesOfDay failed: %v", err)
		}
		utc := day.MinuteToUTC(m, loc)
		if back := ClockIn(utc, loc); back != clock {
			t.Fatalf("round trip for %s: got %s", clock, back)
		}
	}

	// Warsaw in winter is UTC+1.
	m, _ := MinutesOfDay("09:00")
	if got := day.MinuteToUTC(m, loc); !got.Equal(time.Date(2026, 1, 19, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("09:00 Warsaw winter should be 08:00 UTC, got %s", got.Format(time.RFC3339))
	}
}

func TestMinuteToUTCAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	// Clocks jump 02:00 -> 03:00 on 2026-03-29 in Warsaw.
	day := Date{Year: 2026, Month: time.March, Day: 29}

	// Before the transition the offset is +1.
	m, _ := MinutesOfDay("01:00")
	got := day.MinuteToUTC(m, loc)
	if !got.Equal(time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("01:00 pre-transition: got %s", got.Format(time.RFC3339))
	}

	// After the transition the offset is +2; a fixed-offset conversion
	// would be an hour off here.
	m, _ = MinutesOfDay("09:00")
	got = day.MinuteToUTC(m, loc)
	if !got.Equal(time.Date(2026, 3, 29, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("09:00 post-transition: got %s", got.Format(time.RFC3339))
	}

	// Round trip holds for times outside the skipped hour.
	for _, clock := range []string{"00:30", "01:45", "03:00", "12:00", "23:45"} {
		m, _ := MinutesOfDay(clock)
		if back := ClockIn(day.MinuteToUTC(m, loc), loc); back != clock {
			t.Fatalf("DST round trip for %s: got %s", clock, back)
		}
	}
}

func TestDayOfWeekIn(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	// 23:00 UTC Friday is already Saturday in Auckland.
	instant := time.Date(2026, 1, 16, 23, 0, 0, 0, time.UTC)
	if got := DayOfWeekIn(instant, time.UTC); got != 5 {
		t.Fatalf("UTC weekday = %d, want 5 (Friday)", got)
	}
	if got := DayOfWeekIn(instant, loc); got != 6 {
		t.Fatalf("Auckland weekday = %d, want 6 (Saturday)", got)
	}
}

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 1, 19, h, 0, 0, 0, time.UTC) }

	if !Overlaps(at(9), at(11), at(10), at(12)) {
		t.Fatal("partial overlap should conflict")
	}
	if !Overlaps(at(9), at(12), at(10), at(11)) {
		t.Fatal("containment should conflict")
	}
	if Overlaps(at(9), at(10), at(10), at(11)) {
		t.Fatal("touching endpoints must not conflict")
	}
	if Overlaps(at(9), at(10), at(11), at(12)) {
		t.Fatal("disjoint intervals must not conflict")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-29")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.String() != "2026-03-29" {
		t.Fatalf("String() = %q", d.String())
	}
	if d.Weekday() != 0 {
		t.Fatalf("2026-03-29 should be Sunday(0), got %d", d.Weekday())
	}
	if _, err := ParseDate("29.03.2026"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}
