package slots

import (
	"context"
	"testing"
	"time"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/timeutil"
)

type fakeRepo struct {
	salonRules map[int]*model.WorkingHourRule
	staffRules map[int]*model.WorkingHourRule
	salonExc   []model.ScheduleException
	staffExc   []model.ScheduleException
	bookings   []model.Booking
}

func (f *fakeRepo) SalonWorkingHour(_ context.Context, _ string, weekday int) (*model.WorkingHourRule, error) {
	return f.salonRules[weekday], nil
}

func (f *fakeRepo) StaffWorkingHour(_ context.Context, _, _ string, weekday int) (*model.WorkingHourRule, error) {
	return f.staffRules[weekday], nil
}

func (f *fakeRepo) SalonExceptions(_ context.Context, _ string, day timeutil.Date) ([]model.ScheduleException, error) {
	return coveringExceptions(f.salonExc, day), nil
}

func (f *fakeRepo) StaffExceptions(_ context.Context, _, _ string, day timeutil.Date) ([]model.ScheduleException, error) {
	return coveringExceptions(f.staffExc, day), nil
}

// coveringExceptions mirrors the repository's date filter: only exceptions
// whose inclusive range contains the requested day reach the resolver.
func coveringExceptions(excs []model.ScheduleException, day timeutil.Date) []model.ScheduleException {
	var out []model.ScheduleException
	for _, exc := range excs {
		if exc.Covers(day.UTCMidnight()) {
			out = append(out, exc)
		}
	}
	return out
}

func (f *fakeRepo) BookingsBetween(_ context.Context, _, _ string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if timeutil.Overlaps(b.StartAt, b.EndAt, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeTZ map[string]string

func (f fakeTZ) TenantTimezone(_ context.Context, tenantID string) (string, error) {
	return f[tenantID], nil
}

// 2026-01-19 is a Monday; Europe/Warsaw is UTC+1 in January.
var monday = timeutil.Date{Year: 2026, Month: time.January, Day: 19}

func warsawTZ() fakeTZ { return fakeTZ{"t1": "Europe/Warsaw"} }

// onDay pins an exception fixture to a single calendar day.
func onDay(exc model.ScheduleException, day timeutil.Date) model.ScheduleException {
	exc.StartDate = day.UTCMidnight()
	exc.EndDate = day.UTCMidnight()
	return exc
}

func mondaySalonRule(start, end int) map[int]*model.WorkingHourRule {
	return map[int]*model.WorkingHourRule{
		1: {TenantID: "t1", Scope: model.ScopeSalon, Weekday: 1, StartMinute: start, EndMinute: end, IsWorkingDay: true},
	}
}

func resolve(t *testing.T, repo *fakeRepo, req Request) *DaySchedule {
	t.Helper()
	day, err := NewGenerator(repo, warsawTZ()).Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return day
}

func slotByStart(t *testing.T, day *DaySchedule, startLocal string) model.Slot {
	t.Helper()
	for slot := range day.Slots() {
		if slot.StartLocal == startLocal {
			return slot
		}
	}
	t.Fatalf("no slot starting at %s", startLocal)
	return model.Slot{}
}

func TestResolveValidation(t *testing.T) {
	g := NewGenerator(&fakeRepo{}, warsawTZ())
	if _, err := g.Resolve(context.Background(), Request{TenantID: "t1", Date: monday, DurationMinutes: 10}); err != ErrDurationOutOfRange {
		t.Fatalf("duration 10: err = %v, want ErrDurationOutOfRange", err)
	}
	if _, err := g.Resolve(context.Background(), Request{TenantID: "t1", Date: monday, DurationMinutes: 500}); err != ErrDurationOutOfRange {
		t.Fatalf("duration 500: err = %v, want ErrDurationOutOfRange", err)
	}
	if _, err := g.Resolve(context.Background(), Request{TenantID: "t1", Date: monday, DurationMinutes: 60, BufferMinutes: 90}); err != ErrBufferOutOfRange {
		t.Fatalf("buffer 90: err = %v, want ErrBufferOutOfRange", err)
	}
	bad := NewGenerator(&fakeRepo{}, fakeTZ{"t1": "Mars/Olympus"})
	if _, err := bad.Resolve(context.Background(), Request{TenantID: "t1", Date: monday, DurationMinutes: 60}); err != ErrBadTimezone {
		t.Fatalf("bad tz: err = %v, want ErrBadTimezone", err)
	}
}

func TestSlotsFailClosedWithoutConfiguration(t *testing.T) {
	day := resolve(t, &fakeRepo{}, Request{TenantID: "t1", Date: monday, DurationMinutes: 60})

	n := 0
	for slot := range day.Slots() {
		n++
		if slot.Available {
			t.Fatalf("slot %s available on an unconfigured day", slot.StartLocal)
		}
		if slot.Reason != model.ReasonSalonClosed {
			t.Fatalf("slot %s reason = %q, want SALON_CLOSED", slot.StartLocal, slot.Reason)
		}
	}
	if n != 96 {
		t.Fatalf("scanned %d slots, want 96", n)
	}
}

func TestSlotsCoverFullDayInOrder(t *testing.T) {
	day := resolve(t, &fakeRepo{salonRules: mondaySalonRule(540, 1020)},
		Request{TenantID: "t1", Date: monday, DurationMinutes: 30})

	prev := time.Time{}
	first, last := "", ""
	for slot := range day.Slots() {
		if first == "" {
			first = slot.StartLocal
		}
		last = slot.StartLocal
		if !slot.StartUTC.After(prev) {
			t.Fatalf("slot %s not strictly after its predecessor", slot.StartLocal)
		}
		prev = slot.StartUTC
	}
	if first != "00:00" || last != "23:45" {
		t.Fatalf("scan runs %s..%s, want 00:00..23:45", first, last)
	}
}

func TestSlotsWorkingWindowBounds(t *testing.T) {
	// Salon open Monday 09:00-17:00, duration 30.
	day := resolve(t, &fakeRepo{salonRules: mondaySalonRule(540, 1020)},
		Request{TenantID: "t1", Date: monday, DurationMinutes: 30})

	if s := slotByStart(t, day, "08:45"); s.Available || s.Reason != model.ReasonOutsideWorkingHours {
		t.Fatalf("08:45 = %+v, want OUTSIDE_WORKING_HOURS", s)
	}
	if s := slotByStart(t, day, "09:00"); !s.Available {
		t.Fatalf("09:00 = %+v, want available", s)
	}
	if s := slotByStart(t, day, "16:30"); !s.Available {
		t.Fatalf("16:30 = %+v, want available (ends exactly at close)", s)
	}
	if s := slotByStart(t, day, "16:45"); s.Available || s.Reason != model.ReasonOutsideWorkingHours {
		t.Fatalf("16:45 = %+v, want OUTSIDE_WORKING_HOURS", s)
	}
}

func TestSlotsBookingConflictWithBuffer(t *testing.T) {
	// Staff window 09:00-17:00, booking 09:00-10:00 local (08:00-09:00Z in
	// January Warsaw), buffer 15, duration 60. Widened occupancy covers
	// 08:45-10:15 local.
	repo := &fakeRepo{
		staffRules: map[int]*model.WorkingHourRule{
			1: {TenantID: "t1", Scope: model.ScopeStaff, StaffID: "s1", Weekday: 1, StartMinute: 540, EndMinute: 1020, IsWorkingDay: true},
		},
		bookings: []model.Booking{{
			StaffID: "s1",
			StartAt: time.Date(2026, 1, 19, 8, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		}},
	}
	day := resolve(t, repo, Request{
		TenantID: "t1", Date: monday, StaffID: "s1",
		DurationMinutes: 60, BufferMinutes: 15,
	})

	if s := slotByStart(t, day, "10:00"); s.Available || s.Reason != model.ReasonAppointmentConflict {
		t.Fatalf("10:00 = %+v, want APPOINTMENT_CONFLICT", s)
	}
	if s := slotByStart(t, day, "11:15"); !s.Available {
		t.Fatalf("11:15 = %+v, want available", s)
	}
	// 10:15-11:15 touches the widened interval's end exactly; touching
	// endpoints do not conflict.
	if s := slotByStart(t, day, "10:15"); !s.Available {
		t.Fatalf("10:15 = %+v, want available", s)
	}
	if s := slotByStart(t, day, "09:15"); s.Reason != model.ReasonAppointmentConflict {
		t.Fatalf("09:15 = %+v, want APPOINTMENT_CONFLICT", s)
	}
}

func TestSlotsZeroBufferTouchingBookingIsFree(t *testing.T) {
	repo := &fakeRepo{
		salonRules: mondaySalonRule(540, 1020),
		bookings: []model.Booking{{
			StartAt: time.Date(2026, 1, 19, 8, 0, 0, 0, time.UTC), // 09:00 local
			EndAt:   time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC), // 10:00 local
		}},
	}
	day := resolve(t, repo, Request{TenantID: "t1", Date: monday, DurationMinutes: 60})
	if s := slotByStart(t, day, "10:00"); !s.Available {
		t.Fatalf("10:00 = %+v, want available back-to-back with no buffer", s)
	}
	if s := slotByStart(t, day, "09:45"); s.Reason != model.ReasonAppointmentConflict {
		t.Fatalf("09:45 = %+v, want APPOINTMENT_CONFLICT", s)
	}
}

func TestSlotsStaffDayOffOnOpenSalonDay(t *testing.T) {
	repo := &fakeRepo{
		salonRules: mondaySalonRule(540, 1020),
		staffExc: []model.ScheduleException{onDay(model.ScheduleException{
			Scope: model.ScopeStaff, StaffID: "s1", Type: model.ExceptionDayOff,
		}, monday)},
	}
	day := resolve(t, repo, Request{TenantID: "t1", Date: monday, StaffID: "s1", DurationMinutes: 60})
	for slot := range day.Slots() {
		if slot.Reason != model.ReasonStaffOff {
			t.Fatalf("slot %s reason = %q, want STAFF_OFF", slot.StartLocal, slot.Reason)
		}
	}
}

func TestSlotsMultiDayClosureRangeBoundaries(t *testing.T) {
	rules := map[int]*model.WorkingHourRule{}
	for wd := 0; wd < 7; wd++ {
		rules[wd] = &model.WorkingHourRule{TenantID: "t1", Scope: model.ScopeSalon, Weekday: wd, StartMinute: 540, EndMinute: 1020, IsWorkingDay: true}
	}
	repo := &fakeRepo{
		salonRules: rules,
		staffExc: []model.ScheduleException{{
			Scope: model.ScopeStaff, StaffID: "s1", Type: model.ExceptionDayOff,
			StartDate: time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		}},
	}

	cases := []struct {
		day int
		off bool
	}{
		{17, false}, // day before the range
		{18, true},  // first day
		{19, true},
		{20, true},  // last day, inclusive
		{21, false}, // day after the range
	}
	for _, c := range cases {
		date := timeutil.Date{Year: 2026, Month: time.January, Day: c.day}
		day := resolve(t, repo, Request{TenantID: "t1", Date: date, StaffID: "s1", DurationMinutes: 60})
		s := slotByStart(t, day, "10:00")
		if c.off && s.Reason != model.ReasonStaffOff {
			t.Fatalf("%s 10:00 = %+v, want STAFF_OFF inside the range", date, s)
		}
		if !c.off && !s.Available {
			t.Fatalf("%s 10:00 = %+v, want available outside the range", date, s)
		}
	}
}

func TestSlotsSalonClosureDominatesStaffWindow(t *testing.T) {
	repo := &fakeRepo{
		staffRules: map[int]*model.WorkingHourRule{
			1: {TenantID: "t1", Scope: model.ScopeStaff, StaffID: "s1", Weekday: 1, StartMinute: 540, EndMinute: 1020, IsWorkingDay: true},
		},
		salonExc: []model.ScheduleException{onDay(model.ScheduleException{
			Scope: model.ScopeSalon, Type: model.ExceptionSickLeave,
		}, monday)},
	}
	day := resolve(t, repo, Request{TenantID: "t1", Date: monday, StaffID: "s1", DurationMinutes: 60})
	for slot := range day.Slots() {
		if slot.Reason != model.ReasonSalonClosed {
			t.Fatalf("slot %s reason = %q, want SALON_CLOSED", slot.StartLocal, slot.Reason)
		}
	}
}

func TestSlotsStaffCustomHoursRefineSalonCustomHours(t *testing.T) {
	salonStart, salonEnd := 480, 720  // 08:00-12:00
	staffStart, staffEnd := 660, 960  // 11:00-16:00
	repo := &fakeRepo{
		salonRules: mondaySalonRule(540, 1020),
		salonExc: []model.ScheduleException{onDay(model.ScheduleException{
			Scope: model.ScopeSalon, Type: model.ExceptionCustomHours,
			CustomStartMinute: &salonStart, CustomEndMinute: &salonEnd,
		}, monday)},
		staffExc: []model.ScheduleException{onDay(model.ScheduleException{
			Scope: model.ScopeStaff, StaffID: "s1", Type: model.ExceptionCustomHours,
			CustomStartMinute: &staffStart, CustomEndMinute: &staffEnd,
		}, monday)},
	}
	day := resolve(t, repo, Request{TenantID: "t1", Date: monday, StaffID: "s1", DurationMinutes: 60})

	if s := slotByStart(t, day, "11:00"); !s.Available {
		t.Fatalf("11:00 = %+v, want available inside staff custom window", s)
	}
	if s := slotByStart(t, day, "08:00"); s.Reason != model.ReasonOutsideWorkingHours {
		t.Fatalf("08:00 = %+v, want OUTSIDE_WORKING_HOURS (staff custom hours win)", s)
	}
	if s := slotByStart(t, day, "15:00"); !s.Available {
		t.Fatalf("15:00 = %+v, want available inside staff custom window", s)
	}
}

func TestSlotsIdempotent(t *testing.T) {
	repo := &fakeRepo{
		salonRules: mondaySalonRule(540, 1020),
		bookings: []model.Booking{{
			StartAt: time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 1, 19, 11, 0, 0, 0, time.UTC),
		}},
	}
	req := Request{TenantID: "t1", Date: monday, DurationMinutes: 45, BufferMinutes: 10}

	a := resolve(t, repo, req).All()
	b := resolve(t, repo, req).All()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	// Restartable: a second pass over the same sequence yields the same slots.
	seq := resolve(t, repo, req)
	c := seq.All()
	d := seq.All()
	for i := range c {
		if c[i] != d[i] {
			t.Fatalf("re-iterated slot %d differs", i)
		}
	}
}

func TestSlotsAcrossSpringForward(t *testing.T) {
	// 2026-03-29 is the EU spring-forward Sunday; Warsaw jumps 02:00->03:00.
	dstDay := timeutil.Date{Year: 2026, Month: time.March, Day: 29}
	repo := &fakeRepo{
		salonRules: map[int]*model.WorkingHourRule{
			0: {TenantID: "t1", Scope: model.ScopeSalon, Weekday: 0, StartMinute: 540, EndMinute: 1020, IsWorkingDay: true},
		},
	}
	day := resolve(t, repo, Request{TenantID: "t1", Date: dstDay, DurationMinutes: 60})

	// After the transition local time is UTC+2: 09:00 local = 07:00Z.
	s := slotByStart(t, day, "09:00")
	if !s.Available {
		t.Fatalf("09:00 = %+v, want available", s)
	}
	want := time.Date(2026, 3, 29, 7, 0, 0, 0, time.UTC)
	if !s.StartUTC.Equal(want) {
		t.Fatalf("09:00 startUtc = %v, want %v", s.StartUTC, want)
	}
}

func TestCheckInterval(t *testing.T) {
	repo := &fakeRepo{
		salonRules: mondaySalonRule(540, 1020),
		bookings: []model.Booking{{
			StartAt: time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),  // 10:00 local
			EndAt:   time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC), // 11:00 local
		}},
	}
	day := resolve(t, repo, Request{TenantID: "t1", Date: monday, DurationMinutes: 60})

	if ok, _ := day.CheckInterval(time.Date(2026, 1, 19, 11, 0, 0, 0, time.UTC), 60); !ok {
		t.Fatal("12:00 local should be free")
	}
	if ok, reason := day.CheckInterval(time.Date(2026, 1, 19, 9, 30, 0, 0, time.UTC), 60); ok || reason != model.ReasonAppointmentConflict {
		t.Fatalf("10:30 local: ok=%v reason=%q, want conflict", ok, reason)
	}
	if ok, reason := day.CheckInterval(time.Date(2026, 1, 19, 6, 0, 0, 0, time.UTC), 60); ok || reason != model.ReasonOutsideWorkingHours {
		t.Fatalf("07:00 local: ok=%v reason=%q, want outside working hours", ok, reason)
	}
}
