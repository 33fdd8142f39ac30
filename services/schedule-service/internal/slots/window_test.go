package slots

import (
	"testing"
	"time"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
)

func salonRule(start, end int, working bool) *model.WorkingHourRule {
	return &model.WorkingHourRule{
		TenantID:     "t1",
		Scope:        model.ScopeSalon,
		Weekday:      1,
		StartMinute:  start,
		EndMinute:    end,
		IsWorkingDay: working,
	}
}

func staffRule(start, end int, working bool) *model.WorkingHourRule {
	return &model.WorkingHourRule{
		TenantID:     "t1",
		Scope:        model.ScopeStaff,
		StaffID:      "s1",
		Weekday:      1,
		StartMinute:  start,
		EndMinute:    end,
		IsWorkingDay: working,
	}
}

func closure(scope model.Scope, typ model.ExceptionType) model.ScheduleException {
	return model.ScheduleException{
		ID:        "e1",
		TenantID:  "t1",
		Scope:     scope,
		StaffID:   "s1",
		StartDate: time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		Type:      typ,
	}
}

func customHours(scope model.Scope, start, end int, working *bool) model.ScheduleException {
	return model.ScheduleException{
		ID:                "e2",
		TenantID:          "t1",
		Scope:             scope,
		StaffID:           "s1",
		StartDate:         time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		Type:              model.ExceptionCustomHours,
		CustomStartMinute: &start,
		CustomEndMinute:   &end,
		IsWorkingDay:      working,
	}
}

func TestResolveWindowNothingConfigured(t *testing.T) {
	w := ResolveWindow(nil, nil, nil, nil)
	if w.Open() {
		t.Fatal("unconfigured day must resolve closed")
	}
	if !w.SalonClosed() {
		t.Fatal("unconfigured day attributes to the salon")
	}
	if w.StaffOff() {
		t.Fatal("StaffOff and SalonClosed must be mutually exclusive")
	}
}

func TestResolveWindowStaffInheritsSalonHours(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), nil, nil, nil)
	if !w.Open() {
		t.Fatal("salon default should open the day")
	}
	if w.Source != SourceSalon {
		t.Fatalf("source = %q, want %q", w.Source, SourceSalon)
	}
	if w.StartMinute != 540 || w.EndMinute != 1080 {
		t.Fatalf("window = [%d,%d), want [540,1080)", w.StartMinute, w.EndMinute)
	}
}

func TestResolveWindowStaffRuleWinsOverSalon(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), staffRule(600, 900, true), nil, nil)
	if w.StartMinute != 600 || w.EndMinute != 900 {
		t.Fatalf("window = [%d,%d), want staff [600,900)", w.StartMinute, w.EndMinute)
	}
	if w.Source != SourceStaff {
		t.Fatalf("source = %q, want %q", w.Source, SourceStaff)
	}
}

func TestResolveWindowSalonNonWorkingDay(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, false), nil, nil, nil)
	if w.Open() {
		t.Fatal("non-working salon day must be closed")
	}
	if !w.SalonClosed() {
		t.Fatal("closure comes from the salon rule")
	}
}

func TestResolveWindowStaffNonWorkingDay(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), staffRule(540, 1080, false), nil, nil)
	if w.Open() {
		t.Fatal("non-working staff day must be closed")
	}
	if !w.StaffOff() {
		t.Fatal("closure is staff-scoped, salon stays open")
	}
	if w.SalonClosed() {
		t.Fatal("staff closure must not report the salon closed")
	}
}

func TestResolveWindowStaffDayOff(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), nil, nil,
		[]model.ScheduleException{closure(model.ScopeStaff, model.ExceptionDayOff)})
	if w.Open() {
		t.Fatal("staff DAY_OFF must close the day")
	}
	if !w.StaffOff() || w.SalonClosed() {
		t.Fatal("staff DAY_OFF on an open salon day is STAFF_OFF")
	}
}

func TestResolveWindowSalonClosureDominatesStaff(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), staffRule(600, 900, true),
		[]model.ScheduleException{closure(model.ScopeSalon, model.ExceptionSickLeave)},
		[]model.ScheduleException{closure(model.ScopeStaff, model.ExceptionDayOff)})
	if !w.SalonClosed() {
		t.Fatal("salon closure dominates staff state")
	}
	if w.StaffOff() {
		t.Fatal("StaffOff must yield to SalonClosed")
	}
}

func TestResolveWindowStaffCustomHoursWinOverSalonCustomHours(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), nil,
		[]model.ScheduleException{customHours(model.ScopeSalon, 480, 720, nil)},
		[]model.ScheduleException{customHours(model.ScopeStaff, 660, 960, nil)})
	if !w.Open() {
		t.Fatal("custom hours leave the day open")
	}
	if w.StartMinute != 660 || w.EndMinute != 960 {
		t.Fatalf("window = [%d,%d), want staff custom [660,960)", w.StartMinute, w.EndMinute)
	}
}

func TestResolveWindowCustomHoursOpenUnconfiguredDay(t *testing.T) {
	w := ResolveWindow(nil, nil,
		[]model.ScheduleException{customHours(model.ScopeSalon, 600, 840, nil)}, nil)
	if !w.Open() {
		t.Fatal("custom hours on an unconfigured day open it")
	}
	if w.StartMinute != 600 || w.EndMinute != 840 {
		t.Fatalf("window = [%d,%d), want [600,840)", w.StartMinute, w.EndMinute)
	}
}

func TestResolveWindowCustomHoursWorkingOverride(t *testing.T) {
	off := false
	w := ResolveWindow(salonRule(540, 1080, true), nil,
		[]model.ScheduleException{customHours(model.ScopeSalon, 540, 1080, &off)}, nil)
	if w.Open() {
		t.Fatal("explicit isWorkingDay=false must close the day")
	}
	if !w.SalonClosed() {
		t.Fatal("salon-scope override attributes to the salon")
	}
}

func TestResolveWindowStaffCustomHoursKeepSalonClosureAttribution(t *testing.T) {
	// The staff exception changes the times but carries no working-day
	// override, so the closure still comes from the salon weekly rule.
	w := ResolveWindow(salonRule(540, 1080, false), nil, nil,
		[]model.ScheduleException{customHours(model.ScopeStaff, 600, 900, nil)})
	if w.Open() {
		t.Fatal("salon non-working day must stay closed")
	}
	if !w.SalonClosed() {
		t.Fatal("closure comes from the salon rule, not the staff exception")
	}
	if w.StaffOff() {
		t.Fatal("StaffOff must yield to SalonClosed")
	}
}

func TestResolveWindowSalonCustomHoursKeepStaffClosureAttribution(t *testing.T) {
	w := ResolveWindow(salonRule(540, 1080, true), staffRule(600, 900, false),
		[]model.ScheduleException{customHours(model.ScopeSalon, 480, 720, nil)}, nil)
	if w.Open() {
		t.Fatal("staff non-working day must stay closed")
	}
	if !w.StaffOff() {
		t.Fatal("closure comes from the staff rule, not the salon exception")
	}
	if w.SalonClosed() {
		t.Fatal("staff closure must not report the salon closed")
	}
}

func TestResolveWindowCustomHoursMissingMinutesIgnored(t *testing.T) {
	exc := model.ScheduleException{
		Scope: model.ScopeStaff,
		Type:  model.ExceptionCustomHours,
	}
	w := ResolveWindow(salonRule(540, 1080, true), nil, nil, []model.ScheduleException{exc})
	if !w.Open() || w.StartMinute != 540 || w.EndMinute != 1080 {
		t.Fatal("custom hours without both minutes must be a no-op")
	}
}

func TestResolveWindowInvertedWindowClosed(t *testing.T) {
	w := ResolveWindow(salonRule(1080, 540, true), nil, nil, nil)
	if w.Open() {
		t.Fatal("end <= start must resolve closed")
	}
	if !w.SalonClosed() {
		t.Fatal("inverted salon window attributes to the salon")
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Configured: true, Working: true, StartMinute: 540, EndMinute: 1080}
	cases := []struct {
		start, dur int
		want       bool
	}{
		{540, 60, true},
		{1020, 60, true},  // ends exactly at close
		{1035, 60, false}, // spills past close
		{525, 60, false},  // starts before open
		{540, 540, true},  // the whole window
	}
	for _, c := range cases {
		if got := w.Contains(c.start, c.dur); got != c.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", c.start, c.dur, got, c.want)
		}
	}
}
