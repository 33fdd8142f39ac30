package slots

import (
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
)

// WindowSource names the rule that supplied the base working window.
type WindowSource string

const (
	SourceNone  WindowSource = "none"
	SourceSalon WindowSource = "salon"
	SourceStaff WindowSource = "staff"
)

// Window is the effective working window for a single day, produced by
// layering override steps in precedence order: salon default, salon
// exception, staff default, staff exception. A day with no configuration
// resolves closed, never open.
type Window struct {
	Configured  bool
	Working     bool
	StartMinute int
	EndMinute   int
	Source      WindowSource

	salonHoliday bool // salon-scope DAY_OFF / SICK_LEAVE; not clearable by staff layers
	staffHoliday bool
	staffScoped  bool // the layer that last decided Working was staff-scoped
}

// ResolveWindow runs the full override pipeline for one day.
func ResolveWindow(salonRule, staffRule *model.WorkingHourRule, salonExceptions, staffExceptions []model.ScheduleException) Window {
	w := baseWindow(salonRule, staffRule)
	for _, exc := range salonExceptions {
		w = applyException(w, exc)
	}
	for _, exc := range staffExceptions {
		w = applyException(w, exc)
	}
	return w
}

// baseWindow picks the default weekly rule: staff-scoped when present,
// otherwise the salon-wide one (staff inherits salon hours).
func baseWindow(salonRule, staffRule *model.WorkingHourRule) Window {
	switch {
	case staffRule != nil:
		return Window{
			Configured:  true,
			Working:     staffRule.IsWorkingDay,
			StartMinute: staffRule.StartMinute,
			EndMinute:   staffRule.EndMinute,
			Source:      SourceStaff,
			staffScoped: true,
		}
	case salonRule != nil:
		return Window{
			Configured:  true,
			Working:     salonRule.IsWorkingDay,
			StartMinute: salonRule.StartMinute,
			EndMinute:   salonRule.EndMinute,
			Source:      SourceSalon,
		}
	default:
		return Window{Source: SourceNone}
	}
}

// applyException layers one exception over the window. Closure exceptions
// mark their scope closed for the whole day; CUSTOM_HOURS replaces the
// times and, when it carries a working-day override, the working flag.
func applyException(w Window, exc model.ScheduleException) Window {
	staff := exc.Scope == model.ScopeStaff

	switch exc.Type {
	case model.ExceptionDayOff, model.ExceptionSickLeave:
		if staff {
			w.staffHoliday = true
		} else {
			w.salonHoliday = true
		}

	case model.ExceptionCustomHours:
		if exc.CustomStartMinute == nil || exc.CustomEndMinute == nil {
			return w
		}
		wasConfigured := w.Configured
		w.StartMinute = *exc.CustomStartMinute
		w.EndMinute = *exc.CustomEndMinute
		w.Configured = true
		if exc.IsWorkingDay != nil {
			w.Working = *exc.IsWorkingDay
			w.staffScoped = staff
		} else if !wasConfigured {
			// Custom hours on an otherwise unconfigured day open it.
			w.Working = true
			w.staffScoped = staff
		}
	}
	return w
}

// Open reports whether the day has a bookable window at all for the
// resolved (salon, staff) context.
func (w Window) Open() bool {
	return w.Configured &&
		w.Working &&
		w.EndMinute > w.StartMinute &&
		!w.salonHoliday &&
		!w.staffHoliday
}

// SalonClosed reports whether the whole salon is closed: an explicit
// salon-scope closure exception, or a day whose closure is not attributable
// to a staff-level layer (including the fail-closed "nothing configured"
// default). Salon closure dominates staff state.
func (w Window) SalonClosed() bool {
	if w.salonHoliday {
		return true
	}
	if w.Open() {
		return false
	}
	if w.staffHoliday {
		return false
	}
	if w.staffScoped && w.Configured && (!w.Working || w.EndMinute <= w.StartMinute) {
		return false
	}
	return true
}

// StaffOff reports a staff-only closure on a day the salon itself is open.
// Mutually exclusive with SalonClosed, which wins.
func (w Window) StaffOff() bool {
	return !w.Open() && !w.SalonClosed()
}

// Contains reports whether [startMinute, startMinute+duration) lies fully
// inside the effective working window.
func (w Window) Contains(startMinute, durationMinutes int) bool {
	return startMinute >= w.StartMinute && startMinute+durationMinutes <= w.EndMinute
}
