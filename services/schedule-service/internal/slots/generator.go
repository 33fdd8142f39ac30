// Package slots computes the authoritative set of bookable time slots for
// one salon day: weekly working-hour defaults merged with date-ranged
// exceptions under a fixed precedence policy, minus existing bookings.
package slots

import (
	"context"
	"errors"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/timeutil"
)

const (
	// StepMinutes is the fixed scan step; it does not follow the
	// requested service duration.
	StepMinutes = 15

	MinDurationMinutes = 15
	MaxDurationMinutes = 480
	MaxBufferMinutes   = 60
)

var (
	ErrDurationOutOfRange = errors.New("service duration out of range")
	ErrBufferOutOfRange   = errors.New("buffer out of range")
	ErrBadTimezone        = errors.New("tenant has an invalid timezone")
)

// Repository is the read-only schedule store the generator consumes. All
// methods are independent reads with no side effects.
type Repository interface {
	SalonWorkingHour(ctx context.Context, tenantID string, weekday int) (*model.WorkingHourRule, error)
	StaffWorkingHour(ctx context.Context, tenantID, staffID string, weekday int) (*model.WorkingHourRule, error)
	SalonExceptions(ctx context.Context, tenantID string, day timeutil.Date) ([]model.ScheduleException, error)
	StaffExceptions(ctx context.Context, tenantID, staffID string, day timeutil.Date) ([]model.ScheduleException, error)
	BookingsBetween(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Booking, error)
}

// TimezoneProvider resolves a tenant's IANA timezone name. In production it
// is the Redis-backed cache; tests plug in a map.
type TimezoneProvider interface {
	TenantTimezone(ctx context.Context, tenantID string) (string, error)
}

// Request describes one availability computation.
type Request struct {
	TenantID        string
	Date            timeutil.Date
	StaffID         string // empty = salon-wide availability
	DurationMinutes int
	BufferMinutes   int
}

type Generator struct {
	repo Repository
	tz   TimezoneProvider
}

func NewGenerator(repo Repository, tz TimezoneProvider) *Generator {
	return &Generator{repo: repo, tz: tz}
}

// DaySchedule is the fully resolved input of slot generation. Everything
// here is plain data, so the scan over it is a pure, restartable function:
// identical inputs always produce identical slot sequences.
type DaySchedule struct {
	Date            timeutil.Date
	Timezone        string
	Window          Window
	Bookings        []model.Booking
	DurationMinutes int
	BufferMinutes   int

	loc *time.Location
}

// Resolve loads everything the scan needs. The repository reads are
// independent, so they are issued concurrently and combined once all have
// finished. Nothing is written; a failed or abandoned resolve has no
// side effects.
func (g *Generator) Resolve(ctx context.Context, req Request) (*DaySchedule, error) {
	if req.DurationMinutes < MinDurationMinutes || req.DurationMinutes > MaxDurationMinutes {
		return nil, ErrDurationOutOfRange
	}
	if req.BufferMinutes < 0 || req.BufferMinutes > MaxBufferMinutes {
		return nil, ErrBufferOutOfRange
	}

	tzName, err := g.tz.TenantTimezone(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, ErrBadTimezone
	}

	weekday := req.Date.Weekday()

	// Bookings widened by the buffer can conflict with slots that start
	// before the day or spill past local midnight, so the read window is
	// padded by the maximum buffer on both ends.
	pad := time.Duration(MaxBufferMinutes) * time.Minute
	from := req.Date.MinuteToUTC(0, loc).Add(-pad)
	to := req.Date.MinuteToUTC(timeutil.MinutesPerDay+req.DurationMinutes, loc).Add(pad)

	var (
		salonRule *model.WorkingHourRule
		staffRule *model.WorkingHourRule
		salonExc  []model.ScheduleException
		staffExc  []model.ScheduleException
		bookings  []model.Booking
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		salonRule, err = g.repo.SalonWorkingHour(egCtx, req.TenantID, weekday)
		return err
	})
	eg.Go(func() error {
		var err error
		salonExc, err = g.repo.SalonExceptions(egCtx, req.TenantID, req.Date)
		return err
	})
	eg.Go(func() error {
		var err error
		bookings, err = g.repo.BookingsBetween(egCtx, req.TenantID, req.StaffID, from, to)
		return err
	})
	if req.StaffID != "" {
		eg.Go(func() error {
			var err error
			staffRule, err = g.repo.StaffWorkingHour(egCtx, req.TenantID, req.StaffID, weekday)
			return err
		})
		eg.Go(func() error {
			var err error
			staffExc, err = g.repo.StaffExceptions(egCtx, req.TenantID, req.StaffID, req.Date)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &DaySchedule{
		Date:            req.Date,
		Timezone:        tzName,
		Window:          ResolveWindow(salonRule, staffRule, salonExc, staffExc),
		Bookings:        bookings,
		DurationMinutes: req.DurationMinutes,
		BufferMinutes:   req.BufferMinutes,
		loc:             loc,
	}, nil
}

// Slots returns the day's scan as a lazy, restartable sequence: one slot
// per step across the full local day, in order.
func (s *DaySchedule) Slots() iter.Seq[model.Slot] {
	return func(yield func(model.Slot) bool) {
		for m := 0; m < timeutil.MinutesPerDay; m += StepMinutes {
			if !yield(s.slotAt(m)) {
				return
			}
		}
	}
}

// All materializes the scan for response shaping.
func (s *DaySchedule) All() []model.Slot {
	out := make([]model.Slot, 0, timeutil.MinutesPerDay/StepMinutes)
	for slot := range s.Slots() {
		out = append(out, slot)
	}
	return out
}

// slotAt annotates the candidate [m, m+duration). Reason order is fixed:
// salon closure dominates staff closure; on open days booking conflicts are
// reported before the working-window bound check.
func (s *DaySchedule) slotAt(m int) model.Slot {
	startUTC := s.Date.MinuteToUTC(m, s.loc)
	endUTC := s.Date.MinuteToUTC(m+s.DurationMinutes, s.loc)

	slot := model.Slot{
		StartLocal: timeutil.FormatMinutes(m),
		EndLocal:   timeutil.FormatMinutes(m + s.DurationMinutes),
		StartUTC:   startUTC,
		EndUTC:     endUTC,
	}

	switch {
	case s.Window.SalonClosed():
		slot.Reason = model.ReasonSalonClosed
	case s.Window.StaffOff():
		slot.Reason = model.ReasonStaffOff
	case s.conflicts(startUTC, endUTC):
		slot.Reason = model.ReasonAppointmentConflict
	case !s.Window.Contains(m, s.DurationMinutes):
		slot.Reason = model.ReasonOutsideWorkingHours
	default:
		slot.Available = true
	}
	return slot
}

func (s *DaySchedule) conflicts(startUTC, endUTC time.Time) bool {
	buf := time.Duration(s.BufferMinutes) * time.Minute
	for _, b := range s.Bookings {
		if timeutil.Overlaps(startUTC, endUTC, b.StartAt.Add(-buf), b.EndAt.Add(buf)) {
			return true
		}
	}
	return false
}

// CheckInterval answers the booking workflow's precondition for an exact
// interval. The verdict is advisory: the booking workflow re-validates
// non-conflict inside its own transaction at write time.
func (s *DaySchedule) CheckInterval(startUTC time.Time, durationMinutes int) (bool, model.UnavailableReason) {
	if s.Window.SalonClosed() {
		return false, model.ReasonSalonClosed
	}
	if s.Window.StaffOff() {
		return false, model.ReasonStaffOff
	}
	endUTC := startUTC.Add(time.Duration(durationMinutes) * time.Minute)
	if s.conflicts(startUTC, endUTC) {
		return false, model.ReasonAppointmentConflict
	}
	local := startUTC.In(s.loc)
	m := local.Hour()*60 + local.Minute()
	if local.Format("2006-01-02") != s.Date.String() || !s.Window.Contains(m, durationMinutes) {
		return false, model.ReasonOutsideWorkingHours
	}
	return true, ""
}
