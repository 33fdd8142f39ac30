package model

import "time"

// Scope says whether a rule or exception applies to the whole salon or to
// one staff member.
type Scope string

const (
	ScopeSalon Scope = "SALON"
	ScopeStaff Scope = "STAFF"
)

type ExceptionType string

const (
	ExceptionDayOff      ExceptionType = "DAY_OFF"
	ExceptionSickLeave   ExceptionType = "SICK_LEAVE"
	ExceptionCustomHours ExceptionType = "CUSTOM_HOURS"
)

type UnavailableReason string

const (
	ReasonAppointmentConflict UnavailableReason = "APPOINTMENT_CONFLICT"
	ReasonSalonClosed         UnavailableReason = "SALON_CLOSED"
	ReasonStaffOff            UnavailableReason = "STAFF_OFF"
	ReasonOutsideWorkingHours UnavailableReason = "OUTSIDE_WORKING_HOURS"
)

// WorkingHourRule is one row of the default weekly schedule. Times are
// minutes since local midnight; there is at most one rule per
// (tenant, scope, staff, weekday).
type WorkingHourRule struct {
	TenantID     string
	Scope        Scope
	StaffID      string // empty for SALON scope
	Weekday      int    // 0=Sunday .. 6=Saturday
	StartMinute  int
	EndMinute    int
	IsWorkingDay bool
}

// ScheduleException is a date-ranged override layered on top of the weekly
// defaults. The date range is inclusive at UTC-day granularity. CUSTOM_HOURS
// carries replacement times and may also override the working-day flag.
type ScheduleException struct {
	ID                string
	TenantID          string
	Scope             Scope
	StaffID           string // empty for SALON scope
	StartDate         time.Time
	EndDate           time.Time
	Type              ExceptionType
	CustomStartMinute *int
	CustomEndMinute   *int
	IsWorkingDay      *bool
}

// Covers reports whether the exception's inclusive date range contains the
// given instant's UTC calendar day. Both boundary days are inside the range.
func (e ScheduleException) Covers(day time.Time) bool {
	y, m, d := day.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !midnight.Before(e.StartDate) && !midnight.After(e.EndDate)
}

// Booking is the read-only view of the appointment ledger this subsystem
// consumes: occupied staff time in UTC. Cancelled and no-show rows are
// filtered out at the query.
type Booking struct {
	StaffID string
	StartAt time.Time
	EndAt   time.Time
}

// Slot is a candidate bookable interval. Slots are computed per request and
// never persisted.
type Slot struct {
	StartLocal string            `json:"startLocal"`
	EndLocal   string            `json:"endLocal"`
	StartUTC   time.Time         `json:"startUtc"`
	EndUTC     time.Time         `json:"endUtc"`
	Available  bool              `json:"available"`
	Reason     UnavailableReason `json:"unavailableReason,omitempty"`
}

type Tenant struct {
	ID       string
	Name     string
	Timezone string // IANA name; every local time of this tenant is read in it
}
