package model

import "time"

// Appointment statuses. "booked" and "needs_reschedule" hold the staff
// member's time; "cancelled" and "no_show" release it.
const (
	StatusBooked          = "booked"
	StatusCancelled       = "cancelled"
	StatusNoShow          = "no_show"
	StatusNeedsReschedule = "needs_reschedule"
)

type Appointment struct {
	ID           string
	TenantID     string
	ServiceID    string
	StaffID      string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	StartAt      time.Time
	EndAt        time.Time
	Status       string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}
