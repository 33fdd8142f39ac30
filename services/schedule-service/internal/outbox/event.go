package outbox

import (
	"encoding/json"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
)

// Topic names equal the event type, one topic per event.
const (
	TopicExceptionCreated = "schedule.exception.created.v1"
	TopicExceptionDeleted = "schedule.exception.deleted.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// ExceptionPayload is the wire body for both exception events. Dates are
// civil "YYYY-MM-DD" strings, matching how ranges are stored.
type ExceptionPayload struct {
	ExceptionID string  `json:"exceptionId"`
	TenantID    string  `json:"tenantId"`
	Scope       string  `json:"scope"`
	StaffID     string  `json:"staffId,omitempty"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Type        string  `json:"type"`
	StartMinute *int    `json:"customStartMinute,omitempty"`
	EndMinute   *int    `json:"customEndMinute,omitempty"`
}

func ExceptionEvent(eventType string, exc model.ScheduleException) (Event, error) {
	payload, err := json.Marshal(ExceptionPayload{
		ExceptionID: exc.ID,
		TenantID:    exc.TenantID,
		Scope:       string(exc.Scope),
		StaffID:     exc.StaffID,
		StartDate:   exc.StartDate.Format("2006-01-02"),
		EndDate:     exc.EndDate.Format("2006-01-02"),
		Type:        string(exc.Type),
		StartMinute: exc.CustomStartMinute,
		EndMinute:   exc.CustomEndMinute,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "schedule_exception",
		AggregateID:   exc.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
