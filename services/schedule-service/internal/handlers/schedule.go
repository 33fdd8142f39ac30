package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/outbox"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/storage"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/timeutil"
)

// OutboxInserter stages domain events inside the repository's transaction.
type OutboxInserter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// ScheduleStore is the slice of the storage layer the HTTP handlers touch.
// *storage.Repository implements it.
type ScheduleStore interface {
	StaffExists(ctx context.Context, tenantID, staffID string) (bool, error)
	UpsertWorkingHour(ctx context.Context, rule model.WorkingHourRule) error
	ListWorkingHours(ctx context.Context, tenantID string, scope model.Scope, staffID string) ([]model.WorkingHourRule, error)
	CreateException(ctx context.Context, exc model.ScheduleException, outboxInsert func(ctx context.Context, tx pgx.Tx, excID string) error) (string, error)
	ListExceptions(ctx context.Context, tenantID, staffID string, limit int) ([]model.ScheduleException, error)
	DeleteException(ctx context.Context, tenantID, excID string, outboxInsert func(ctx context.Context, tx pgx.Tx, exc model.ScheduleException) error) (model.ScheduleException, error)
}

type workingHourBody struct {
	Scope        string `json:"scope"`
	StaffID      string `json:"staffId"`
	Weekday      int    `json:"weekday"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	IsWorkingDay bool   `json:"isWorkingDay"`
}

// UpsertWorkingHours replaces the weekly rule for one (scope, weekday,
// staff) cell.
func (h *Handler) UpsertWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := tenantIDFrom(r)
	if tenantID == "" {
		writeValidationError(w, map[string]string{"tenantId": "tenant is required"})
		return
	}

	var body workingHourBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid json body"})
		return
	}

	fields := map[string]string{}
	scope := model.Scope(strings.ToUpper(strings.TrimSpace(body.Scope)))
	if scope != model.ScopeSalon && scope != model.ScopeStaff {
		fields["scope"] = "must be SALON or STAFF"
	}
	if scope == model.ScopeStaff && body.StaffID == "" {
		fields["staffId"] = "required for STAFF scope"
	}
	if scope == model.ScopeSalon && body.StaffID != "" {
		fields["staffId"] = "must be empty for SALON scope"
	}
	if body.Weekday < 0 || body.Weekday > 6 {
		fields["weekday"] = "must be 0 (Sunday) through 6 (Saturday)"
	}
	start, err := timeutil.MinutesOfDay(body.StartTime)
	if err != nil {
		fields["startTime"] = "must be HH:mm"
	}
	end, err := timeutil.MinutesOfDay(body.EndTime)
	if err != nil {
		fields["endTime"] = "must be HH:mm"
	}
	if body.IsWorkingDay && len(fields) == 0 && start >= end {
		fields["endTime"] = "must be after startTime on working days"
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	if scope == model.ScopeStaff {
		ok, err := h.repo.StaffExists(r.Context(), tenantID, body.StaffID)
		if err != nil {
			h.logger.Error("staff lookup failed", "err", err)
			writeInternal(w, "failed to load staff")
			return
		}
		if !ok {
			writeNotFound(w, "staff not found")
			return
		}
	}

	err = h.repo.UpsertWorkingHour(r.Context(), model.WorkingHourRule{
		TenantID:     tenantID,
		Scope:        scope,
		StaffID:      body.StaffID,
		Weekday:      body.Weekday,
		StartMinute:  start,
		EndMinute:    end,
		IsWorkingDay: body.IsWorkingDay,
	})
	if err != nil {
		h.logger.Error("working hours upsert failed", "err", err)
		writeInternal(w, "failed to save working hours")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := tenantIDFrom(r)
	if tenantID == "" {
		writeValidationError(w, map[string]string{"tenantId": "tenant is required"})
		return
	}

	scope := model.ScopeSalon
	staffID := strings.TrimSpace(r.URL.Query().Get("staffId"))
	if staffID != "" {
		scope = model.ScopeStaff
	}

	rules, err := h.repo.ListWorkingHours(r.Context(), tenantID, scope, staffID)
	if err != nil {
		h.logger.Error("working hours list failed", "err", err)
		writeInternal(w, "failed to load working hours")
		return
	}

	out := make([]workingHourBody, 0, len(rules))
	for _, rule := range rules {
		out = append(out, workingHourBody{
			Scope:        string(rule.Scope),
			StaffID:      rule.StaffID,
			Weekday:      rule.Weekday,
			StartTime:    timeutil.FormatMinutes(rule.StartMinute),
			EndTime:      timeutil.FormatMinutes(rule.EndMinute),
			IsWorkingDay: rule.IsWorkingDay,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "workingHours": out})
}

type exceptionBody struct {
	Scope           string `json:"scope"`
	StaffID         string `json:"staffId"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Type            string `json:"type"`
	CustomStartTime string `json:"customStartTime,omitempty"`
	CustomEndTime   string `json:"customEndTime,omitempty"`
	IsWorkingDay    *bool  `json:"isWorkingDay,omitempty"`
}

func (h *Handler) CreateException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := tenantIDFrom(r)
	if tenantID == "" {
		writeValidationError(w, map[string]string{"tenantId": "tenant is required"})
		return
	}

	var body exceptionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid json body"})
		return
	}

	exc, fields := h.validateException(tenantID, body)
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	if exc.StaffID != "" {
		ok, err := h.repo.StaffExists(r.Context(), tenantID, exc.StaffID)
		if err != nil {
			h.logger.Error("staff lookup failed", "err", err)
			writeInternal(w, "failed to load staff")
			return
		}
		if !ok {
			writeNotFound(w, "staff not found")
			return
		}
	}

	id, err := h.repo.CreateException(r.Context(), exc, func(ctx context.Context, tx pgx.Tx, excID string) error {
		exc.ID = excID
		evt, err := outbox.ExceptionEvent(outbox.TopicExceptionCreated, exc)
		if err != nil {
			return err
		}
		return h.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		h.logger.Error("exception create failed", "err", err)
		writeInternal(w, "failed to create exception")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

func (h *Handler) validateException(tenantID string, body exceptionBody) (model.ScheduleException, map[string]string) {
	fields := map[string]string{}

	scope := model.Scope(strings.ToUpper(strings.TrimSpace(body.Scope)))
	if scope != model.ScopeSalon && scope != model.ScopeStaff {
		fields["scope"] = "must be SALON or STAFF"
	}
	if scope == model.ScopeStaff && body.StaffID == "" {
		fields["staffId"] = "required for STAFF scope"
	}

	typ := model.ExceptionType(strings.ToUpper(strings.TrimSpace(body.Type)))
	switch typ {
	case model.ExceptionDayOff, model.ExceptionSickLeave, model.ExceptionCustomHours:
	default:
		fields["type"] = "must be DAY_OFF, SICK_LEAVE or CUSTOM_HOURS"
	}

	startDate, err := timeutil.ParseDate(body.StartDate)
	if err != nil {
		fields["startDate"] = "must be YYYY-MM-DD"
	}
	endDate, err := timeutil.ParseDate(body.EndDate)
	if err != nil {
		fields["endDate"] = "must be YYYY-MM-DD"
	}
	if len(fields) == 0 && endDate.UTCMidnight().Before(startDate.UTCMidnight()) {
		fields["endDate"] = "must not precede startDate"
	}

	exc := model.ScheduleException{
		TenantID:     tenantID,
		Scope:        scope,
		StaffID:      body.StaffID,
		StartDate:    startDate.UTCMidnight(),
		EndDate:      endDate.UTCMidnight(),
		Type:         typ,
		IsWorkingDay: body.IsWorkingDay,
	}

	if typ == model.ExceptionCustomHours {
		if body.CustomStartTime == "" || body.CustomEndTime == "" {
			fields["customStartTime"] = "CUSTOM_HOURS requires customStartTime and customEndTime"
		} else {
			start, err := timeutil.MinutesOfDay(body.CustomStartTime)
			if err != nil {
				fields["customStartTime"] = "must be HH:mm"
			}
			end, err := timeutil.MinutesOfDay(body.CustomEndTime)
			if err != nil {
				fields["customEndTime"] = "must be HH:mm"
			}
			if len(fields) == 0 {
				if start >= end {
					fields["customEndTime"] = "must be after customStartTime"
				}
				exc.CustomStartMinute = &start
				exc.CustomEndMinute = &end
			}
		}
	}
	return exc, fields
}

func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := tenantIDFrom(r)
	if tenantID == "" {
		writeValidationError(w, map[string]string{"tenantId": "tenant is required"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staffId"))

	excs, err := h.repo.ListExceptions(r.Context(), tenantID, staffID, limit)
	if err != nil {
		h.logger.Error("exception list failed", "err", err)
		writeInternal(w, "failed to load exceptions")
		return
	}

	type exceptionView struct {
		ID string `json:"id"`
		exceptionBody
	}
	out := make([]exceptionView, 0, len(excs))
	for _, exc := range excs {
		view := exceptionView{
			ID: exc.ID,
			exceptionBody: exceptionBody{
				Scope:        string(exc.Scope),
				StaffID:      exc.StaffID,
				StartDate:    exc.StartDate.Format("2006-01-02"),
				EndDate:      exc.EndDate.Format("2006-01-02"),
				Type:         string(exc.Type),
				IsWorkingDay: exc.IsWorkingDay,
			},
		}
		if exc.CustomStartMinute != nil {
			view.CustomStartTime = timeutil.FormatMinutes(*exc.CustomStartMinute)
		}
		if exc.CustomEndMinute != nil {
			view.CustomEndTime = timeutil.FormatMinutes(*exc.CustomEndMinute)
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "exceptions": out})
}

func (h *Handler) DeleteException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := tenantIDFrom(r)
	if tenantID == "" {
		writeValidationError(w, map[string]string{"tenantId": "tenant is required"})
		return
	}
	excID := strings.TrimSpace(r.URL.Query().Get("id"))
	if excID == "" {
		writeValidationError(w, map[string]string{"id": "exception id is required"})
		return
	}

	_, err := h.repo.DeleteException(r.Context(), tenantID, excID, func(ctx context.Context, tx pgx.Tx, exc model.ScheduleException) error {
		evt, err := outbox.ExceptionEvent(outbox.TopicExceptionDeleted, exc)
		if err != nil {
			return err
		}
		return h.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		if storage.IsNotFound(err) {
			writeNotFound(w, "exception not found")
			return
		}
		h.logger.Error("exception delete failed", "err", err)
		writeInternal(w, "failed to delete exception")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
