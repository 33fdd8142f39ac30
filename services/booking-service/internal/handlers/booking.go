package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/model"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/outbox"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/schedule"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/storage"
)

type BookingHandler struct {
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	schedule   schedule.Provider
}

func NewBookingHandler(repo *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger, scheduleProvider schedule.Provider) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
		schedule:   scheduleProvider,
	}
}

func tenantIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
}

type createBookingRequest struct {
	ServiceID     string `json:"serviceId"`
	StaffID       string `json:"staffId"`
	ClientName    string `json:"clientName"`
	ClientEmail   string `json:"clientEmail"`
	ClientPhone   string `json:"clientPhone"`
	StartAt       string `json:"startAt"`
	EndAt         string `json:"endAt"`
	BufferMinutes int    `json:"bufferMinutes"`
}

type createBookingResponse struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointmentId"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID := tenantIDFromHeader(r)
	if tenantID == "" {
		http.Error(w, "missing X-Tenant-Id", http.StatusBadRequest)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	if req.ServiceID == "" || req.StaffID == "" || req.ClientName == "" {
		http.Error(w, "serviceId, staffId and clientName required", http.StatusBadRequest)
		return
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		http.Error(w, "invalid startAt", http.StatusBadRequest)
		return
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		http.Error(w, "invalid endAt", http.StatusBadRequest)
		return
	}
	if !endAt.After(startAt) {
		http.Error(w, "endAt must be after startAt", http.StatusBadRequest)
		return
	}
	duration := int(endAt.Sub(startAt).Minutes())
	if duration < 15 || duration > 480 {
		http.Error(w, "appointment length must be between 15 and 480 minutes", http.StatusBadRequest)
		return
	}
	if req.BufferMinutes < 0 || req.BufferMinutes > 60 {
		http.Error(w, "bufferMinutes must be between 0 and 60", http.StatusBadRequest)
		return
	}

	appt := &model.Appointment{
		TenantID:    tenantID,
		ServiceID:   req.ServiceID,
		StaffID:     req.StaffID,
		ClientName:  req.ClientName,
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		StartAt:     startAt.UTC(),
		EndAt:       endAt.UTC(),
		Status:      model.StatusBooked,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, tenantID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			if len(rec.ResponsePayload) > 0 {
				_, _ = w.Write(rec.ResponsePayload)
				return
			}
			_ = json.NewEncoder(w).Encode(createBookingResponse{Success: true, AppointmentID: rec.AppointmentID})
			return
		}
	}

	// Precondition: the requested interval must be free per the schedule
	// service (working hours, exceptions, existing bookings with buffer).
	if h.schedule != nil {
		verdict, err := h.schedule.CheckSlot(ctx, tenantID, appt.StaffID, appt.StartAt, duration, req.BufferMinutes)
		if err != nil {
			// Dependency errors must not finalize the idempotency key; the
			// client retries with the same key once the schedule service is back.
			http.Error(w, "schedule service unavailable", http.StatusServiceUnavailable)
			return
		}
		if !verdict.Free {
			msg := "requested time is not available"
			if verdict.Reason != "" {
				msg += ": " + verdict.Reason
			}
			if idempotencyKey != "" {
				if h.finalizeIdempotencyError(ctx, tx, tenantID, idempotencyKey, http.StatusUnprocessableEntity, msg) {
					_ = tx.Commit(ctx)
					return
				}
			}
			http.Error(w, msg, http.StatusUnprocessableEntity)
			return
		}
	}

	// The advisory check above races with concurrent creates, so overlap is
	// re-validated here while holding row locks.
	overlap, err := h.repo.HasOverlap(ctx, tx, tenantID, appt.StaffID, appt.StartAt, appt.EndAt)
	if err != nil {
		http.Error(w, "failed to check occupancy", http.StatusInternalServerError)
		return
	}
	if overlap {
		http.Error(w, "time slot already booked", http.StatusConflict)
		return
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointmentId": id,
		"tenantId":      tenantID,
		"staffId":       appt.StaffID,
		"serviceId":     appt.ServiceID,
		"clientEmail":   appt.ClientEmail,
		"clientPhone":   appt.ClientPhone,
		"startAt":       appt.StartAt.Format(time.RFC3339),
		"endAt":         appt.EndAt.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     outbox.TopicAppointmentBooked,
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createBookingResponse{Success: true, AppointmentID: id})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, tenantID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, tenantID, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]any{"success": false, "error": msg})
	if err != nil {
		return false
	}
	if err := h.repo.FinalizeIdempotency(ctx, tx, tenantID, key, "", statusCode, body); err != nil {
		h.logger.Warn("idempotency finalize failed", "err", err)
		return false
	}
	return true
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointmentId"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID := tenantIDFromHeader(r)
	if tenantID == "" {
		http.Error(w, "missing X-Tenant-Id", http.StatusBadRequest)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointmentId required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, tenantID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if appt.Status == model.StatusCancelled {
		http.Error(w, "appointment already cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.CancelAppointment(ctx, tx, tenantID, req.AppointmentID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointmentId": req.AppointmentID,
		"tenantId":      tenantID,
		"staffId":       appt.StaffID,
		"cancelledAt":   cancelledAt.UTC().Format(time.RFC3339),
		"reason":        req.Reason,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   req.AppointmentID,
		EventType:     outbox.TopicAppointmentCancelled,
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"appointmentId": req.AppointmentID,
		"status":        model.StatusCancelled,
		"cancelledAt":   cancelledAt.UTC().Format(time.RFC3339),
	})
}

type appointmentView struct {
	AppointmentID string `json:"appointmentId"`
	StaffID       string `json:"staffId"`
	ServiceID     string `json:"serviceId"`
	ClientName    string `json:"clientName"`
	StartAt       string `json:"startAt"`
	EndAt         string `json:"endAt"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelledAt,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID := tenantIDFromHeader(r)
	if tenantID == "" {
		http.Error(w, "missing X-Tenant-Id", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staffId"))

	appts, err := h.repo.ListByTenant(r.Context(), tenantID, staffID, limit)
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	out := make([]appointmentView, 0, len(appts))
	for _, appt := range appts {
		view := appointmentView{
			AppointmentID: appt.ID,
			StaffID:       appt.StaffID,
			ServiceID:     appt.ServiceID,
			ClientName:    appt.ClientName,
			StartAt:       appt.StartAt.UTC().Format(time.RFC3339),
			EndAt:         appt.EndAt.UTC().Format(time.RFC3339),
			Status:        appt.Status,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			view.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		out = append(out, view)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "appointments": out})
}
