package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/slots"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/storage"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/timeutil"
)

type Handler struct {
	repo   ScheduleStore
	gen    *slots.Generator
	outbox OutboxInserter
	logger *slog.Logger
}

func New(repo ScheduleStore, gen *slots.Generator, outbox OutboxInserter, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, gen: gen, outbox: outbox, logger: logger}
}

// tenantIDFrom resolves the tenant: the gateway injects X-Tenant-Id from
// the verified token; public callers may pass an explicit tenantId param.
func tenantIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Tenant-Id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("tenantId"))
}

type availableSlotsResponse struct {
	Success  bool         `json:"success"`
	Date     string       `json:"date"`
	Timezone string       `json:"timezone"`
	Slots    []model.Slot `json:"slots"`
}

func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	fields := map[string]string{}

	tenantID := tenantIDFrom(r)
	if tenantID == "" {
		fields["tenantId"] = "tenant is required"
	}

	date, err := timeutil.ParseDate(q.Get("date"))
	if err != nil {
		fields["date"] = "date must be YYYY-MM-DD"
	}

	duration, err := strconv.Atoi(q.Get("serviceDurationMinutes"))
	if err != nil || duration < slots.MinDurationMinutes || duration > slots.MaxDurationMinutes {
		fields["serviceDurationMinutes"] = "must be an integer between 15 and 480"
	}

	buffer := 0
	if raw := q.Get("bufferMinutes"); raw != "" {
		buffer, err = strconv.Atoi(raw)
		if err != nil || buffer < 0 || buffer > slots.MaxBufferMinutes {
			fields["bufferMinutes"] = "must be an integer between 0 and 60"
		}
	}

	staffID := strings.TrimSpace(q.Get("staffId"))

	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	if staffID != "" {
		ok, err := h.repo.StaffExists(r.Context(), tenantID, staffID)
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

	day, err := h.gen.Resolve(r.Context(), slots.Request{
		TenantID:        tenantID,
		Date:            date,
		StaffID:         staffID,
		DurationMinutes: duration,
		BufferMinutes:   buffer,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			writeNotFound(w, "tenant not found")
			return
		}
		h.logger.Error("availability computation failed", "err", err, "tenant", tenantID, "date", date.String())
		writeInternal(w, "failed to compute availability")
		return
	}

	writeJSON(w, http.StatusOK, availableSlotsResponse{
		Success:  true,
		Date:     date.String(),
		Timezone: day.Timezone,
		Slots:    day.All(),
	})
}
