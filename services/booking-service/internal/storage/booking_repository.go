package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DesignCorporation/beauty-platform/libs/db"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type IdempotencyRecord struct {
	TenantID        string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// LockIdempotencyKey takes a row lock on the key, inserting it first if
// this is the first request. The second return value reports whether the
// key already existed.
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, tenantID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, tenantID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (tenant_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, tenantID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, tenantID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, tenantID, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key, appointmentID, statusCode, response)
	return err
}

// HasOverlap re-checks occupancy inside the caller's transaction, locking
// the overlapping rows so a concurrent create cannot slip between the check
// and the insert.
func (r *BookingRepository) HasOverlap(ctx context.Context, tx pgx.Tx, tenantID, staffID string, start, end time.Time) (bool, error) {
	rows, err := tx.Query(ctx, `
		SELECT id
		FROM appointments
		WHERE tenant_id = $1
			AND staff_id = $2
			AND status IN ('booked', 'needs_reschedule')
			AND start_at < $4
			AND end_at > $3
		FOR UPDATE
	`, tenantID, staffID, start, end)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	overlap := rows.Next()
	if rows.Err() != nil {
		return false, rows.Err()
	}
	return overlap, nil
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(tenant_id, service_id, staff_id, client_name, client_email, client_phone, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text
	`, appt.TenantID, appt.ServiceID, appt.StaffID, appt.ClientName, appt.ClientEmail, appt.ClientPhone,
		appt.StartAt, appt.EndAt, appt.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, tenantID, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	err := tx.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, service_id::text, staff_id::text, client_name, client_email, client_phone,
			start_at, end_at, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM appointments
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`, appointmentID, tenantID).Scan(
		&appt.ID,
		&appt.TenantID,
		&appt.ServiceID,
		&appt.StaffID,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.StartAt,
		&appt.EndAt,
		&appt.Status,
		&appt.CancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *BookingRepository) CancelAppointment(ctx context.Context, tx pgx.Tx, tenantID, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND tenant_id = $2
		RETURNING cancelled_at
	`, appointmentID, tenantID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) ListByTenant(ctx context.Context, tenantID string, staffID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id::text, tenant_id::text, service_id::text, staff_id::text, client_name, client_email, client_phone,
			start_at, end_at, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM appointments
		WHERE tenant_id = $1
		ORDER BY start_at DESC
		LIMIT $2
	`
	args := []any{tenantID, limit}
	if staffID != "" {
		query = `
			SELECT id::text, tenant_id::text, service_id::text, staff_id::text, client_name, client_email, client_phone,
				start_at, end_at, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
			FROM appointments
			WHERE tenant_id = $1 AND staff_id = $3
			ORDER BY start_at DESC
			LIMIT $2
		`
		args = append(args, staffID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.TenantID,
			&appt.ServiceID,
			&appt.StaffID,
			&appt.ClientName,
			&appt.ClientEmail,
			&appt.ClientPhone,
			&appt.StartAt,
			&appt.EndAt,
			&appt.Status,
			&appt.CancelledAt,
			&appt.CancelReason,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// FlagNeedsReschedule marks active appointments that collide with a new
// schedule closure. Returns the affected appointment ids so the caller can
// emit follow-up events.
func (r *BookingRepository) FlagNeedsReschedule(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]string, error) {
	query := `
		UPDATE appointments
		SET status = 'needs_reschedule'
		WHERE tenant_id = $1
			AND status = 'booked'
			AND start_at < $3
			AND end_at > $2
		RETURNING id::text
	`
	args := []any{tenantID, from, to}
	if staffID != "" {
		query = `
			UPDATE appointments
			SET status = 'needs_reschedule'
			WHERE tenant_id = $1
				AND staff_id = $4
				AND status = 'booked'
				AND start_at < $3
				AND end_at > $2
			RETURNING id::text
		`
		args = append(args, staffID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, tenantID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT tenant_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, tenantID, key).Scan(
		&rec.TenantID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
