package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DesignCorporation/beauty-platform/libs/db"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/timeutil"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	var t model.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, timezone
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&t.ID, &t.Name, &t.Timezone)
	return t, err
}

func (r *Repository) StaffExists(ctx context.Context, tenantID, staffID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff
			WHERE tenant_id = $1 AND id = $2 AND is_active
		)
	`, tenantID, staffID).Scan(&exists)
	return exists, err
}

// SalonWorkingHour returns the salon-wide weekly rule for one weekday, or
// nil when none is configured.
func (r *Repository) SalonWorkingHour(ctx context.Context, tenantID string, weekday int) (*model.WorkingHourRule, error) {
	return r.workingHour(ctx, `
		SELECT tenant_id::text, weekday, start_minute, end_minute, is_working
		FROM working_hours
		WHERE tenant_id = $1 AND scope = 'SALON' AND weekday = $2
	`, tenantID, weekday)
}

func (r *Repository) StaffWorkingHour(ctx context.Context, tenantID, staffID string, weekday int) (*model.WorkingHourRule, error) {
	rule, err := r.workingHour(ctx, `
		SELECT tenant_id::text, weekday, start_minute, end_minute, is_working
		FROM working_hours
		WHERE tenant_id = $1 AND scope = 'STAFF' AND staff_id = $3 AND weekday = $2
	`, tenantID, weekday, staffID)
	if rule != nil {
		rule.Scope = model.ScopeStaff
		rule.StaffID = staffID
	}
	return rule, err
}

func (r *Repository) workingHour(ctx context.Context, query string, args ...any) (*model.WorkingHourRule, error) {
	var rule model.WorkingHourRule
	rule.Scope = model.ScopeSalon
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&rule.TenantID, &rule.Weekday, &rule.StartMinute, &rule.EndMinute, &rule.IsWorkingDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// SalonExceptions returns salon-scope exceptions whose inclusive range
// covers the given tenant-local date. Ranges are stored as DATE columns, so
// the comparison happens in civil-date space, not instant space.
func (r *Repository) SalonExceptions(ctx context.Context, tenantID string, day timeutil.Date) ([]model.ScheduleException, error) {
	return r.exceptions(ctx, `
		SELECT id::text, tenant_id::text, scope, COALESCE(staff_id::text, ''),
		       start_date, end_date, exception_type,
		       custom_start_minute, custom_end_minute, is_working
		FROM schedule_exceptions
		WHERE tenant_id = $1 AND scope = 'SALON'
		  AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at
	`, tenantID, day.String())
}

func (r *Repository) StaffExceptions(ctx context.Context, tenantID, staffID string, day timeutil.Date) ([]model.ScheduleException, error) {
	return r.exceptions(ctx, `
		SELECT id::text, tenant_id::text, scope, COALESCE(staff_id::text, ''),
		       start_date, end_date, exception_type,
		       custom_start_minute, custom_end_minute, is_working
		FROM schedule_exceptions
		WHERE tenant_id = $1 AND scope = 'STAFF' AND staff_id = $3
		  AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at
	`, tenantID, day.String(), staffID)
}

func (r *Repository) exceptions(ctx context.Context, query string, args ...any) ([]model.ScheduleException, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleException
	for rows.Next() {
		var exc model.ScheduleException
		if err := rows.Scan(
			&exc.ID, &exc.TenantID, &exc.Scope, &exc.StaffID,
			&exc.StartDate, &exc.EndDate, &exc.Type,
			&exc.CustomStartMinute, &exc.CustomEndMinute, &exc.IsWorkingDay,
		); err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BookingsBetween reads confirmed occupancy from the appointment ledger:
// anything still holding the staff member's time counts, cancelled and
// no-show rows do not.
func (r *Repository) BookingsBetween(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Booking, error) {
	query := `
		SELECT staff_id::text, start_at, end_at
		FROM appointments
		WHERE tenant_id = $1
		  AND status IN ('booked', 'needs_reschedule')
		  AND start_at < $3 AND end_at > $2
	`
	args := []any{tenantID, from, to}
	if staffID != "" {
		query += ` AND staff_id = $4`
		args = append(args, staffID)
	}
	query += ` ORDER BY start_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.StaffID, &b.StartAt, &b.EndAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) UpsertWorkingHour(ctx context.Context, rule model.WorkingHourRule) error {
	var staffID any
	if rule.StaffID != "" {
		staffID = rule.StaffID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO working_hours (tenant_id, scope, staff_id, weekday, start_minute, end_minute, is_working)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, scope, weekday, COALESCE(staff_id, '00000000-0000-0000-0000-000000000000'::uuid)) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			is_working = EXCLUDED.is_working,
			updated_at = now()
	`, rule.TenantID, rule.Scope, staffID, rule.Weekday, rule.StartMinute, rule.EndMinute, rule.IsWorkingDay)
	return err
}

func (r *Repository) ListWorkingHours(ctx context.Context, tenantID string, scope model.Scope, staffID string) ([]model.WorkingHourRule, error) {
	query := `
		SELECT tenant_id::text, scope, COALESCE(staff_id::text, ''), weekday, start_minute, end_minute, is_working
		FROM working_hours
		WHERE tenant_id = $1 AND scope = $2
	`
	args := []any{tenantID, scope}
	if staffID != "" {
		query += ` AND staff_id = $3`
		args = append(args, staffID)
	}
	query += ` ORDER BY weekday`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHourRule
	for rows.Next() {
		var rule model.WorkingHourRule
		if err := rows.Scan(&rule.TenantID, &rule.Scope, &rule.StaffID, &rule.Weekday, &rule.StartMinute, &rule.EndMinute, &rule.IsWorkingDay); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CreateException inserts the exception and its outbox event in one
// transaction so the consumer side never sees one without the other.
func (r *Repository) CreateException(ctx context.Context, exc model.ScheduleException, outboxInsert func(ctx context.Context, tx pgx.Tx, excID string) error) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	var staffID any
	if exc.StaffID != "" {
		staffID = exc.StaffID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO schedule_exceptions
			(id, tenant_id, scope, staff_id, start_date, end_date, exception_type,
			 custom_start_minute, custom_end_minute, is_working)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, exc.TenantID, exc.Scope, staffID,
		exc.StartDate, exc.EndDate, exc.Type,
		exc.CustomStartMinute, exc.CustomEndMinute, exc.IsWorkingDay)
	if err != nil {
		return "", err
	}

	if outboxInsert != nil {
		if err := outboxInsert(ctx, tx, id); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListExceptions(ctx context.Context, tenantID string, staffID string, limit int) ([]model.ScheduleException, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id::text, tenant_id::text, scope, COALESCE(staff_id::text, ''),
		       start_date, end_date, exception_type,
		       custom_start_minute, custom_end_minute, is_working
		FROM schedule_exceptions
		WHERE tenant_id = $1
		ORDER BY start_date DESC
		LIMIT $2
	`
	args := []any{tenantID, limit}
	if staffID != "" {
		query = `
			SELECT id::text, tenant_id::text, scope, COALESCE(staff_id::text, ''),
			       start_date, end_date, exception_type,
			       custom_start_minute, custom_end_minute, is_working
			FROM schedule_exceptions
			WHERE tenant_id = $1 AND scope = 'STAFF' AND staff_id = $3
			ORDER BY start_date DESC
			LIMIT $2
		`
		args = append(args, staffID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleException
	for rows.Next() {
		var exc model.ScheduleException
		if err := rows.Scan(
			&exc.ID, &exc.TenantID, &exc.Scope, &exc.StaffID,
			&exc.StartDate, &exc.EndDate, &exc.Type,
			&exc.CustomStartMinute, &exc.CustomEndMinute, &exc.IsWorkingDay,
		); err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// DeleteException removes the exception and records the deletion event in
// the same transaction. Returns the deleted row for event payload shaping.
func (r *Repository) DeleteException(ctx context.Context, tenantID, excID string, outboxInsert func(ctx context.Context, tx pgx.Tx, exc model.ScheduleException) error) (model.ScheduleException, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.ScheduleException{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exc model.ScheduleException
	err = tx.QueryRow(ctx, `
		DELETE FROM schedule_exceptions
		WHERE tenant_id = $1 AND id = $2
		RETURNING id::text, tenant_id::text, scope, COALESCE(staff_id::text, ''),
		          start_date, end_date, exception_type,
		          custom_start_minute, custom_end_minute, is_working
	`, tenantID, excID).Scan(
		&exc.ID, &exc.TenantID, &exc.Scope, &exc.StaffID,
		&exc.StartDate, &exc.EndDate, &exc.Type,
		&exc.CustomStartMinute, &exc.CustomEndMinute, &exc.IsWorkingDay,
	)
	if err != nil {
		return model.ScheduleException{}, err
	}

	if outboxInsert != nil {
		if err := outboxInsert(ctx, tx, exc); err != nil {
			return model.ScheduleException{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ScheduleException{}, err
	}
	return exc, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
