package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "agendly/internal/availability/errors"
	"agendly/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStaffAvailabilityRepository struct {
	pool *pgxpool.Pool
}

func NewPgStaffAvailabilityRepository(pool *pgxpool.Pool) StaffAvailabilityRepository {
	return &pgStaffAvailabilityRepository{pool: pool}
}

const availabilityColumns = `tenant_id, staff_id, day_of_week, work_start, work_end,
	COALESCE(break_start, ''), COALESCE(break_end, ''), is_available, updated_at`

func scanAvailability(row pgx.Row) (*model.StaffAvailability, error) {
	var (
		window model.StaffAvailability
		day    int16
	)
	err := row.Scan(
		&window.TenantID,
		&window.StaffID,
		&day,
		&window.WorkStart,
		&window.WorkEnd,
		&window.BreakStart,
		&window.BreakEnd,
		&window.IsAvailable,
		&window.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	window.DayOfWeek = time.Weekday(day)
	return &window, nil
}

func (r *pgStaffAvailabilityRepository) FindByStaffAndDay(ctx context.Context, tenantID, staffID string, day time.Weekday) (*model.StaffAvailability, error) {
	query := `SELECT ` + availabilityColumns + `
		FROM staff_availability
		WHERE tenant_id = $1 AND staff_id = $2 AND day_of_week = $3`

	window, err := scanAvailability(r.pool.QueryRow(ctx, query, tenantID, staffID, int16(day)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find staff availability: %w", err)
	}
	return window, nil
}

func (r *pgStaffAvailabilityRepository) FindByStaff(ctx context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error) {
	query := `SELECT ` + availabilityColumns + `
		FROM staff_availability
		WHERE tenant_id = $1 AND staff_id = $2
		ORDER BY day_of_week`

	rows, err := r.pool.Query(ctx, query, tenantID, staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff availability: %w", err)
	}
	defer rows.Close()

	var windows []*model.StaffAvailability
	for rows.Next() {
		window, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff availability: %w", err)
		}
		windows = append(windows, window)
	}
	return windows, rows.Err()
}

func (r *pgStaffAvailabilityRepository) Upsert(ctx context.Context, window *model.StaffAvailability) error {
	query := `
		INSERT INTO staff_availability
			(tenant_id, staff_id, day_of_week, work_start, work_end, break_start, break_end, is_available, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (tenant_id, staff_id, day_of_week) DO UPDATE SET
			work_start = EXCLUDED.work_start,
			work_end = EXCLUDED.work_end,
			break_start = EXCLUDED.break_start,
			break_end = EXCLUDED.break_end,
			is_available = EXCLUDED.is_available,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		window.TenantID,
		window.StaffID,
		int16(window.DayOfWeek),
		window.WorkStart,
		window.WorkEnd,
		window.BreakStart,
		window.BreakEnd,
		window.IsAvailable,
		window.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert staff availability: %w", err)
	}
	return nil
}
