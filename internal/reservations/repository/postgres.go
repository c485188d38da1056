package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationerrors "agendly/internal/reservations/errors"
	"agendly/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation    = "23P01"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	maxSerializableAttempts = 3
)

type pgReservationRepository struct {
	pool *pgxpool.Pool
}

// NewPgReservationRepository relies on the reservations table's exclusion
// constraints for per-staff and per-location overlap, and on SERIALIZABLE
// transactions for the tenant wide check.
func NewPgReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &pgReservationRepository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reservationColumns = `id, tenant_id, start_at, end_at, status,
	COALESCE(staff_id, ''), COALESCE(location_id, ''), COALESCE(service_id, ''),
	COALESCE(customer_name, ''), COALESCE(customer_phone, ''), COALESCE(notes, ''),
	created_at, updated_at`

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID,
		&r.TenantID,
		&r.StartAt,
		&r.EndAt,
		&r.Status,
		&r.StaffID,
		&r.LocationID,
		&r.ServiceID,
		&r.CustomerName,
		&r.CustomerPhone,
		&r.Notes,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartAt, r.EndAt = r.StartAt.UTC(), r.EndAt.UTC()
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return &r, nil
}

func activeStatusStrings() []string {
	statuses := make([]string, 0, len(model.ActiveStatuses))
	for _, s := range model.ActiveStatuses {
		statuses = append(statuses, string(s))
	}
	return statuses
}

func findOverlapping(ctx context.Context, q querier, query model.ConflictQuery) ([]*model.Reservation, error) {
	sql := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE tenant_id = $1
		  AND status = ANY($2)
		  AND start_at < $4
		  AND end_at > $3
		  AND ($5 = '' OR id <> $5)
		  AND (cardinality($6::text[]) = 0 OR staff_id = ANY($6) OR location_id = ANY($6))
		ORDER BY start_at`

	resourceIDs := query.ResourceIDs
	if resourceIDs == nil {
		resourceIDs = []string{}
	}

	rows, err := q.Query(ctx, sql,
		query.TenantID,
		activeStatusStrings(),
		query.StartAt,
		query.EndAt,
		query.ExcludeReservationID,
		resourceIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (r *pgReservationRepository) FindOverlapping(ctx context.Context, q model.ConflictQuery) ([]*model.Reservation, error) {
	return findOverlapping(ctx, r.pool, q)
}

func (r *pgReservationRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	sql := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 AND tenant_id = $2`

	reservation, err := scanReservation(r.pool.QueryRow(ctx, sql, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return reservation, nil
}

// inSerializable runs fn in a SERIALIZABLE transaction, retrying
// serialization failures. A failure that survives every attempt is reported
// as a time conflict.
func (r *pgReservationRepository) inSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxSerializableAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if !isRetryable(err) {
			return mapPgError(err)
		}
	}
	return fmt.Errorf("%w: gave up after %d serialization failures: %v", reservationerrors.ErrTimeConflict, maxSerializableAttempts, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return fmt.Errorf("%w: %s", reservationerrors.ErrTimeConflict, pgErr.ConstraintName)
	}
	return err
}

func checkInTx(ctx context.Context, tx pgx.Tx, q model.ConflictQuery) error {
	existing, err := findOverlapping(ctx, tx, q)
	if err != nil {
		return err
	}
	if conflicts := model.CollectConflicts(q, existing); len(conflicts) > 0 {
		return &reservationerrors.ConflictError{Conflicts: conflicts}
	}
	return nil
}

func (r *pgReservationRepository) CreateIfNoConflict(ctx context.Context, reservation *model.Reservation, q model.ConflictQuery) error {
	return r.inSerializable(ctx, func(tx pgx.Tx) error {
		if err := checkInTx(ctx, tx, q); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO reservations
				(id, tenant_id, start_at, end_at, status, staff_id, location_id, service_id,
				 customer_name, customer_phone, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
				NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, $13)`,
			reservation.ID,
			reservation.TenantID,
			reservation.StartAt,
			reservation.EndAt,
			string(reservation.Status),
			reservation.StaffID,
			reservation.LocationID,
			reservation.ServiceID,
			reservation.CustomerName,
			reservation.CustomerPhone,
			reservation.Notes,
			reservation.CreatedAt,
			reservation.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	})
}

func (r *pgReservationRepository) UpdateWindowIfNoConflict(ctx context.Context, tenantID, id string, window model.TimeWindow, updatedAt time.Time, q model.ConflictQuery) (*model.Reservation, error) {
	var updated *model.Reservation
	err := r.inSerializable(ctx, func(tx pgx.Tx) error {
		if err := checkInTx(ctx, tx, q); err != nil {
			return err
		}

		sql := `UPDATE reservations
			SET start_at = $3, end_at = $4, updated_at = $5
			WHERE id = $1 AND tenant_id = $2 AND status = ANY($6)
			RETURNING ` + reservationColumns

		var err error
		updated, err = scanReservation(tx.QueryRow(ctx, sql, id, tenantID, window.StartAt, window.EndAt, updatedAt, activeStatusStrings()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reservationerrors.ErrNotFound
			}
			return fmt.Errorf("failed to reschedule reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *pgReservationRepository) UpdateStatus(ctx context.Context, tenantID, id string, status model.ReservationStatus, updatedAt time.Time) (*model.Reservation, error) {
	sql := `UPDATE reservations
		SET status = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2 AND status = ANY($5)
		RETURNING ` + reservationColumns

	updated, err := scanReservation(r.pool.QueryRow(ctx, sql, id, tenantID, string(status), updatedAt, activeStatusStrings()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}
	return updated, nil
}
