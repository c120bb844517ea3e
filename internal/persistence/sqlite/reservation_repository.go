package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository on
// SQLite. The two mutating operations run inside one transaction each so the
// ledger and the device inventory stay mutually consistent.
type ReservationRepository struct {
	pool *ConnectionPool
}

// NewReservationRepository creates a SQLite-backed reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

const reservationColumns = "id, device_id, user_id, user_name, start_time, end_time, duration_minutes, purpose, status, created_at, updated_at"

// ReserveDevice inserts an active reservation and flips its device to
// occupied in one transaction. The conditional device update is the
// check-then-act guard; the partial unique index on active reservations is
// the backstop should another writer sneak in between.
func (r *ReservationRepository) ReserveDevice(ctx context.Context, reservation persistence.Reservation) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE devices
			SET status = 'occupied', current_user_name = ?, updated_at = ?
			WHERE id = ? AND status = 'available'
		`, reservation.UserName, formatTime(reservation.CreatedAt), reservation.DeviceID)
		if err != nil {
			return mapSQLiteError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
		}
		if affected == 0 {
			var status string
			err := tx.QueryRow("SELECT status FROM devices WHERE id = ?", reservation.DeviceID).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrForeignKeyViolation
			}
			if err != nil {
				return mapSQLiteError(err)
			}
			if booking.DeviceStatus(status) == booking.DeviceOccupied {
				return persistence.ErrConflict
			}
			return persistence.ErrConstraintViolation
		}

		_, err = tx.Exec(`
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'active', ?, ?)
		`,
			reservation.ID,
			reservation.DeviceID,
			reservation.UserID,
			reservation.UserName,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			reservation.DurationMinutes,
			reservation.Purpose,
			formatTime(reservation.CreatedAt),
			formatTime(reservation.UpdatedAt),
		)
		return mapSQLiteError(err)
	})
}

// ReleaseDevice moves an active reservation to a terminal status and returns
// its device to available in one transaction.
func (r *ReservationRepository) ReleaseDevice(ctx context.Context, reservationID string, status booking.ReservationStatus, releasedAt time.Time) error {
	if !booking.CanTransition(booking.ReservationActive, status) {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var deviceID string
		err := tx.QueryRow(
			"SELECT device_id FROM reservations WHERE id = ? AND status = 'active'", reservationID,
		).Scan(&deviceID)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return mapSQLiteError(err)
		}

		if _, err := tx.Exec(
			"UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?",
			string(status), formatTime(releasedAt), reservationID,
		); err != nil {
			return mapSQLiteError(err)
		}

		_, err = tx.Exec(
			"UPDATE devices SET status = 'available', current_user_name = NULL, updated_at = ? WHERE id = ?",
			formatTime(releasedAt), deviceID,
		)
		return mapSQLiteError(err)
	})
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM reservations WHERE id = ?"
	return r.queryOne(ctx, query, id)
}

// GetActiveReservationForDevice returns the active reservation for a device.
func (r *ReservationRepository) GetActiveReservationForDevice(ctx context.Context, deviceID string) (persistence.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM reservations WHERE device_id = ? AND status = 'active'"
	return r.queryOne(ctx, query, deviceID)
}

// ListReservationsForUser returns all of a user's reservations in insertion order.
func (r *ReservationRepository) ListReservationsForUser(ctx context.Context, userID string) ([]persistence.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM reservations WHERE user_id = ? ORDER BY rowid ASC"
	return r.queryMany(ctx, query, userID)
}

// ListActiveReservationsEndingBefore returns active reservations due for expiry.
func (r *ReservationRepository) ListActiveReservationsEndingBefore(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM reservations WHERE status = 'active' AND end_time <= ? ORDER BY rowid ASC"
	return r.queryMany(ctx, query, formatTime(reference))
}

// ListReservations returns the full ledger in insertion order.
func (r *ReservationRepository) ListReservations(ctx context.Context) ([]persistence.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM reservations ORDER BY rowid ASC"
	return r.queryMany(ctx, query)
}

func (r *ReservationRepository) queryOne(ctx context.Context, query string, args ...any) (persistence.Reservation, error) {
	reservation, err := scanReservation(r.pool.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, mapSQLiteError(err)
	}
	return reservation, nil
}

func (r *ReservationRepository) queryMany(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, mapSQLiteError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var status string
	var start, end, createdAt, updatedAt string

	if err := row.Scan(
		&reservation.ID,
		&reservation.DeviceID,
		&reservation.UserID,
		&reservation.UserName,
		&start,
		&end,
		&reservation.DurationMinutes,
		&reservation.Purpose,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Reservation{}, err
	}

	reservation.Status = booking.ReservationStatus(status)

	var err error
	if reservation.Start, err = parseTime(start); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse start_time: %w", err)
	}
	if reservation.End, err = parseTime(end); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse end_time: %w", err)
	}
	if reservation.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if reservation.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return reservation, nil
}
