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

// DeviceRepository implements persistence.DeviceRepository on SQLite.
type DeviceRepository struct {
	pool *ConnectionPool
}

// NewDeviceRepository creates a SQLite-backed device repository.
func NewDeviceRepository(pool *ConnectionPool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

const deviceColumns = "id, name, location, power_watts, max_duration_minutes, status, current_user_name, created_at, updated_at"

// CreateDevice inserts a new device.
func (r *DeviceRepository) CreateDevice(ctx context.Context, device persistence.Device) error {
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		device.Location,
		device.PowerWatts,
		device.MaxDurationMinutes,
		string(device.Status),
		device.CurrentUserName,
		formatTime(device.CreatedAt),
		formatTime(device.UpdatedAt),
	)
	return mapSQLiteError(err)
}

// UpdateDevice updates the editable attributes of a device. Status and
// current user are owned by the reservation operations and left untouched.
func (r *DeviceRepository) UpdateDevice(ctx context.Context, device persistence.Device) error {
	query := `
		UPDATE devices
		SET name = ?, location = ?, power_watts = ?, max_duration_minutes = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.pool.db.ExecContext(ctx, query,
		device.Name,
		device.Location,
		device.PowerWatts,
		device.MaxDurationMinutes,
		formatTime(device.UpdatedAt),
		device.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// SetDeviceStatus moves a device between available and maintenance. The
// conditional update refuses to touch an occupied device; the follow-up read
// distinguishes that case from a missing row.
func (r *DeviceRepository) SetDeviceStatus(ctx context.Context, id string, status booking.DeviceStatus, updatedAt time.Time) error {
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE devices
		SET status = ?, updated_at = ?
		WHERE id = ? AND status != 'occupied'
	`, string(status), formatTime(updatedAt), id)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var current string
		err := r.pool.db.QueryRowContext(ctx, "SELECT status FROM devices WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return mapSQLiteError(err)
		}
		return persistence.ErrConflict
	}
	return nil
}

// GetDevice retrieves a device by ID.
func (r *DeviceRepository) GetDevice(ctx context.Context, id string) (persistence.Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices WHERE id = ?"
	device, err := scanDevice(r.pool.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Device{}, persistence.ErrNotFound
		}
		return persistence.Device{}, mapSQLiteError(err)
	}
	return device, nil
}

// ListDevices returns all devices in insertion order.
func (r *DeviceRepository) ListDevices(ctx context.Context) ([]persistence.Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices ORDER BY rowid ASC"
	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var devices []persistence.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, mapSQLiteError(err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return devices, nil
}

// DeleteDevice removes a device. Devices carrying an active reservation
// cannot be removed; the reservation has to be cancelled first.
func (r *DeviceRepository) DeleteDevice(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRow(
			"SELECT COUNT(*) FROM reservations WHERE device_id = ? AND status = 'active'", id,
		).Scan(&active)
		if err != nil {
			return mapSQLiteError(err)
		}
		if active > 0 {
			return persistence.ErrConflict
		}

		result, err := tx.Exec("DELETE FROM devices WHERE id = ?", id)
		if err != nil {
			return mapSQLiteError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (persistence.Device, error) {
	var device persistence.Device
	var status string
	var currentUser sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&device.ID,
		&device.Name,
		&device.Location,
		&device.PowerWatts,
		&device.MaxDurationMinutes,
		&status,
		&currentUser,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Device{}, err
	}

	device.Status = booking.DeviceStatus(status)
	if currentUser.Valid {
		name := currentUser.String
		device.CurrentUserName = &name
	}

	var err error
	if device.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Device{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if device.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Device{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return device, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
