package persistence

import (
	"context"
	"time"

	"github.com/example/microwave-booking/internal/booking"
)

// DeviceRepository exposes CRUD operations for the device inventory.
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device Device) error
	// UpdateDevice rewrites the editable attributes of a device. Status and
	// current user are owned by SetDeviceStatus and the reservation
	// operations.
	UpdateDevice(ctx context.Context, device Device) error
	// SetDeviceStatus moves a device between available and maintenance.
	// Returns ErrConflict when the device is occupied and ErrNotFound when
	// it does not exist.
	SetDeviceStatus(ctx context.Context, id string, status booking.DeviceStatus, updatedAt time.Time) error
	GetDevice(ctx context.Context, id string) (Device, error)
	// ListDevices returns devices in insertion order.
	ListDevices(ctx context.Context) ([]Device, error)
	DeleteDevice(ctx context.Context, id string) error
}

// ReservationRepository stores the reservation ledger and keeps the owning
// device's derived status consistent with it. The mutating operations are
// atomic: a reader never observes a reservation without its device-side
// mirror, or vice versa.
type ReservationRepository interface {
	// ReserveDevice inserts an active reservation and flips its device to
	// occupied in one transaction. Returns ErrConflict when the device
	// already carries an active reservation and ErrConstraintViolation when
	// the device is not in the available state.
	ReserveDevice(ctx context.Context, reservation Reservation) error
	// ReleaseDevice moves an active reservation to the given terminal status
	// and returns its device to available in one transaction. Returns
	// ErrConstraintViolation for a non-terminal target status and ErrNotFound
	// when the reservation is missing or no longer active.
	ReleaseDevice(ctx context.Context, reservationID string, status booking.ReservationStatus, releasedAt time.Time) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// GetActiveReservationForDevice returns the single active reservation for
	// a device, or ErrNotFound.
	GetActiveReservationForDevice(ctx context.Context, deviceID string) (Reservation, error)
	// ListReservationsForUser returns all reservations for a user, any
	// status, in insertion order.
	ListReservationsForUser(ctx context.Context, userID string) ([]Reservation, error)
	// ListActiveReservationsEndingBefore returns active reservations whose
	// end time is at or before the reference instant.
	ListActiveReservationsEndingBefore(ctx context.Context, reference time.Time) ([]Reservation, error)
	// ListReservations returns the full ledger in insertion order.
	ListReservations(ctx context.Context) ([]Reservation, error)
}

// UserRepository exposes CRUD operations for user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
