package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

var (
	deviceCounter      uint64
	reservationCounter uint64
	userCounter        uint64
	sessionCounter     uint64
)

// ---------------------------- Device fixtures ----------------------------

// DeviceOption configures a generated device fixture.
type DeviceOption func(*persistence.Device)

// NewDeviceFixture returns a deterministic available device with optional
// overrides.
func NewDeviceFixture(opts ...DeviceOption) persistence.Device {
	idx := atomic.AddUint64(&deviceCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	device := persistence.Device{
		ID:                 fmt.Sprintf("device-%03d", idx),
		Name:               fmt.Sprintf("Microwave %03d", idx),
		Location:           "Kitchen",
		PowerWatts:         booking.DefaultPowerWatts,
		MaxDurationMinutes: booking.DefaultMaxDurationMinutes,
		Status:             booking.DeviceAvailable,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	for _, opt := range opts {
		opt(&device)
	}
	return device
}

// WithDeviceID overrides the generated device ID.
func WithDeviceID(id string) DeviceOption {
	return func(d *persistence.Device) {
		d.ID = id
	}
}

// WithDeviceStatus overrides the generated device status.
func WithDeviceStatus(status booking.DeviceStatus) DeviceOption {
	return func(d *persistence.Device) {
		d.Status = status
	}
}

// WithDeviceLocation overrides the generated location.
func WithDeviceLocation(location string) DeviceOption {
	return func(d *persistence.Device) {
		d.Location = location
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationOption configures a generated reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservationFixture returns a deterministic active reservation with
// optional overrides. The window starts at the fixture creation time.
func NewReservationFixture(opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Minute)
	reservation := persistence.Reservation{
		ID:              fmt.Sprintf("reservation-%03d", idx),
		DeviceID:        "device-001",
		UserID:          "user-001",
		UserName:        "User 001",
		Start:           start,
		End:             start.Add(time.Duration(booking.DefaultDurationMinutes) * time.Minute),
		DurationMinutes: booking.DefaultDurationMinutes,
		Purpose:         booking.DefaultPurpose,
		Status:          booking.ReservationActive,
		CreatedAt:       start,
		UpdatedAt:       start,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(r *persistence.Reservation) {
		r.ID = id
	}
}

// ForDevice binds the reservation to the supplied device.
func ForDevice(deviceID string) ReservationOption {
	return func(r *persistence.Reservation) {
		r.DeviceID = deviceID
	}
}

// ForUser binds the reservation to the supplied user.
func ForUser(userID, userName string) ReservationOption {
	return func(r *persistence.Reservation) {
		r.UserID = userID
		r.UserName = userName
	}
}

// WithWindow overrides the reservation window.
func WithWindow(start time.Time, durationMinutes int) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Start = start
		r.DurationMinutes = durationMinutes
		r.End = start.Add(time.Duration(durationMinutes) * time.Minute)
	}
}

// WithReservationStatus overrides the generated reservation status.
func WithReservationStatus(status booking.ReservationStatus) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Status = status
	}
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user fixture.
type UserOption func(*persistence.User)

// NewUserFixture returns a deterministic user record with optional overrides.
func NewUserFixture(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserAccountID overrides the generated user ID.
func WithUserAccountID(id string) UserOption {
	return func(u *persistence.User) {
		u.ID = id
	}
}

// WithEmail overrides the generated email address.
func WithEmail(email string) UserOption {
	return func(u *persistence.User) {
		u.Email = email
	}
}

// AsAdmin marks the fixture as an administrator.
func AsAdmin() UserOption {
	return func(u *persistence.User) {
		u.IsAdmin = true
	}
}

// AsDisabled marks the fixture account as disabled.
func AsDisabled() UserOption {
	return func(u *persistence.User) {
		u.Disabled = true
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionOption configures a generated session fixture.
type SessionOption func(*persistence.Session)

// NewSessionFixture returns a deterministic session that expires a day after
// the reference time.
func NewSessionFixture(opts ...SessionOption) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	session := persistence.Session{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// WithSessionUser binds the session to the supplied user.
func WithSessionUser(userID string) SessionOption {
	return func(s *persistence.Session) {
		s.UserID = userID
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(s *persistence.Session) {
		s.Token = token
	}
}

// ExpiredAt forces the session to expire at the given instant.
func ExpiredAt(expiresAt time.Time) SessionOption {
	return func(s *persistence.Session) {
		s.ExpiresAt = expiresAt
	}
}
