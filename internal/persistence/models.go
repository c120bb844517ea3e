package persistence

import (
	"time"

	"github.com/example/microwave-booking/internal/booking"
)

// Device represents a bookable microwave in the fleet inventory.
type Device struct {
	ID                 string
	Name               string
	Location           string
	PowerWatts         int
	MaxDurationMinutes int
	Status             booking.DeviceStatus
	CurrentUserName    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reservation represents a time-bounded exclusive claim on a device.
type Reservation struct {
	ID              string
	DeviceID        string
	UserID          string
	UserName        string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	Purpose         string
	Status          booking.ReservationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// User represents an employee account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
