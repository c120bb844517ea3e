package application

import (
	"time"

	"github.com/example/microwave-booking/internal/booking"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	DisplayName string
	IsAdmin     bool
}

// DeviceInput captures caller provided device fields.
type DeviceInput struct {
	Name               string
	Location           string
	PowerWatts         int
	MaxDurationMinutes int
}

// Device represents a registered microwave exposed by the application services.
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

// RegisterDeviceParams wraps the data required to register a device.
type RegisterDeviceParams struct {
	Principal Principal
	Input     DeviceInput
}

// UpdateDeviceParams wraps the data required to update a device.
type UpdateDeviceParams struct {
	Principal Principal
	DeviceID  string
	Input     DeviceInput
}

// SetMaintenanceParams wraps the data required to toggle maintenance mode.
type SetMaintenanceParams struct {
	Principal Principal
	DeviceID  string
	Enabled   bool
}

// FleetStats aggregates the dashboard counters for the device fleet.
type FleetStats struct {
	TotalDevices       int
	AvailableDevices   int
	OccupiedDevices    int
	MaintenanceDevices int
	ActiveReservations int
	CompletedToday     int
}

// ReserveInput captures caller provided reservation fields.
type ReserveInput struct {
	Start           time.Time
	DurationMinutes int
	Purpose         string
}

// Reservation represents a ledger entry binding a user to a device for a window.
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

// ReserveParams wraps the data required to reserve a device.
type ReserveParams struct {
	Principal Principal
	DeviceID  string
	Input     ReserveInput
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
	Disabled    bool
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user. An empty Password
// leaves the stored hash untouched.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
