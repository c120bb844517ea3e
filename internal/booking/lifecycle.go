package booking

import "time"

// DeviceStatus describes the availability state of a microwave device.
type DeviceStatus string

const (
	// DeviceAvailable indicates the device can accept a new reservation.
	DeviceAvailable DeviceStatus = "available"
	// DeviceOccupied indicates the device carries an active reservation.
	DeviceOccupied DeviceStatus = "occupied"
	// DeviceMaintenance indicates an administrative hold that blocks reservations.
	DeviceMaintenance DeviceStatus = "maintenance"
)

// ValidDeviceStatus reports whether the value is one of the known device states.
func ValidDeviceStatus(status DeviceStatus) bool {
	switch status {
	case DeviceAvailable, DeviceOccupied, DeviceMaintenance:
		return true
	}
	return false
}

// ReservationStatus describes the lifecycle state of a reservation.
type ReservationStatus string

const (
	// ReservationActive is the sole non-terminal reservation state.
	ReservationActive ReservationStatus = "active"
	// ReservationCancelled records a user or administrator initiated release.
	ReservationCancelled ReservationStatus = "cancelled"
	// ReservationCompleted records a time-based expiry.
	ReservationCompleted ReservationStatus = "completed"
)

// ValidReservationStatus reports whether the value is one of the known reservation states.
func ValidReservationStatus(status ReservationStatus) bool {
	switch status {
	case ReservationActive, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationCompleted
}

// CanTransition reports whether a reservation may move from one status to
// another. Only active reservations transition, and only to a terminal state.
func CanTransition(from, to ReservationStatus) bool {
	if from != ReservationActive {
		return false
	}
	return to == ReservationCancelled || to == ReservationCompleted
}

// Device attribute ranges enforced at registration and update time.
const (
	MinPowerWatts = 100
	MaxPowerWatts = 2000

	MinDurationMinutes = 1
	MaxDurationMinutes = 60
)

// Defaults applied when registration or reservation input omits the field.
const (
	DefaultPowerWatts         = 1000
	DefaultMaxDurationMinutes = 30
	DefaultDurationMinutes    = 5
)

// DefaultPurpose is recorded when a reservation request omits a purpose.
const DefaultPurpose = "Heating food"

// ValidPowerWatts reports whether the wattage lies in the accepted range.
func ValidPowerWatts(watts int) bool {
	return watts >= MinPowerWatts && watts <= MaxPowerWatts
}

// ValidMaxDuration reports whether a device duration limit lies in the accepted range.
func ValidMaxDuration(minutes int) bool {
	return minutes >= MinDurationMinutes && minutes <= MaxDurationMinutes
}

// ValidDuration reports whether a requested duration fits the device limit.
func ValidDuration(minutes, deviceMax int) bool {
	return minutes >= MinDurationMinutes && minutes <= deviceMax
}

// Window is the half-open time interval claimed by a reservation.
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeWindow derives the reservation window from the requested start and
// duration. A zero or past start is clamped to now rather than rejected.
func ComputeWindow(start time.Time, durationMinutes int, now time.Time) Window {
	if start.IsZero() || start.Before(now) {
		start = now
	}
	return Window{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// Expired reports whether the window has ended at the reference time.
func (w Window) Expired(now time.Time) bool {
	return !w.End.After(now)
}

// Overlaps reports whether two windows share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}
