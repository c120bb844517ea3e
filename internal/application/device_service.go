package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

// DeviceRepository captures the persistence operations needed by the service.
// UpdateDevice rewrites the editable attributes only; SetDeviceStatus owns
// the available/maintenance flip and fails on an occupied device.
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device Device) error
	GetDevice(ctx context.Context, id string) (Device, error)
	UpdateDevice(ctx context.Context, device Device) error
	SetDeviceStatus(ctx context.Context, id string, status booking.DeviceStatus, updatedAt time.Time) error
	DeleteDevice(ctx context.Context, id string) error
	ListDevices(ctx context.Context) ([]Device, error)
}

// ReservationReader exposes the ledger reads needed for fleet statistics.
type ReservationReader interface {
	ListReservations(ctx context.Context) ([]Reservation, error)
}

// DeviceService orchestrates validation, authorization, and persistence for devices.
type DeviceService struct {
	devices     DeviceRepository
	ledger      ReservationReader
	stats       *statsCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDeviceService constructs a device service with the provided dependencies.
func NewDeviceService(devices DeviceRepository, ledger ReservationReader, idGenerator func() string, now func() time.Time) *DeviceService {
	return NewDeviceServiceWithLogger(devices, ledger, idGenerator, now, nil)
}

// NewDeviceServiceWithLogger constructs a device service with a specified logger.
func NewDeviceServiceWithLogger(devices DeviceRepository, ledger ReservationReader, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DeviceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DeviceService{
		devices:     devices,
		ledger:      ledger,
		stats:       newStatsCache(5*time.Second, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *DeviceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DeviceService", operation, attrs...)
}

// RegisterDevice validates input and persists a new device for administrators.
func (s *DeviceService) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (device Device, err error) {
	if s == nil {
		err = fmt.Errorf("DeviceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegisterDevice",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register device", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("device_id", device.ID).InfoContext(ctx, "device registered")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	input := normalizeDeviceInput(params.Input)
	vErr := validateDeviceInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	device = Device{
		ID:                 s.idGenerator(),
		Name:               input.Name,
		Location:           input.Location,
		PowerWatts:         input.PowerWatts,
		MaxDurationMinutes: input.MaxDurationMinutes,
		Status:             booking.DeviceAvailable,
		CreatedAt:          s.now(),
	}
	device.UpdatedAt = device.CreatedAt

	if s.devices == nil {
		return
	}

	if err = s.devices.CreateDevice(ctx, device); err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	s.stats.Invalidate()
	return
}

// UpdateDevice validates input and updates an existing device for administrators.
func (s *DeviceService) UpdateDevice(ctx context.Context, params UpdateDeviceParams) (device Device, err error) {
	if s == nil {
		err = fmt.Errorf("DeviceService is nil")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.devices == nil {
		err = fmt.Errorf("device repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateDevice",
		"principal_id", params.Principal.UserID,
		"device_id", params.DeviceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update device", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "device updated")
	}()

	var existing Device
	existing, err = s.devices.GetDevice(ctx, params.DeviceID)
	if err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	input := normalizeDeviceInput(params.Input)
	vErr := validateDeviceInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.Location = input.Location
	updated.PowerWatts = input.PowerWatts
	updated.MaxDurationMinutes = input.MaxDurationMinutes
	updated.UpdatedAt = s.now()

	if err = s.devices.UpdateDevice(ctx, updated); err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	device = updated
	return
}

// RemoveDevice deletes a device when requested by an administrator. A device
// carrying an active reservation cannot be removed.
func (s *DeviceService) RemoveDevice(ctx context.Context, principal Principal, deviceID string) error {
	if s == nil {
		return fmt.Errorf("DeviceService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.devices == nil {
		return fmt.Errorf("device repository not configured")
	}

	logger := s.loggerWith(ctx, "RemoveDevice",
		"principal_id", principal.UserID,
		"device_id", deviceID,
	)

	if err := s.devices.DeleteDevice(ctx, deviceID); err != nil {
		err = mapDeviceRepoError(err)
		logger.ErrorContext(ctx, "failed to remove device", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.stats.Invalidate()
	logger.InfoContext(ctx, "device removed")
	return nil
}

// GetDevice returns a single device for any authenticated user.
func (s *DeviceService) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	if s == nil {
		return Device{}, fmt.Errorf("DeviceService is nil")
	}
	if s.devices == nil {
		return Device{}, ErrNotFound
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return Device{}, mapDeviceRepoError(err)
	}
	return device, nil
}

// ListDevices returns the fleet in registration order for any authenticated user.
func (s *DeviceService) ListDevices(ctx context.Context, principal Principal) (devices []Device, err error) {
	if s == nil {
		err = fmt.Errorf("DeviceService is nil")
		return
	}
	if s.devices == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListDevices",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list devices", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(devices)).InfoContext(ctx, "devices listed")
	}()

	var raw []Device
	raw, err = s.devices.ListDevices(ctx)
	if err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	devices = make([]Device, len(raw))
	copy(devices, raw)
	return
}

// SetMaintenance toggles maintenance mode for administrators. Enabling requires
// an available device; an occupied device must be released first. Disabling
// returns the device to available. Both directions are idempotent.
func (s *DeviceService) SetMaintenance(ctx context.Context, params SetMaintenanceParams) (device Device, err error) {
	if s == nil {
		err = fmt.Errorf("DeviceService is nil")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.devices == nil {
		err = fmt.Errorf("device repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetMaintenance",
		"principal_id", params.Principal.UserID,
		"device_id", params.DeviceID,
		"enabled", params.Enabled,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set maintenance", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(device.Status)).InfoContext(ctx, "maintenance updated")
	}()

	var existing Device
	existing, err = s.devices.GetDevice(ctx, params.DeviceID)
	if err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	target := booking.DeviceAvailable
	if params.Enabled {
		target = booking.DeviceMaintenance
	}

	if existing.Status == target {
		device = existing
		return
	}
	if existing.Status == booking.DeviceOccupied {
		err = ErrConflict
		return
	}

	updated := existing
	updated.Status = target
	updated.UpdatedAt = s.now()

	if err = s.devices.SetDeviceStatus(ctx, updated.ID, target, updated.UpdatedAt); err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	s.stats.Invalidate()
	device = updated
	return
}

// FleetStats aggregates dashboard counters. Results are cached for a few
// seconds; mutating operations invalidate the cache.
func (s *DeviceService) FleetStats(ctx context.Context) (stats FleetStats, err error) {
	if s == nil {
		err = fmt.Errorf("DeviceService is nil")
		return
	}

	if cached, ok := s.stats.Get(); ok {
		return cached, nil
	}

	logger := s.loggerWith(ctx, "FleetStats")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute fleet stats", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if s.devices != nil {
		var devices []Device
		devices, err = s.devices.ListDevices(ctx)
		if err != nil {
			err = mapDeviceRepoError(err)
			return
		}
		stats.TotalDevices = len(devices)
		for _, device := range devices {
			switch device.Status {
			case booking.DeviceAvailable:
				stats.AvailableDevices++
			case booking.DeviceOccupied:
				stats.OccupiedDevices++
			case booking.DeviceMaintenance:
				stats.MaintenanceDevices++
			}
		}
	}

	if s.ledger != nil {
		var reservations []Reservation
		reservations, err = s.ledger.ListReservations(ctx)
		if err != nil {
			err = mapReservationRepoError(err)
			return
		}
		now := s.now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		for _, reservation := range reservations {
			switch reservation.Status {
			case booking.ReservationActive:
				stats.ActiveReservations++
			case booking.ReservationCompleted:
				if !reservation.UpdatedAt.Before(midnight) {
					stats.CompletedToday++
				}
			}
		}
	}

	s.stats.Store(stats)
	return
}

func normalizeDeviceInput(input DeviceInput) DeviceInput {
	out := DeviceInput{
		Name:               strings.TrimSpace(input.Name),
		Location:           strings.TrimSpace(input.Location),
		PowerWatts:         input.PowerWatts,
		MaxDurationMinutes: input.MaxDurationMinutes,
	}
	if out.PowerWatts == 0 {
		out.PowerWatts = booking.DefaultPowerWatts
	}
	if out.MaxDurationMinutes == 0 {
		out.MaxDurationMinutes = booking.DefaultMaxDurationMinutes
	}
	return out
}

func validateDeviceInput(input DeviceInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Location == "" {
		vErr.add("location", "location is required")
	}
	if !booking.ValidPowerWatts(input.PowerWatts) {
		vErr.add("power_watts", fmt.Sprintf("power must be between %d and %d watts", booking.MinPowerWatts, booking.MaxPowerWatts))
	}
	if !booking.ValidMaxDuration(input.MaxDurationMinutes) {
		vErr.add("max_duration_minutes", fmt.Sprintf("maximum duration must be between %d and %d minutes", booking.MinDurationMinutes, booking.MaxDurationMinutes))
	}

	return vErr
}

func mapDeviceRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("device", "device attributes violate storage constraints")
		return vErr
	}
	return err
}
