package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

// ReservationRepository captures the ledger operations needed by the service.
// ReserveDevice and ReleaseDevice are atomic: the reservation row and the
// device status flip together or not at all.
type ReservationRepository interface {
	ReserveDevice(ctx context.Context, reservation Reservation) error
	ReleaseDevice(ctx context.Context, reservationID string, status booking.ReservationStatus, releasedAt time.Time) error
	GetActiveReservationForDevice(ctx context.Context, deviceID string) (Reservation, error)
	ListReservationsForUser(ctx context.Context, userID string) ([]Reservation, error)
	ListActiveReservationsEndingBefore(ctx context.Context, reference time.Time) ([]Reservation, error)
	ListReservations(ctx context.Context) ([]Reservation, error)
}

// ReservationService orchestrates the reserve, cancel, and expire flows. All
// check-then-act sequences on one device run under that device's lock, so two
// concurrent requests cannot both observe it as available.
type ReservationService struct {
	reservations ReservationRepository
	devices      DeviceRepository
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReservationService constructs a reservation service with the provided dependencies.
func NewReservationService(reservations ReservationRepository, devices DeviceRepository, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, devices, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, devices DeviceRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		devices:      devices,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
		locks:        make(map[string]*sync.Mutex),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

func (s *ReservationService) deviceLock(deviceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[deviceID] = lock
	}
	return lock
}

// Reserve claims a device for the acting principal. The device must be
// available and the requested duration must fit its limit.
func (s *ReservationService) Reserve(ctx context.Context, params ReserveParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil || s.devices == nil {
		err = fmt.Errorf("reservation service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Reserve",
		"principal_id", params.Principal.UserID,
		"device_id", params.DeviceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reserve device", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"reservation_id", reservation.ID,
			"ends_at", reservation.End,
		).InfoContext(ctx, "device reserved")
	}()

	lock := s.deviceLock(params.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	var device Device
	device, err = s.devices.GetDevice(ctx, params.DeviceID)
	if err != nil {
		err = mapDeviceRepoError(err)
		return
	}

	switch device.Status {
	case booking.DeviceOccupied, booking.DeviceMaintenance:
		err = ErrInvalidState
		return
	}

	input := params.Input
	input.Purpose = strings.TrimSpace(input.Purpose)
	if input.Purpose == "" {
		input.Purpose = booking.DefaultPurpose
	}

	vErr := &ValidationError{}
	if !booking.ValidDuration(input.DurationMinutes, device.MaxDurationMinutes) {
		vErr.add("duration_minutes", fmt.Sprintf("duration must be between %d and %d minutes", booking.MinDurationMinutes, device.MaxDurationMinutes))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	window := booking.ComputeWindow(input.Start, input.DurationMinutes, now)

	reservation = Reservation{
		ID:              s.idGenerator(),
		DeviceID:        device.ID,
		UserID:          params.Principal.UserID,
		UserName:        params.Principal.DisplayName,
		Start:           window.Start,
		End:             window.End,
		DurationMinutes: input.DurationMinutes,
		Purpose:         input.Purpose,
		Status:          booking.ReservationActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err = s.reservations.ReserveDevice(ctx, reservation); err != nil {
		err = mapReservationRepoError(err)
		reservation = Reservation{}
		return
	}

	return
}

// Cancel releases the active reservation on a device. Only the reservation
// holder or an administrator may cancel.
func (s *ReservationService) Cancel(ctx context.Context, principal Principal, deviceID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"principal_id", principal.UserID,
		"device_id", deviceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation cancelled")
	}()

	lock := s.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	var active Reservation
	active, err = s.reservations.GetActiveReservationForDevice(ctx, deviceID)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	if active.UserID != principal.UserID && !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	if err = s.reservations.ReleaseDevice(ctx, active.ID, booking.ReservationCancelled, now); err != nil {
		err = mapReservationRepoError(err)
		return
	}

	reservation = active
	reservation.Status = booking.ReservationCancelled
	reservation.UpdatedAt = now
	return
}

// Expire completes every active reservation whose window has ended at the
// reference time and returns the number released. It is idempotent; a
// reservation released by a concurrent caller is skipped, not an error.
func (s *ReservationService) Expire(ctx context.Context, reference time.Time) (expired int, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		return 0, nil
	}

	if reference.IsZero() {
		reference = s.now()
	}

	logger := s.loggerWith(ctx, "Expire", "reference", reference)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "expiry sweep failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if expired > 0 {
			logger.With("expired_count", expired).InfoContext(ctx, "reservations expired")
		}
	}()

	var due []Reservation
	due, err = s.reservations.ListActiveReservationsEndingBefore(ctx, reference)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	for _, reservation := range due {
		lock := s.deviceLock(reservation.DeviceID)
		lock.Lock()
		releaseErr := s.reservations.ReleaseDevice(ctx, reservation.ID, booking.ReservationCompleted, reference)
		lock.Unlock()

		if releaseErr != nil {
			if errors.Is(releaseErr, persistence.ErrNotFound) {
				continue
			}
			err = mapReservationRepoError(releaseErr)
			return
		}
		expired++
	}

	return
}

// ListForUser returns a user's reservation history in creation order. An empty
// userID means the principal's own history; reading another user's history
// requires an administrator.
func (s *ReservationService) ListForUser(ctx context.Context, principal Principal, userID string) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return nil, nil
	}

	if userID == "" {
		userID = principal.UserID
	}
	if userID != principal.UserID && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	reservations, err := s.reservations.ListReservationsForUser(ctx, userID)
	if err != nil {
		return nil, mapReservationRepoError(err)
	}

	out := make([]Reservation, len(reservations))
	copy(out, reservations)
	return out, nil
}

// ListAll returns the full reservation ledger in insertion order. Only
// administrators may read the ledger across users.
func (s *ReservationService) ListAll(ctx context.Context, principal Principal) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	if s.reservations == nil {
		return nil, nil
	}

	reservations, err := s.reservations.ListReservations(ctx)
	if err != nil {
		return nil, mapReservationRepoError(err)
	}
	return reservations, nil
}

// ActiveForDevice returns the active reservation on a device, if any.
func (s *ReservationService) ActiveForDevice(ctx context.Context, deviceID string) (Reservation, error) {
	if s == nil {
		return Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return Reservation{}, ErrNotFound
	}

	reservation, err := s.reservations.GetActiveReservationForDevice(ctx, deviceID)
	if err != nil {
		return Reservation{}, mapReservationRepoError(err)
	}
	return reservation, nil
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrConstraintViolation):
		return ErrInvalidState
	}
	return err
}
