// Package memory provides a mutex-guarded in-memory implementation of the
// persistence repositories. It backs the test suite and ephemeral runs where
// durability is not needed; the SQLite implementation is the production path.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

// Storage holds every repository's state behind a single lock so that the
// reservation operations can mutate the ledger and the device inventory as
// one unit.
type Storage struct {
	mu           sync.RWMutex
	devices      map[string]persistence.Device
	reservations map[string]persistence.Reservation
	users        map[string]persistence.User
	sessions     map[string]persistence.Session
	seq          uint64
	inserted     map[string]uint64
}

// NewStorage returns an empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		devices:      make(map[string]persistence.Device),
		reservations: make(map[string]persistence.Reservation),
		users:        make(map[string]persistence.User),
		sessions:     make(map[string]persistence.Session),
		inserted:     make(map[string]uint64),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) nextSeqLocked(key string) {
	s.seq++
	s.inserted[key] = s.seq
}

// --- DeviceRepository implementation ---

// CreateDevice stores a new device.
func (s *Storage) CreateDevice(ctx context.Context, device persistence.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[device.ID]; ok {
		return persistence.ErrDuplicate
	}
	if !booking.ValidPowerWatts(device.PowerWatts) || !booking.ValidMaxDuration(device.MaxDurationMinutes) {
		return persistence.ErrConstraintViolation
	}

	s.devices[device.ID] = cloneDevice(device)
	s.nextSeqLocked("device:" + device.ID)
	return nil
}

// UpdateDevice replaces an existing device record.
func (s *Storage) UpdateDevice(ctx context.Context, device persistence.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[device.ID]; !ok {
		return persistence.ErrNotFound
	}
	if !booking.ValidPowerWatts(device.PowerWatts) || !booking.ValidMaxDuration(device.MaxDurationMinutes) {
		return persistence.ErrConstraintViolation
	}

	s.devices[device.ID] = cloneDevice(device)
	return nil
}

// SetDeviceStatus moves a device between available and maintenance. Occupied
// devices are owned by the reservation operations and refuse the write.
func (s *Storage) SetDeviceStatus(ctx context.Context, id string, status booking.DeviceStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if !booking.ValidDeviceStatus(status) {
		return persistence.ErrConstraintViolation
	}
	if device.Status == booking.DeviceOccupied {
		return persistence.ErrConflict
	}

	device.Status = status
	device.UpdatedAt = updatedAt
	s.devices[id] = device
	return nil
}

// GetDevice retrieves a device by ID.
func (s *Storage) GetDevice(ctx context.Context, id string) (persistence.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, ok := s.devices[id]
	if !ok {
		return persistence.Device{}, persistence.ErrNotFound
	}
	return cloneDevice(device), nil
}

// ListDevices returns all devices in insertion order.
func (s *Storage) ListDevices(ctx context.Context) ([]persistence.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]persistence.Device, 0, len(s.devices))
	for _, device := range s.devices {
		devices = append(devices, cloneDevice(device))
	}
	sort.Slice(devices, func(i, j int) bool {
		return s.inserted["device:"+devices[i].ID] < s.inserted["device:"+devices[j].ID]
	})
	return devices, nil
}

// DeleteDevice removes a device. Fails with ErrConflict while an active
// reservation references it.
func (s *Storage) DeleteDevice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, reservation := range s.reservations {
		if reservation.DeviceID == id && reservation.Status == booking.ReservationActive {
			return persistence.ErrConflict
		}
	}

	for rid, reservation := range s.reservations {
		if reservation.DeviceID == id {
			delete(s.reservations, rid)
			delete(s.inserted, "reservation:"+rid)
		}
	}
	delete(s.devices, id)
	return nil
}

// --- ReservationRepository implementation ---

// ReserveDevice inserts an active reservation and marks its device occupied
// as a single unit.
func (s *Storage) ReserveDevice(ctx context.Context, reservation persistence.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[reservation.ID]; ok {
		return persistence.ErrDuplicate
	}
	device, ok := s.devices[reservation.DeviceID]
	if !ok {
		return persistence.ErrForeignKeyViolation
	}
	for _, existing := range s.reservations {
		if existing.DeviceID == reservation.DeviceID && existing.Status == booking.ReservationActive {
			return persistence.ErrConflict
		}
	}
	if device.Status != booking.DeviceAvailable {
		return persistence.ErrConstraintViolation
	}

	reservation.Status = booking.ReservationActive
	s.reservations[reservation.ID] = cloneReservation(reservation)
	s.nextSeqLocked("reservation:" + reservation.ID)

	userName := reservation.UserName
	device.Status = booking.DeviceOccupied
	device.CurrentUserName = &userName
	device.UpdatedAt = reservation.CreatedAt
	s.devices[device.ID] = device
	return nil
}

// ReleaseDevice moves an active reservation to a terminal status and returns
// its device to available as a single unit.
func (s *Storage) ReleaseDevice(ctx context.Context, reservationID string, status booking.ReservationStatus, releasedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !booking.CanTransition(booking.ReservationActive, status) {
		return persistence.ErrConstraintViolation
	}

	reservation, ok := s.reservations[reservationID]
	if !ok || reservation.Status != booking.ReservationActive {
		return persistence.ErrNotFound
	}

	reservation.Status = status
	reservation.UpdatedAt = releasedAt
	s.reservations[reservationID] = reservation

	if device, ok := s.devices[reservation.DeviceID]; ok {
		device.Status = booking.DeviceAvailable
		device.CurrentUserName = nil
		device.UpdatedAt = releasedAt
		s.devices[device.ID] = device
	}
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// GetActiveReservationForDevice returns the active reservation for a device.
func (s *Storage) GetActiveReservationForDevice(ctx context.Context, deviceID string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, reservation := range s.reservations {
		if reservation.DeviceID == deviceID && reservation.Status == booking.ReservationActive {
			return cloneReservation(reservation), nil
		}
	}
	return persistence.Reservation{}, persistence.ErrNotFound
}

// ListReservationsForUser returns all reservations for a user in insertion order.
func (s *Storage) ListReservationsForUser(ctx context.Context, userID string) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if reservation.UserID == userID {
			reservations = append(reservations, cloneReservation(reservation))
		}
	}
	s.sortByInsertionLocked(reservations)
	return reservations, nil
}

// ListActiveReservationsEndingBefore returns active reservations whose end
// time is at or before the reference instant.
func (s *Storage) ListActiveReservationsEndingBefore(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if reservation.Status != booking.ReservationActive {
			continue
		}
		if reservation.End.After(reference) {
			continue
		}
		reservations = append(reservations, cloneReservation(reservation))
	}
	s.sortByInsertionLocked(reservations)
	return reservations, nil
}

// ListReservations returns the full ledger in insertion order.
func (s *Storage) ListReservations(ctx context.Context) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]persistence.Reservation, 0, len(s.reservations))
	for _, reservation := range s.reservations {
		reservations = append(reservations, cloneReservation(reservation))
	}
	s.sortByInsertionLocked(reservations)
	return reservations, nil
}

func (s *Storage) sortByInsertionLocked(reservations []persistence.Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		return s.inserted["reservation:"+reservations[i].ID] < s.inserted["reservation:"+reservations[j].ID]
	})
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if s.emailTakenLocked(user.ID, user.Email) {
		return persistence.ErrDuplicate
	}

	s.users[user.ID] = user
	s.nextSeqLocked("user:" + user.ID)
	return nil
}

// UpdateUser replaces an existing user record.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if s.emailTakenLocked(user.ID, user.Email) {
		return persistence.ErrDuplicate
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users in insertion order.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return s.inserted["user:"+users[i].ID] < s.inserted["user:"+users[j].ID]
	})
	return users, nil
}

// DeleteUser removes a user by ID.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Storage) emailTakenLocked(id, email string) bool {
	lower := strings.ToLower(email)
	for existingID, user := range s.users {
		if existingID == id {
			continue
		}
		if strings.ToLower(user.Email) == lower {
			return true
		}
	}
	return false
}

// --- SessionRepository implementation ---

// CreateSession stores a new session keyed by token.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession replaces a session, re-keying when the token rotated.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, existing := range s.sessions {
		if existing.ID == session.ID {
			delete(s.sessions, token)
			s.sessions[session.Token] = cloneSession(session)
			return cloneSession(session), nil
		}
	}
	return persistence.Session{}, persistence.ErrNotFound
}

// RevokeSession marks a session revoked.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions prunes sessions past their expiry.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// --- Helpers ---

func cloneDevice(device persistence.Device) persistence.Device {
	if device.CurrentUserName != nil {
		name := *device.CurrentUserName
		device.CurrentUserName = &name
	}
	return device
}

func cloneReservation(reservation persistence.Reservation) persistence.Reservation {
	return reservation
}

func cloneSession(session persistence.Session) persistence.Session {
	if session.RevokedAt != nil {
		revoked := *session.RevokedAt
		session.RevokedAt = &revoked
	}
	return session
}
