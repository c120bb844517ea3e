package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	counter := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return prefix + "-" + string(rune('0'+counter))
	}
}

// stubLedger is a minimal in-memory ReservationRepository mirroring the
// exclusivity rules of the real storage.
type stubLedger struct {
	mu           sync.Mutex
	devices      map[string]Device
	reservations map[string]Reservation
	order        []string
}

func newStubLedger(devices ...Device) *stubLedger {
	ledger := &stubLedger{
		devices:      make(map[string]Device),
		reservations: make(map[string]Reservation),
	}
	for _, device := range devices {
		ledger.devices[device.ID] = device
	}
	return ledger
}

func (l *stubLedger) CreateDevice(ctx context.Context, device Device) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.devices[device.ID] = device
	return nil
}

func (l *stubLedger) GetDevice(ctx context.Context, id string) (Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	device, ok := l.devices[id]
	if !ok {
		return Device{}, persistence.ErrNotFound
	}
	return device, nil
}

func (l *stubLedger) UpdateDevice(ctx context.Context, device Device) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.devices[device.ID]; !ok {
		return persistence.ErrNotFound
	}
	l.devices[device.ID] = device
	return nil
}

func (l *stubLedger) SetDeviceStatus(ctx context.Context, id string, status booking.DeviceStatus, updatedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	device, ok := l.devices[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if device.Status == booking.DeviceOccupied {
		return persistence.ErrConflict
	}
	device.Status = status
	device.UpdatedAt = updatedAt
	l.devices[id] = device
	return nil
}

func (l *stubLedger) DeleteDevice(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.devices[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, reservation := range l.reservations {
		if reservation.DeviceID == id && reservation.Status == booking.ReservationActive {
			return persistence.ErrConflict
		}
	}
	delete(l.devices, id)
	return nil
}

func (l *stubLedger) ListDevices(ctx context.Context) ([]Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Device, 0, len(l.devices))
	for _, device := range l.devices {
		out = append(out, device)
	}
	return out, nil
}

func (l *stubLedger) ReserveDevice(ctx context.Context, reservation Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	device, ok := l.devices[reservation.DeviceID]
	if !ok {
		return persistence.ErrForeignKeyViolation
	}
	for _, existing := range l.reservations {
		if existing.DeviceID == reservation.DeviceID && existing.Status == booking.ReservationActive {
			return persistence.ErrConflict
		}
	}
	if device.Status != booking.DeviceAvailable {
		return persistence.ErrConstraintViolation
	}

	device.Status = booking.DeviceOccupied
	name := reservation.UserName
	device.CurrentUserName = &name
	l.devices[reservation.DeviceID] = device

	l.reservations[reservation.ID] = reservation
	l.order = append(l.order, reservation.ID)
	return nil
}

func (l *stubLedger) ReleaseDevice(ctx context.Context, reservationID string, status booking.ReservationStatus, releasedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	reservation, ok := l.reservations[reservationID]
	if !ok || reservation.Status != booking.ReservationActive {
		return persistence.ErrNotFound
	}

	reservation.Status = status
	reservation.UpdatedAt = releasedAt
	l.reservations[reservationID] = reservation

	device := l.devices[reservation.DeviceID]
	device.Status = booking.DeviceAvailable
	device.CurrentUserName = nil
	l.devices[reservation.DeviceID] = device
	return nil
}

func (l *stubLedger) GetActiveReservationForDevice(ctx context.Context, deviceID string) (Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, reservation := range l.reservations {
		if reservation.DeviceID == deviceID && reservation.Status == booking.ReservationActive {
			return reservation, nil
		}
	}
	return Reservation{}, persistence.ErrNotFound
}

func (l *stubLedger) ListReservationsForUser(ctx context.Context, userID string) ([]Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Reservation
	for _, id := range l.order {
		if l.reservations[id].UserID == userID {
			out = append(out, l.reservations[id])
		}
	}
	return out, nil
}

func (l *stubLedger) ListActiveReservationsEndingBefore(ctx context.Context, reference time.Time) ([]Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Reservation
	for _, id := range l.order {
		reservation := l.reservations[id]
		if reservation.Status == booking.ReservationActive && !reservation.End.After(reference) {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (l *stubLedger) ListReservations(ctx context.Context) ([]Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Reservation, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.reservations[id])
	}
	return out, nil
}

func availableDevice(id string) Device {
	return Device{
		ID:                 id,
		Name:               "Kitchen Microwave",
		Location:           "Floor 2",
		PowerWatts:         1000,
		MaxDurationMinutes: 30,
		Status:             booking.DeviceAvailable,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
}

func TestReserveAppliesDefaults(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	reservation, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1", DisplayName: "Alice"},
		DeviceID:  "d1",
		Input:     ReserveInput{DurationMinutes: booking.DefaultDurationMinutes},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if reservation.Purpose != booking.DefaultPurpose {
		t.Errorf("purpose = %q, want %q", reservation.Purpose, booking.DefaultPurpose)
	}
	if !reservation.Start.Equal(testNow) {
		t.Errorf("start = %v, want %v", reservation.Start, testNow)
	}
	want := testNow.Add(time.Duration(booking.DefaultDurationMinutes) * time.Minute)
	if !reservation.End.Equal(want) {
		t.Errorf("end = %v, want %v", reservation.End, want)
	}
	if reservation.UserName != "Alice" {
		t.Errorf("user name = %q, want Alice", reservation.UserName)
	}

	device, _ := ledger.GetDevice(context.Background(), "d1")
	if device.Status != booking.DeviceOccupied {
		t.Errorf("device status = %s, want occupied", device.Status)
	}
}

func TestReserveRejectsZeroDuration(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	_, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1"},
		DeviceID:  "d1",
		Input:     ReserveInput{DurationMinutes: 0},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, ok := vErr.FieldErrors["duration_minutes"]; !ok {
		t.Errorf("expected duration_minutes field error, got %v", vErr.FieldErrors)
	}

	device, _ := ledger.GetDevice(context.Background(), "d1")
	if device.Status != booking.DeviceAvailable {
		t.Errorf("device status = %s, want still available", device.Status)
	}
}

func TestReserveRejectsBusyAndMaintenanceDevices(t *testing.T) {
	busy := availableDevice("busy")
	busy.Status = booking.DeviceOccupied
	maintenance := availableDevice("maintenance")
	maintenance.Status = booking.DeviceMaintenance

	ledger := newStubLedger(busy, maintenance)
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1"},
		DeviceID:  "busy",
	}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("occupied device: err = %v, want ErrInvalidState", err)
	}

	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1"},
		DeviceID:  "maintenance",
	}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("maintenance device: err = %v, want ErrInvalidState", err)
	}

	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1"},
		DeviceID:  "ghost",
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown device: err = %v, want ErrNotFound", err)
	}
}

func TestReserveValidatesDurationAgainstDeviceLimit(t *testing.T) {
	device := availableDevice("d1")
	device.MaxDurationMinutes = 10

	ledger := newStubLedger(device)
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	_, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1"},
		DeviceID:  "d1",
		Input:     ReserveInput{DurationMinutes: 11},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, ok := vErr.FieldErrors["duration_minutes"]; !ok {
		t.Errorf("expected duration_minutes field error, got %v", vErr.FieldErrors)
	}
}

func TestReserveClampsPastStart(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	reservation, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1"},
		DeviceID:  "d1",
		Input:     ReserveInput{Start: testNow.Add(-time.Hour), DurationMinutes: 10},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !reservation.Start.Equal(testNow) {
		t.Errorf("start = %v, want clamped to %v", reservation.Start, testNow)
	}
	if !reservation.End.Equal(testNow.Add(10 * time.Minute)) {
		t.Errorf("end = %v, want %v", reservation.End, testNow.Add(10*time.Minute))
	}
}

func TestReserveConcurrentRequestsYieldOneWinner(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	const attempts = 8
	results := make(chan error, attempts)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func(n int) {
			start.Wait()
			_, err := service.Reserve(context.Background(), ReserveParams{
				Principal: Principal{UserID: "u1", DisplayName: "Racer"},
				DeviceID:  "d1",
				Input:     ReserveInput{DurationMinutes: 5},
			})
			results <- err
		}(i)
	}
	start.Done()

	var successes, rejected int
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInvalidState):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if rejected != attempts-1 {
		t.Errorf("rejected = %d, want %d", rejected, attempts-1)
	}
}

func TestCancelAuthorization(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	owner := Principal{UserID: "u1", DisplayName: "Alice"}
	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: owner, DeviceID: "d1", Input: ReserveInput{DurationMinutes: 5},
	}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := service.Cancel(context.Background(), Principal{UserID: "u2"}, "d1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("other user: err = %v, want ErrUnauthorized", err)
	}

	reservation, err := service.Cancel(context.Background(), owner, "d1")
	if err != nil {
		t.Fatalf("owner Cancel: %v", err)
	}
	if reservation.Status != booking.ReservationCancelled {
		t.Errorf("status = %s, want cancelled", reservation.Status)
	}

	device, _ := ledger.GetDevice(context.Background(), "d1")
	if device.Status != booking.DeviceAvailable {
		t.Errorf("device status = %s, want available after cancel", device.Status)
	}

	if _, err := service.Cancel(context.Background(), owner, "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("repeat cancel: err = %v, want ErrNotFound", err)
	}
}

func TestCancelByAdministrator(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: "u1", DisplayName: "Alice"},
		DeviceID:  "d1",
		Input:     ReserveInput{DurationMinutes: 5},
	}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := service.Cancel(context.Background(), Principal{UserID: "admin", IsAdmin: true}, "d1"); err != nil {
		t.Fatalf("admin Cancel: %v", err)
	}
}

func TestExpireReleasesDueReservations(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"), availableDevice("d2"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	principal := Principal{UserID: "u1", DisplayName: "Alice"}
	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: principal, DeviceID: "d1", Input: ReserveInput{DurationMinutes: 5},
	}); err != nil {
		t.Fatalf("Reserve d1: %v", err)
	}
	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: principal, DeviceID: "d2", Input: ReserveInput{DurationMinutes: 30},
	}); err != nil {
		t.Fatalf("Reserve d2: %v", err)
	}

	// One millisecond past the shorter window's end.
	reference := testNow.Add(5*time.Minute + time.Millisecond)

	expired, err := service.Expire(context.Background(), reference)
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	device, _ := ledger.GetDevice(context.Background(), "d1")
	if device.Status != booking.DeviceAvailable {
		t.Errorf("d1 status = %s, want available", device.Status)
	}
	longRunning, _ := ledger.GetDevice(context.Background(), "d2")
	if longRunning.Status != booking.DeviceOccupied {
		t.Errorf("d2 status = %s, want still occupied", longRunning.Status)
	}

	history, err := service.ListForUser(context.Background(), principal, "")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if history[0].Status != booking.ReservationCompleted {
		t.Errorf("expired reservation status = %s, want completed", history[0].Status)
	}

	again, err := service.Expire(context.Background(), reference)
	if err != nil {
		t.Fatalf("second Expire: %v", err)
	}
	if again != 0 {
		t.Errorf("second sweep expired = %d, want 0", again)
	}
}

func TestListForUserAuthorization(t *testing.T) {
	ledger := newStubLedger(availableDevice("d1"))
	service := NewReservationService(ledger, ledger, sequenceIDs("r"), fixedNow)

	owner := Principal{UserID: "u1", DisplayName: "Alice"}
	if _, err := service.Reserve(context.Background(), ReserveParams{
		Principal: owner, DeviceID: "d1", Input: ReserveInput{DurationMinutes: 5},
	}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := service.ListForUser(context.Background(), Principal{UserID: "u2"}, "u1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-admin foreign history: err = %v, want ErrUnauthorized", err)
	}

	history, err := service.ListForUser(context.Background(), Principal{UserID: "admin", IsAdmin: true}, "u1")
	if err != nil {
		t.Fatalf("admin ListForUser: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}
