package testfixtures

import (
	"time"

	"github.com/example/microwave-booking/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// NewServiceFactory constructs a ServiceFactory with a reference-time clock
// and a generic identifier sequence.
func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
}

// NewDeviceService builds a device service wired to the factory clock and
// identifier sequence.
func (f *ServiceFactory) NewDeviceService(devices application.DeviceRepository, ledger application.ReservationReader) *application.DeviceService {
	return application.NewDeviceService(devices, ledger, f.IDGenerator.NextFunc(), f.Clock.NowFunc())
}

// NewReservationService builds a reservation service wired to the factory
// clock and identifier sequence.
func (f *ServiceFactory) NewReservationService(reservations application.ReservationRepository, devices application.DeviceRepository) *application.ReservationService {
	return application.NewReservationService(reservations, devices, f.IDGenerator.NextFunc(), f.Clock.NowFunc())
}

// NewUserService builds a user service wired to the factory clock and
// identifier sequence.
func (f *ServiceFactory) NewUserService(users application.UserRepository) *application.UserService {
	return application.NewUserService(users, f.IDGenerator.NextFunc(), f.Clock.NowFunc())
}

// NewAuthService builds an auth service with a deterministic token sequence
// and the supplied session lifetime.
func (f *ServiceFactory) NewAuthService(credentials application.CredentialStore, sessions application.SessionRepository, ttl time.Duration) *application.AuthService {
	return application.NewAuthService(credentials, sessions, nil, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), ttl)
}
