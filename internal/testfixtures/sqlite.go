package testfixtures

import (
	"context"
	"testing"

	"github.com/example/microwave-booking/internal/persistence/sqlite"
)

// SQLiteHarness bundles migrated repositories backed by an in-memory SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool         *sqlite.ConnectionPool
	Devices      *sqlite.DeviceRepository
	Reservations *sqlite.ReservationRepository
	Users        *sqlite.UserRepository
	Sessions     *sqlite.SessionRepository
}

// NewSQLiteHarness opens an in-memory database, applies migrations, and
// registers cleanup with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	pool, err := sqlite.NewConnectionPool(":memory:")
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() {
		_ = pool.Close()
	})

	if err := pool.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate database: %v", err)
	}

	return &SQLiteHarness{
		Pool:         pool,
		Devices:      sqlite.NewDeviceRepository(pool),
		Reservations: sqlite.NewReservationRepository(pool),
		Users:        sqlite.NewUserRepository(pool),
		Sessions:     sqlite.NewSessionRepository(pool),
	}
}
