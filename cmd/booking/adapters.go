package main

import (
	"context"
	"time"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/persistence"
)

// The adapters translate between the application service models and the
// persistence models so neither layer imports the other's types directly.

type deviceRepositoryAdapter struct {
	repo persistence.DeviceRepository
}

func newDeviceRepositoryAdapter(repo persistence.DeviceRepository) *deviceRepositoryAdapter {
	return &deviceRepositoryAdapter{repo: repo}
}

func (a *deviceRepositoryAdapter) CreateDevice(ctx context.Context, device application.Device) error {
	return a.repo.CreateDevice(ctx, toPersistenceDevice(device))
}

func (a *deviceRepositoryAdapter) GetDevice(ctx context.Context, id string) (application.Device, error) {
	stored, err := a.repo.GetDevice(ctx, id)
	if err != nil {
		return application.Device{}, err
	}
	return toApplicationDevice(stored), nil
}

func (a *deviceRepositoryAdapter) UpdateDevice(ctx context.Context, device application.Device) error {
	return a.repo.UpdateDevice(ctx, toPersistenceDevice(device))
}

func (a *deviceRepositoryAdapter) SetDeviceStatus(ctx context.Context, id string, status booking.DeviceStatus, updatedAt time.Time) error {
	return a.repo.SetDeviceStatus(ctx, id, status, updatedAt)
}

func (a *deviceRepositoryAdapter) DeleteDevice(ctx context.Context, id string) error {
	return a.repo.DeleteDevice(ctx, id)
}

func (a *deviceRepositoryAdapter) ListDevices(ctx context.Context) ([]application.Device, error) {
	models, err := a.repo.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	devices := make([]application.Device, 0, len(models))
	for _, model := range models {
		devices = append(devices, toApplicationDevice(model))
	}
	return devices, nil
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) ReserveDevice(ctx context.Context, reservation application.Reservation) error {
	return a.repo.ReserveDevice(ctx, toPersistenceReservation(reservation))
}

func (a *reservationRepositoryAdapter) ReleaseDevice(ctx context.Context, reservationID string, status booking.ReservationStatus, releasedAt time.Time) error {
	return a.repo.ReleaseDevice(ctx, reservationID, status, releasedAt)
}

func (a *reservationRepositoryAdapter) GetActiveReservationForDevice(ctx context.Context, deviceID string) (application.Reservation, error) {
	stored, err := a.repo.GetActiveReservationForDevice(ctx, deviceID)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservationsForUser(ctx context.Context, userID string) ([]application.Reservation, error) {
	models, err := a.repo.ListReservationsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) ListActiveReservationsEndingBefore(ctx context.Context, reference time.Time) ([]application.Reservation, error) {
	models, err := a.repo.ListActiveReservationsEndingBefore(ctx, reference)
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context) ([]application.Reservation, error) {
	models, err := a.repo.ListReservations(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func toApplicationReservations(models []persistence.Reservation) []application.Reservation {
	if len(models) == 0 {
		return nil
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, credentials application.UserCredentials) error {
	user := credentials.User
	return a.repo.CreateUser(ctx, persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: credentials.PasswordHash,
		IsAdmin:      user.IsAdmin,
		Disabled:     credentials.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) error {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	return a.repo.UpdateUser(ctx, persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: current.PasswordHash,
		IsAdmin:      user.IsAdmin,
		Disabled:     user.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (a *userRepositoryAdapter) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	current, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	current.PasswordHash = passwordHash
	return a.repo.UpdateUser(ctx, current)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}
