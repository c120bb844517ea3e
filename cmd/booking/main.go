package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/config"
	"github.com/example/microwave-booking/internal/expiry"
	httptransport "github.com/example/microwave-booking/internal/http"
	"github.com/example/microwave-booking/internal/logging"
	"github.com/example/microwave-booking/internal/metrics"
	"github.com/example/microwave-booking/internal/persistence"
	"github.com/example/microwave-booking/internal/persistence/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	metrics.Init(pool.DB(), logger)

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	deviceRepo := newDeviceRepositoryAdapter(sqlite.NewDeviceRepository(pool))
	reservationRepo := newReservationRepositoryAdapter(sqlite.NewReservationRepository(pool))
	userRepo := newUserRepositoryAdapter(sqlite.NewUserRepository(pool))
	credentialStore := newCredentialStoreAdapter(sqlite.NewUserRepository(pool))
	sessionRepo := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool))

	deviceService := application.NewDeviceServiceWithLogger(deviceRepo, reservationRepo, idGenerator, now, logger)
	reservationService := application.NewReservationServiceWithLogger(reservationRepo, deviceRepo, idGenerator, now, logger)
	userService := application.NewUserService(userRepo, idGenerator, now)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Devices:      httptransport.NewDeviceHandler(deviceService, logger),
		Reservations: httptransport.NewReservationHandler(reservationService, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Reports:      httptransport.NewReportHandler(deviceService, reservationService, logger),
		Metrics:      promhttp.Handler(),
		Health: func(w http.ResponseWriter, r *http.Request) {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		},
		Middleware: []httptransport.Middleware{
			httptransport.RequestLogger(logger),
			httptransport.RequestMetrics(),
			httptransport.RequireSession(authService, logger, "/login", "/healthz", "/metrics"),
		},
	})

	worker := expiry.NewWorker(reservationService, cfg.ExpiryInterval, now, logger)
	go worker.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func toApplicationDevice(model persistence.Device) application.Device {
	return application.Device{
		ID:                 model.ID,
		Name:               model.Name,
		Location:           model.Location,
		PowerWatts:         model.PowerWatts,
		MaxDurationMinutes: model.MaxDurationMinutes,
		Status:             model.Status,
		CurrentUserName:    cloneString(model.CurrentUserName),
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

func toPersistenceDevice(device application.Device) persistence.Device {
	return persistence.Device{
		ID:                 device.ID,
		Name:               device.Name,
		Location:           device.Location,
		PowerWatts:         device.PowerWatts,
		MaxDurationMinutes: device.MaxDurationMinutes,
		Status:             device.Status,
		CurrentUserName:    cloneString(device.CurrentUserName),
		CreatedAt:          device.CreatedAt,
		UpdatedAt:          device.UpdatedAt,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:              model.ID,
		DeviceID:        model.DeviceID,
		UserID:          model.UserID,
		UserName:        model.UserName,
		Start:           model.Start,
		End:             model.End,
		DurationMinutes: model.DurationMinutes,
		Purpose:         model.Purpose,
		Status:          model.Status,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:              reservation.ID,
		DeviceID:        reservation.DeviceID,
		UserID:          reservation.UserID,
		UserName:        reservation.UserName,
		Start:           reservation.Start,
		End:             reservation.End,
		DurationMinutes: reservation.DurationMinutes,
		Purpose:         reservation.Purpose,
		Status:          reservation.Status,
		CreatedAt:       reservation.CreatedAt,
		UpdatedAt:       reservation.UpdatedAt,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
