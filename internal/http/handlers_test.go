package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/booking"
)

var handlerTestNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubAuthService struct {
	result       application.AuthenticateResult
	authErr      error
	revokeErr    error
	revokedToken string
}

func (s *stubAuthService) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authErr != nil {
		return application.AuthenticateResult{}, s.authErr
	}
	return s.result, nil
}

func (s *stubAuthService) RevokeSession(ctx context.Context, token string) error {
	s.revokedToken = token
	return s.revokeErr
}

type stubDeviceService struct {
	devices    []application.Device
	registered application.Device
	err        error
	removedID  string
}

func (s *stubDeviceService) RegisterDevice(ctx context.Context, params application.RegisterDeviceParams) (application.Device, error) {
	if s.err != nil {
		return application.Device{}, s.err
	}
	return s.registered, nil
}

func (s *stubDeviceService) UpdateDevice(ctx context.Context, params application.UpdateDeviceParams) (application.Device, error) {
	if s.err != nil {
		return application.Device{}, s.err
	}
	return s.registered, nil
}

func (s *stubDeviceService) RemoveDevice(ctx context.Context, principal application.Principal, deviceID string) error {
	s.removedID = deviceID
	return s.err
}

func (s *stubDeviceService) GetDevice(ctx context.Context, deviceID string) (application.Device, error) {
	if s.err != nil {
		return application.Device{}, s.err
	}
	return s.registered, nil
}

func (s *stubDeviceService) ListDevices(ctx context.Context, principal application.Principal) ([]application.Device, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.devices, nil
}

func (s *stubDeviceService) SetMaintenance(ctx context.Context, params application.SetMaintenanceParams) (application.Device, error) {
	if s.err != nil {
		return application.Device{}, s.err
	}
	return s.registered, nil
}

func (s *stubDeviceService) FleetStats(ctx context.Context) (application.FleetStats, error) {
	if s.err != nil {
		return application.FleetStats{}, s.err
	}
	return application.FleetStats{TotalDevices: len(s.devices)}, nil
}

type stubReservationService struct {
	reservation application.Reservation
	history     []application.Reservation
	err         error
	lastUserID  string
	lastInput   application.ReserveInput
}

func (s *stubReservationService) Reserve(ctx context.Context, params application.ReserveParams) (application.Reservation, error) {
	s.lastInput = params.Input
	if s.err != nil {
		return application.Reservation{}, s.err
	}
	return s.reservation, nil
}

func (s *stubReservationService) Cancel(ctx context.Context, principal application.Principal, deviceID string) (application.Reservation, error) {
	if s.err != nil {
		return application.Reservation{}, s.err
	}
	return s.reservation, nil
}

func (s *stubReservationService) ListForUser(ctx context.Context, principal application.Principal, userID string) ([]application.Reservation, error) {
	s.lastUserID = userID
	if s.err != nil {
		return nil, s.err
	}
	return s.history, nil
}

func (s *stubReservationService) ListAll(ctx context.Context, principal application.Principal) ([]application.Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.history, nil
}

// withPrincipal injects an authenticated principal so handler tests can skip
// the session middleware.
func withPrincipal(principal application.Principal) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func decodeErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		service := &stubAuthService{result: application.AuthenticateResult{
			User: application.User{ID: "u1", Email: "alice@example.com", DisplayName: "Alice"},
			Session: application.Session{
				Token:     "token-abc",
				ExpiresAt: handlerTestNow.Add(24 * time.Hour),
			},
		}}
		handler := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"alice@example.com","password":"secret"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", recorder.Code)
		}
		if got := recorder.Header().Get("X-Session-Token"); got != "token-abc" {
			t.Errorf("expected X-Session-Token header, got %q", got)
		}
		cookieFound := false
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == sessionCookieName && cookie.Value == "token-abc" {
				cookieFound = true
				if !cookie.HttpOnly {
					t.Error("expected session cookie to be HttpOnly")
				}
			}
		}
		if !cookieFound {
			t.Error("expected session cookie to be set")
		}

		var body loginResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode login response: %v", err)
		}
		if body.Token != "token-abc" {
			t.Errorf("expected token in body, got %q", body.Token)
		}
		if body.User.Email != "alice@example.com" {
			t.Errorf("unexpected user in body: %+v", body.User)
		}
	})

	t.Run("login rejects bad credentials with 401", func(t *testing.T) {
		t.Parallel()

		service := &stubAuthService{authErr: application.ErrInvalidCredentials}
		handler := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", recorder.Code)
		}
		if body := decodeErrorResponse(t, recorder); body.ErrorCode != "invalid_credentials" {
			t.Errorf("unexpected error code %q", body.ErrorCode)
		}
	})

	t.Run("logout revokes the session and clears the cookie", func(t *testing.T) {
		t.Parallel()

		service := &stubAuthService{}
		handler := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token-abc"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", recorder.Code)
		}
		if service.revokedToken != "token-abc" {
			t.Errorf("expected cookie token to be revoked, got %q", service.revokedToken)
		}
		cleared := false
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == sessionCookieName && cookie.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("expected session cookie to be cleared")
		}
	})
}

func TestDeviceHandlers(t *testing.T) {
	t.Parallel()

	member := application.Principal{UserID: "u1", DisplayName: "Alice"}
	admin := application.Principal{UserID: "admin", DisplayName: "Admin", IsAdmin: true}

	device := application.Device{
		ID:                 "d1",
		Name:               "Microwave A",
		Location:           "Kitchen",
		PowerWatts:         1000,
		MaxDurationMinutes: 30,
		Status:             booking.DeviceAvailable,
		CreatedAt:          handlerTestNow,
		UpdatedAt:          handlerTestNow,
	}

	t.Run("list returns devices for any member", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{devices: []application.Device{device}}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodGet, "/devices", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", recorder.Code)
		}
		var body listDevicesResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode list response: %v", err)
		}
		if len(body.Devices) != 1 || body.Devices[0].ID != "d1" {
			t.Fatalf("unexpected devices payload: %+v", body.Devices)
		}
		if body.Devices[0].Status != "available" {
			t.Errorf("unexpected status %q", body.Devices[0].Status)
		}
	})

	t.Run("create maps authorization failures to 403", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{err: application.ErrUnauthorized}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices", strings.NewReader(`{"name":"Microwave B","location":"Kitchen"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", recorder.Code)
		}
	})

	t.Run("create surfaces field errors with 422", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{err: &application.ValidationError{
			FieldErrors: map[string]string{"name": "Name is required."},
		}}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices", strings.NewReader(`{"location":"Kitchen"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got %d", recorder.Code)
		}
		body := decodeErrorResponse(t, recorder)
		if body.Errors["name"] == "" {
			t.Errorf("expected field error for name, got %+v", body.Errors)
		}
	})

	t.Run("create returns the registered device with 201", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{registered: device}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices", strings.NewReader(`{"name":"Microwave A","location":"Kitchen"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", recorder.Code)
		}
		var body deviceResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode device response: %v", err)
		}
		if body.Device.ID != "d1" || body.Device.PowerWatts != 1000 {
			t.Fatalf("unexpected device payload: %+v", body.Device)
		}
	})

	t.Run("delete extracts the device identifier from the path", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodDelete, "/devices/d1", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", recorder.Code)
		}
		if service.removedID != "d1" {
			t.Errorf("expected device d1 to be removed, got %q", service.removedID)
		}
	})

	t.Run("delete maps ledger conflicts to 409", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{err: application.ErrConflict}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodDelete, "/devices/d1", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", recorder.Code)
		}
	})

	t.Run("maintenance toggle rejects occupied devices with 409", func(t *testing.T) {
		t.Parallel()

		service := &stubDeviceService{err: application.ErrConflict}
		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(service, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodPut, "/devices/d1/maintenance", strings.NewReader(`{"enabled":true}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", recorder.Code)
		}
		if body := decodeErrorResponse(t, recorder); body.ErrorCode != "conflict" {
			t.Errorf("unexpected error code %q", body.ErrorCode)
		}
	})

	t.Run("unsupported method yields 405 with Allow header", func(t *testing.T) {
		t.Parallel()

		handler := NewRouter(RouterConfig{
			Devices:    NewDeviceHandler(&stubDeviceService{}, nil),
			Middleware: []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPatch, "/devices", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status 405, got %d", recorder.Code)
		}
		if allow := recorder.Header().Get("Allow"); allow != "GET, POST" {
			t.Errorf("unexpected Allow header %q", allow)
		}
	})
}

func TestReservationHandlers(t *testing.T) {
	t.Parallel()

	member := application.Principal{UserID: "u1", DisplayName: "Alice"}

	reservation := application.Reservation{
		ID:              "r1",
		DeviceID:        "d1",
		UserID:          "u1",
		UserName:        "Alice",
		Start:           handlerTestNow,
		End:             handlerTestNow.Add(5 * time.Minute),
		DurationMinutes: 5,
		Purpose:         "Heating food",
		Status:          booking.ReservationActive,
		CreatedAt:       handlerTestNow,
		UpdatedAt:       handlerTestNow,
	}

	t.Run("reserve accepts an empty body and returns 201", func(t *testing.T) {
		t.Parallel()

		service := &stubReservationService{reservation: reservation}
		handler := NewRouter(RouterConfig{
			Devices:      NewDeviceHandler(&stubDeviceService{}, nil),
			Reservations: NewReservationHandler(service, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices/d1/reservations", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var body reservationResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode reservation response: %v", err)
		}
		if body.Reservation.ID != "r1" || body.Reservation.Status != "active" {
			t.Fatalf("unexpected reservation payload: %+v", body.Reservation)
		}
	})

	t.Run("reserve defaults an omitted duration", func(t *testing.T) {
		t.Parallel()

		service := &stubReservationService{reservation: reservation}
		handler := NewRouter(RouterConfig{
			Devices:      NewDeviceHandler(&stubDeviceService{}, nil),
			Reservations: NewReservationHandler(service, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices/d1/reservations", strings.NewReader(`{"purpose":"Heating soup"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.lastInput.DurationMinutes != booking.DefaultDurationMinutes {
			t.Errorf("forwarded duration = %d, want default %d", service.lastInput.DurationMinutes, booking.DefaultDurationMinutes)
		}
	})

	t.Run("reserve forwards an explicit zero duration untouched", func(t *testing.T) {
		t.Parallel()

		service := &stubReservationService{reservation: reservation}
		handler := NewRouter(RouterConfig{
			Devices:      NewDeviceHandler(&stubDeviceService{}, nil),
			Reservations: NewReservationHandler(service, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices/d1/reservations", strings.NewReader(`{"duration_minutes":0}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if service.lastInput.DurationMinutes != 0 {
			t.Errorf("forwarded duration = %d, want 0", service.lastInput.DurationMinutes)
		}
	})

	t.Run("reserve rejects malformed start times", func(t *testing.T) {
		t.Parallel()

		handler := NewRouter(RouterConfig{
			Devices:      NewDeviceHandler(&stubDeviceService{}, nil),
			Reservations: NewReservationHandler(&stubReservationService{}, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices/d1/reservations", strings.NewReader(`{"start":"tomorrow"}`))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", recorder.Code)
		}
	})

	t.Run("reserve maps occupied devices to 409", func(t *testing.T) {
		t.Parallel()

		service := &stubReservationService{err: application.ErrInvalidState}
		handler := NewRouter(RouterConfig{
			Devices:      NewDeviceHandler(&stubDeviceService{}, nil),
			Reservations: NewReservationHandler(service, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodPost, "/devices/d1/reservations", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", recorder.Code)
		}
		if body := decodeErrorResponse(t, recorder); body.ErrorCode != "invalid_state" {
			t.Errorf("unexpected error code %q", body.ErrorCode)
		}
	})

	t.Run("cancel returns the released reservation", func(t *testing.T) {
		t.Parallel()

		cancelled := reservation
		cancelled.Status = booking.ReservationCancelled
		service := &stubReservationService{reservation: cancelled}
		handler := NewRouter(RouterConfig{
			Devices:      NewDeviceHandler(&stubDeviceService{}, nil),
			Reservations: NewReservationHandler(service, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodDelete, "/devices/d1/reservations", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", recorder.Code)
		}
		var body reservationResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode reservation response: %v", err)
		}
		if body.Reservation.Status != "cancelled" {
			t.Errorf("unexpected status %q", body.Reservation.Status)
		}
	})

	t.Run("list forwards the user_id query parameter", func(t *testing.T) {
		t.Parallel()

		service := &stubReservationService{history: []application.Reservation{reservation}}
		handler := NewRouter(RouterConfig{
			Reservations: NewReservationHandler(service, nil),
			Middleware:   []Middleware{withPrincipal(member)},
		})

		req := httptest.NewRequest(http.MethodGet, "/reservations?user_id=u2", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", recorder.Code)
		}
		if service.lastUserID != "u2" {
			t.Errorf("expected user_id u2 to be forwarded, got %q", service.lastUserID)
		}
	})
}

func TestReportHandlers(t *testing.T) {
	t.Parallel()

	admin := application.Principal{UserID: "admin", DisplayName: "Admin", IsAdmin: true}

	t.Run("stats returns dashboard counters", func(t *testing.T) {
		t.Parallel()

		devices := &stubDeviceService{devices: []application.Device{{ID: "d1"}, {ID: "d2"}}}
		handler := NewRouter(RouterConfig{
			Reports:    NewReportHandler(devices, &stubReservationService{}, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", recorder.Code)
		}
		var body statsResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode stats response: %v", err)
		}
		if body.TotalDevices != 2 {
			t.Errorf("expected 2 total devices, got %d", body.TotalDevices)
		}
	})

	t.Run("usage report streams an xlsx attachment", func(t *testing.T) {
		t.Parallel()

		devices := &stubDeviceService{devices: []application.Device{{ID: "d1", Name: "Microwave A"}}}
		ledger := &stubReservationService{}
		handler := NewRouter(RouterConfig{
			Reports:    NewReportHandler(devices, ledger, nil),
			Middleware: []Middleware{withPrincipal(admin)},
		})

		req := httptest.NewRequest(http.MethodGet, "/reports/usage", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if got := recorder.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			t.Errorf("unexpected content type %q", got)
		}
		if got := recorder.Header().Get("Content-Disposition"); !strings.Contains(got, "microwave-usage-") {
			t.Errorf("unexpected content disposition %q", got)
		}
		if recorder.Body.Len() == 0 {
			t.Error("expected a non-empty workbook body")
		}
	})

	t.Run("usage report requires an administrator", func(t *testing.T) {
		t.Parallel()

		ledger := &stubReservationService{err: application.ErrUnauthorized}
		handler := NewRouter(RouterConfig{
			Reports:    NewReportHandler(&stubDeviceService{}, ledger, nil),
			Middleware: []Middleware{withPrincipal(application.Principal{UserID: "u1"})},
		})

		req := httptest.NewRequest(http.MethodGet, "/reports/usage", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", recorder.Code)
		}
	})
}
