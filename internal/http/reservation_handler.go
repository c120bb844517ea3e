package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/booking"
	"github.com/example/microwave-booking/internal/metrics"
)

type reservationService interface {
	Reserve(ctx context.Context, params application.ReserveParams) (application.Reservation, error)
	Cancel(ctx context.Context, principal application.Principal, deviceID string) (application.Reservation, error)
	ListForUser(ctx context.Context, principal application.Principal, userID string) ([]application.Reservation, error)
}

// ReservationHandler serves reservation ledger requests.
type ReservationHandler struct {
	service   reservationService
	responder *responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    defaultLogger(logger),
	}
}

func (h *ReservationHandler) log(ctx context.Context, operation string) *slog.Logger {
	return handlerLogger(ctx, h.logger, "reservation", operation)
}

// reserveRequest carries a pointer duration so an omitted field can be told
// apart from an explicit zero; only the former gets the default.
type reserveRequest struct {
	Start           string `json:"start,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
}

func (r reserveRequest) toInput() (application.ReserveInput, error) {
	input := application.ReserveInput{
		DurationMinutes: booking.DefaultDurationMinutes,
		Purpose:         r.Purpose,
	}
	if r.DurationMinutes != nil {
		input.DurationMinutes = *r.DurationMinutes
	}
	if r.Start != "" {
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return application.ReserveInput{}, err
		}
		input.Start = start
	}
	return input, nil
}

type reservationDTO struct {
	ID              string `json:"id"`
	DeviceID        string `json:"device_id"`
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Purpose         string `json:"purpose"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:              reservation.ID,
		DeviceID:        reservation.DeviceID,
		UserID:          reservation.UserID,
		UserName:        reservation.UserName,
		Start:           reservation.Start.Format(time.RFC3339Nano),
		End:             reservation.End.Format(time.RFC3339Nano),
		DurationMinutes: reservation.DurationMinutes,
		Purpose:         reservation.Purpose,
		Status:          string(reservation.Status),
		CreatedAt:       reservation.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:       reservation.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	dtos := make([]reservationDTO, len(reservations))
	for i, reservation := range reservations {
		dtos[i] = toReservationDTO(reservation)
	}
	return dtos
}

// Reserve handles POST /devices/{id}/reservations.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	deviceID, ok := DeviceIDFromContext(r.Context())
	if !ok || deviceID == "" {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "A device identifier is required.", nil)
		return
	}

	var req reserveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "The request body could not be parsed.", nil)
			return
		}
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "The start time must be RFC 3339 formatted.", nil)
		return
	}

	reservation, err := h.service.Reserve(r.Context(), application.ReserveParams{
		Principal: principal,
		DeviceID:  deviceID,
		Input:     input,
	})
	if err != nil {
		metrics.IncReservationOp("reserve", metrics.ResultError)
		h.responder.handleServiceError(w, err)
		return
	}

	metrics.IncReservationOp("reserve", metrics.ResultSuccess)
	h.log(r.Context(), "reserve").Info("device reserved",
		slog.String("device_id", deviceID),
		slog.String("reservation_id", reservation.ID),
	)
	h.responder.writeJSON(w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// Cancel handles DELETE /devices/{id}/reservations.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	deviceID, ok := DeviceIDFromContext(r.Context())
	if !ok || deviceID == "" {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "A device identifier is required.", nil)
		return
	}

	reservation, err := h.service.Cancel(r.Context(), principal, deviceID)
	if err != nil {
		metrics.IncReservationOp("cancel", metrics.ResultError)
		h.responder.handleServiceError(w, err)
		return
	}

	metrics.IncReservationOp("cancel", metrics.ResultSuccess)
	h.log(r.Context(), "cancel").Info("reservation cancelled",
		slog.String("device_id", deviceID),
		slog.String("reservation_id", reservation.ID),
	)
	h.responder.writeJSON(w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// List handles GET /reservations. The optional user_id query parameter lets
// administrators read another user's history.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	reservations, err := h.service.ListForUser(r.Context(), principal, r.URL.Query().Get("user_id"))
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.responder.writeJSON(w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}
