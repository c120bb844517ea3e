package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/microwave-booking/internal/application"
)

type deviceService interface {
	RegisterDevice(ctx context.Context, params application.RegisterDeviceParams) (application.Device, error)
	UpdateDevice(ctx context.Context, params application.UpdateDeviceParams) (application.Device, error)
	RemoveDevice(ctx context.Context, principal application.Principal, deviceID string) error
	GetDevice(ctx context.Context, deviceID string) (application.Device, error)
	ListDevices(ctx context.Context, principal application.Principal) ([]application.Device, error)
	SetMaintenance(ctx context.Context, params application.SetMaintenanceParams) (application.Device, error)
}

// DeviceHandler serves microwave registry requests.
type DeviceHandler struct {
	service   deviceService
	responder *responder
	logger    *slog.Logger
}

func NewDeviceHandler(service deviceService, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    defaultLogger(logger),
	}
}

func (h *DeviceHandler) log(ctx context.Context, operation string) *slog.Logger {
	return handlerLogger(ctx, h.logger, "device", operation)
}

type deviceRequest struct {
	Name               string `json:"name"`
	Location           string `json:"location"`
	PowerWatts         int    `json:"power_watts"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
}

func (r deviceRequest) toInput() application.DeviceInput {
	return application.DeviceInput{
		Name:               r.Name,
		Location:           r.Location,
		PowerWatts:         r.PowerWatts,
		MaxDurationMinutes: r.MaxDurationMinutes,
	}
}

type maintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

type deviceDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Location           string  `json:"location"`
	PowerWatts         int     `json:"power_watts"`
	MaxDurationMinutes int     `json:"max_duration_minutes"`
	Status             string  `json:"status"`
	CurrentUserName    *string `json:"current_user_name,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

type deviceResponse struct {
	Device deviceDTO `json:"device"`
}

type listDevicesResponse struct {
	Devices []deviceDTO `json:"devices"`
}

func toDeviceDTO(device application.Device) deviceDTO {
	return deviceDTO{
		ID:                 device.ID,
		Name:               device.Name,
		Location:           device.Location,
		PowerWatts:         device.PowerWatts,
		MaxDurationMinutes: device.MaxDurationMinutes,
		Status:             string(device.Status),
		CurrentUserName:    device.CurrentUserName,
		CreatedAt:          device.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:          device.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func toDeviceDTOs(devices []application.Device) []deviceDTO {
	dtos := make([]deviceDTO, len(devices))
	for i, device := range devices {
		dtos[i] = toDeviceDTO(device)
	}
	return dtos
}

// List handles GET /devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	devices, err := h.service.ListDevices(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.responder.writeJSON(w, http.StatusOK, listDevicesResponse{Devices: toDeviceDTOs(devices)})
}

// Get handles GET /devices/{id}.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := DeviceIDFromContext(r.Context())
	if !ok || deviceID == "" {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "A device identifier is required.", nil)
		return
	}

	device, err := h.service.GetDevice(r.Context(), deviceID)
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.responder.writeJSON(w, http.StatusOK, deviceResponse{Device: toDeviceDTO(device)})
}

// Create handles POST /devices.
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "The request body could not be parsed.", nil)
		return
	}

	device, err := h.service.RegisterDevice(r.Context(), application.RegisterDeviceParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.log(r.Context(), "create").Info("device registered", slog.String("device_id", device.ID))
	h.responder.writeJSON(w, http.StatusCreated, deviceResponse{Device: toDeviceDTO(device)})
}

// Update handles PUT /devices/{id}.
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "The request body could not be parsed.", nil)
		return
	}

	device, err := h.service.UpdateDevice(r.Context(), application.UpdateDeviceParams{
		Principal: principal,
		DeviceID:  deviceID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.log(r.Context(), "update").Info("device updated", slog.String("device_id", device.ID))
	h.responder.writeJSON(w, http.StatusOK, deviceResponse{Device: toDeviceDTO(device)})
}

// Delete handles DELETE /devices/{id}.
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.RemoveDevice(r.Context(), principal, deviceID); err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.log(r.Context(), "delete").Info("device removed", slog.String("device_id", deviceID))
	w.WriteHeader(http.StatusNoContent)
}

// SetMaintenance handles PUT /devices/{id}/maintenance.
func (h *DeviceHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
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

	var req maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "The request body could not be parsed.", nil)
		return
	}

	device, err := h.service.SetMaintenance(r.Context(), application.SetMaintenanceParams{
		Principal: principal,
		DeviceID:  deviceID,
		Enabled:   req.Enabled,
	})
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.log(r.Context(), "maintenance").Info("maintenance toggled",
		slog.String("device_id", device.ID),
		slog.Bool("enabled", req.Enabled),
	)
	h.responder.writeJSON(w, http.StatusOK, deviceResponse{Device: toDeviceDTO(device)})
}
