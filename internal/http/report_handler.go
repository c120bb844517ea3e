package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/metrics"
	"github.com/example/microwave-booking/internal/reports"
)

type statsService interface {
	FleetStats(ctx context.Context) (application.FleetStats, error)
	ListDevices(ctx context.Context, principal application.Principal) ([]application.Device, error)
}

type ledgerReader interface {
	ListAll(ctx context.Context, principal application.Principal) ([]application.Reservation, error)
}

// ReportHandler serves the dashboard counters and the usage workbook export.
type ReportHandler struct {
	stats     statsService
	ledger    ledgerReader
	responder *responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewReportHandler(stats statsService, ledger ledgerReader, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		stats:     stats,
		ledger:    ledger,
		responder: newResponder(logger),
		logger:    defaultLogger(logger),
		now:       time.Now,
	}
}

func (h *ReportHandler) log(ctx context.Context, operation string) *slog.Logger {
	return handlerLogger(ctx, h.logger, "report", operation)
}

type statsResponse struct {
	TotalDevices       int `json:"total_devices"`
	AvailableDevices   int `json:"available_devices"`
	OccupiedDevices    int `json:"occupied_devices"`
	MaintenanceDevices int `json:"maintenance_devices"`
	ActiveReservations int `json:"active_reservations"`
	CompletedToday     int `json:"completed_today"`
}

// Stats handles GET /stats.
func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := PrincipalFromContext(r.Context()); !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	stats, err := h.stats.FleetStats(r.Context())
	if err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.responder.writeJSON(w, http.StatusOK, statsResponse{
		TotalDevices:       stats.TotalDevices,
		AvailableDevices:   stats.AvailableDevices,
		OccupiedDevices:    stats.OccupiedDevices,
		MaintenanceDevices: stats.MaintenanceDevices,
		ActiveReservations: stats.ActiveReservations,
		CompletedToday:     stats.CompletedToday,
	})
}

// Usage handles GET /reports/usage and streams an XLSX workbook.
func (h *ReportHandler) Usage(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(w, application.ErrUnauthorized)
		return
	}

	reservations, err := h.ledger.ListAll(r.Context(), principal)
	if err != nil {
		metrics.IncReportExport(metrics.ResultError)
		h.responder.handleServiceError(w, err)
		return
	}

	devices, err := h.stats.ListDevices(r.Context(), principal)
	if err != nil {
		metrics.IncReportExport(metrics.ResultError)
		h.responder.handleServiceError(w, err)
		return
	}

	stats, err := h.stats.FleetStats(r.Context())
	if err != nil {
		metrics.IncReportExport(metrics.ResultError)
		h.responder.handleServiceError(w, err)
		return
	}

	generatedAt := h.now().UTC()
	workbook, err := reports.BuildUsageXLSX(reports.UsageReport{
		GeneratedAt:  generatedAt,
		Stats:        stats,
		Devices:      devices,
		Reservations: reservations,
	})
	if err != nil {
		metrics.IncReportExport(metrics.ResultError)
		h.log(r.Context(), "usage").Error("failed to build usage workbook", slog.String("error", err.Error()))
		h.responder.writeError(w, http.StatusInternalServerError, "internal_error", "The usage report could not be generated.", nil)
		return
	}

	metrics.IncReportExport(metrics.ResultSuccess)
	h.log(r.Context(), "usage").Info("usage workbook exported",
		slog.Int("devices", len(devices)),
		slog.Int("reservations", len(reservations)),
	)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+reports.FileName(generatedAt)+"\"")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(workbook); err != nil {
		h.log(r.Context(), "usage").Error("failed to stream usage workbook", slog.String("error", err.Error()))
	}
}
