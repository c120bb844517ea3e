// Package reports builds downloadable exports of the reservation ledger.
package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/microwave-booking/internal/application"
)

// UsageReport carries the inputs for an XLSX export.
type UsageReport struct {
	GeneratedAt  time.Time
	Stats        application.FleetStats
	Devices      []application.Device
	Reservations []application.Reservation
}

// BuildUsageXLSX renders the fleet summary and reservation ledger as a workbook.
func BuildUsageXLSX(report UsageReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	devicesSheet := "devices"
	ledgerSheet := "reservations"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(devicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Microwave Usage Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", report.GeneratedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Devices")
	_ = f.SetCellValue(summarySheet, "B4", report.Stats.TotalDevices)
	_ = f.SetCellValue(summarySheet, "A5", "Available")
	_ = f.SetCellValue(summarySheet, "B5", report.Stats.AvailableDevices)
	_ = f.SetCellValue(summarySheet, "A6", "Occupied")
	_ = f.SetCellValue(summarySheet, "B6", report.Stats.OccupiedDevices)
	_ = f.SetCellValue(summarySheet, "A7", "In Maintenance")
	_ = f.SetCellValue(summarySheet, "B7", report.Stats.MaintenanceDevices)
	_ = f.SetCellValue(summarySheet, "A8", "Active Reservations")
	_ = f.SetCellValue(summarySheet, "B8", report.Stats.ActiveReservations)
	_ = f.SetCellValue(summarySheet, "A9", "Completed Today")
	_ = f.SetCellValue(summarySheet, "B9", report.Stats.CompletedToday)

	_ = f.SetCellValue(devicesSheet, "A1", "Name")
	_ = f.SetCellValue(devicesSheet, "B1", "Location")
	_ = f.SetCellValue(devicesSheet, "C1", "Power (W)")
	_ = f.SetCellValue(devicesSheet, "D1", "Max Duration (min)")
	_ = f.SetCellValue(devicesSheet, "E1", "Status")
	_ = f.SetCellValue(devicesSheet, "F1", "Current User")
	for i, device := range report.Devices {
		row := i + 2
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("A%d", row), device.Name)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("B%d", row), device.Location)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("C%d", row), device.PowerWatts)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("D%d", row), device.MaxDurationMinutes)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("E%d", row), string(device.Status))
		if device.CurrentUserName != nil {
			_ = f.SetCellValue(devicesSheet, fmt.Sprintf("F%d", row), *device.CurrentUserName)
		}
	}

	_ = f.SetCellValue(ledgerSheet, "A1", "Device")
	_ = f.SetCellValue(ledgerSheet, "B1", "User")
	_ = f.SetCellValue(ledgerSheet, "C1", "Start")
	_ = f.SetCellValue(ledgerSheet, "D1", "End")
	_ = f.SetCellValue(ledgerSheet, "E1", "Duration (min)")
	_ = f.SetCellValue(ledgerSheet, "F1", "Purpose")
	_ = f.SetCellValue(ledgerSheet, "G1", "Status")
	deviceNames := make(map[string]string, len(report.Devices))
	for _, device := range report.Devices {
		deviceNames[device.ID] = device.Name
	}
	for i, reservation := range report.Reservations {
		row := i + 2
		name := deviceNames[reservation.DeviceID]
		if name == "" {
			name = reservation.DeviceID
		}
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("A%d", row), name)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("B%d", row), reservation.UserName)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("C%d", row), reservation.Start.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("D%d", row), reservation.End.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("E%d", row), reservation.DurationMinutes)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("F%d", row), reservation.Purpose)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("G%d", row), string(reservation.Status))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName returns the attachment name for a report generated at the given time.
func FileName(generatedAt time.Time) string {
	return "microwave-usage-" + generatedAt.UTC().Format("20060102-150405") + ".xlsx"
}
