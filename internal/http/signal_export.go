package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"xray-data/internal/domain"
)

// signalExportHeader columns of the xlsx export.
var signalExportHeader = []string{
	"Signal ID",
	"Device ID",
	"Time (ms)",
	"Data Length",
	"Data Volume (bytes)",
	"Samples",
	"Created At",
}

// Export GET /xray-signal/export
// Streams every record matching the same filter criteria as the collection
// endpoints, without pagination, as an xlsx attachment.
func (h *SignalHandler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseSignalFilters(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	records, err := h.svc.ExportAll(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to export signals", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export signals"))
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusNotFound, Fail("No signals found"))
		return
	}

	buf, err := generateSignalExport(records)
	if err != nil {
		h.logger.Error("Failed to build signal export file", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to build export file"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="xray-signals.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

func generateSignalExport(records []*domain.SignalRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Signals"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range signalExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, rec := range records {
		samples, err := json.Marshal(rec.RawData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode samples for %s: %w", rec.ID, err)
		}
		values := []any{
			rec.ID,
			rec.DeviceID,
			rec.Time,
			rec.DataLength,
			rec.DataVolume,
			string(samples),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	out, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return out.Bytes(), nil
}
