package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"xray-data/internal/service"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// SignalHandler is the synchronous HTTP surface over SignalService. The
// handler owns the empty-means-not-found policy; the service stays neutral so
// the queue consumer can share it.
type SignalHandler struct {
	svc    *service.SignalService
	db     *sql.DB // liveness probe only, may be nil
	logger *zap.Logger
}

func NewSignalHandler(svc *service.SignalService, db *sql.DB, logger *zap.Logger) *SignalHandler {
	return &SignalHandler{svc: svc, db: db, logger: logger}
}

// Create POST /xray-signal
func (h *SignalHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, maxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("failed to read request body"))
		return
	}

	payload, err := service.DecodeSavePayload(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	if _, err := h.svc.SaveSignal(r.Context(), payload); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, Fail(verr.Error()))
			return
		}
		h.logger.Error("Failed to save signal", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save signal"))
		return
	}

	writeJSON(w, http.StatusCreated, Success("Signal saved successfully", nil))
}

// FindAll GET /xray-signal
func (h *SignalHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	filters, err := parseSignalFilters(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	page, err := parsePagination(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	result, err := h.svc.FindAll(r.Context(), filters, page)
	if err != nil {
		h.logger.Error("Failed to query signals", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query signals"))
		return
	}
	if len(result.Records) == 0 {
		writeJSON(w, http.StatusNotFound, Fail("No signals found"))
		return
	}

	writeJSON(w, http.StatusOK, Success("Signals fetched successfully", result))
}

// DeleteAll DELETE /xray-signal
func (h *SignalHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	filters, err := parseSignalFilters(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	deleted, err := h.svc.DeleteAll(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to delete signals", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete signals"))
		return
	}
	if deleted == 0 {
		writeJSON(w, http.StatusNotFound, Fail("No signals found"))
		return
	}

	writeJSON(w, http.StatusOK, Success(fmt.Sprintf("%d signals deleted successfully", deleted), nil))
}

// FindOne GET /xray-signal/{id}
func (h *SignalHandler) FindOne(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.svc.FindOne(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch signal", zap.String("signal_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch signal"))
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, Fail("Signal not found"))
		return
	}

	writeJSON(w, http.StatusOK, Success("Signal fetched successfully", rec))
}

// DeleteOne DELETE /xray-signal/{id}
func (h *SignalHandler) DeleteOne(w http.ResponseWriter, r *http.Request, id string) {
	deleted, err := h.svc.DeleteOne(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to delete signal", zap.String("signal_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete signal"))
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, Fail("Signal not found"))
		return
	}

	writeJSON(w, http.StatusOK, Success("Signal deleted successfully", nil))
}

// DeviceActivity GET /xray-signal/devices/activity
func (h *SignalHandler) DeviceActivity(w http.ResponseWriter, r *http.Request) {
	seen, err := h.svc.DeviceActivity(r.Context())
	if err != nil {
		h.logger.Error("Failed to read device activity", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read device activity"))
		return
	}

	out := make(map[string]string, len(seen))
	for device, t := range seen {
		out[device] = t.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, Success("Device activity fetched successfully", out))
}

// Health GET /healthz
func (h *SignalHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbState := "up"
	if h.db == nil {
		dbState = "disabled"
	} else if err := h.db.PingContext(r.Context()); err != nil {
		dbState = "down"
	}

	status := http.StatusOK
	if dbState == "down" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Success("ok", map[string]string{"database": dbState}))
}
