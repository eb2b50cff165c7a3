package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"xray-data/internal/domain"
	"xray-data/internal/models"
	"xray-data/internal/repository"
	"xray-data/internal/store"
)

// ValidationError reports every constraint violated by an inbound payload.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid signal payload: " + strings.Join(e.Fields, "; ")
}

// SaveSignalPayload is the inbound create payload, shared by the HTTP gateway,
// the queue consumer and the MQTT bridge:
//
//	{"deviceId": "...", "time": 1735683480000, "data": [[762, [51.33, 12.33, 1.20]], ...]}
type SaveSignalPayload struct {
	DeviceID string            `json:"deviceId"`
	Time     *float64          `json:"time"`
	Data     []json.RawMessage `json:"data"`
}

// DecodeSavePayload decodes a serialized payload. Unknown fields are rejected
// so partially matching messages do not silently drop attributes.
func DecodeSavePayload(data []byte) (*SaveSignalPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var payload SaveSignalPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode signal payload: %w", err)
	}
	return &payload, nil
}

// SignalPage is one page of query results plus the overall totals.
type SignalPage struct {
	Records    []*domain.SignalRecord `json:"records"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"totalPages"`
}

// SignalService validates, transforms and persists signal payloads, and
// composes the query builder with the store for the read/delete paths.
// Absence is always reported through return values, never as an error; the
// HTTP gateway owns the empty-means-not-found policy.
type SignalService struct {
	repo     repository.SignalsRepo
	activity store.DeviceActivity // optional
	logger   *zap.Logger
}

func NewSignalService(repo repository.SignalsRepo, activity store.DeviceActivity, logger *zap.Logger) *SignalService {
	return &SignalService{repo: repo, activity: activity, logger: logger}
}

// SaveSignal validates the payload, derives dataLength/dataVolume and writes
// one record. Returns the persisted record including its assigned id.
func (s *SignalService) SaveSignal(ctx context.Context, payload *SaveSignalPayload) (*domain.SignalRecord, error) {
	samples, verr := validatePayload(payload)
	if verr != nil {
		return nil, verr
	}

	encoded, err := domain.EncodeSamples(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to encode samples: %w", err)
	}

	rec := &domain.SignalRecord{
		DeviceID:   payload.DeviceID,
		Time:       int64(*payload.Time),
		DataLength: len(samples),
		DataVolume: len(encoded),
		RawData:    samples,
	}

	saved, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}

	// Best effort: activity tracking must never fail a successful save.
	if s.activity != nil {
		if err := s.activity.Touch(ctx, saved.DeviceID, time.Now()); err != nil {
			s.logger.Warn("Failed to record device activity",
				zap.String("device_id", saved.DeviceID),
				zap.Error(err),
			)
		}
	}

	return saved, nil
}

// FindAll returns the requested page and the total count of all matching
// records. An empty page is a valid, successful outcome.
func (s *SignalService) FindAll(ctx context.Context, filters *repository.SignalFilters, page models.Pagination) (*SignalPage, error) {
	p := page.Normalize()

	records, err := s.repo.Find(ctx, filters, p.Offset(), p.Limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.SignalRecord{}
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}

	return &SignalPage{
		Records:    records,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages,
	}, nil
}

// DeleteAll removes every matching record; zero matches is success.
func (s *SignalService) DeleteAll(ctx context.Context, filters *repository.SignalFilters) (int, error) {
	return s.repo.DeleteAll(ctx, filters)
}

// FindOne returns (nil, nil) when the id does not exist.
func (s *SignalService) FindOne(ctx context.Context, id string) (*domain.SignalRecord, error) {
	return s.repo.FindByID(ctx, id)
}

// DeleteOne returns (false, nil) when the id does not exist.
func (s *SignalService) DeleteOne(ctx context.Context, id string) (bool, error) {
	return s.repo.DeleteByID(ctx, id)
}

// ExportAll fetches every matching record in sorted order, paging through the
// store in fixed chunks. Meant for the export path, not for interactive reads.
func (s *SignalService) ExportAll(ctx context.Context, filters *repository.SignalFilters) ([]*domain.SignalRecord, error) {
	const chunk = 500

	var all []*domain.SignalRecord
	for offset := 0; ; offset += chunk {
		records, err := s.repo.Find(ctx, filters, offset, chunk)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if len(records) < chunk {
			return all, nil
		}
	}
}

// DeviceActivity returns the last-seen time per device, empty when no tracker
// is configured.
func (s *SignalService) DeviceActivity(ctx context.Context) (map[string]time.Time, error) {
	if s.activity == nil {
		return map[string]time.Time{}, nil
	}
	return s.activity.LastSeen(ctx)
}

// validatePayload checks every constraint and reports all violations at once.
func validatePayload(payload *SaveSignalPayload) ([]domain.Sample, *ValidationError) {
	var fields []string

	if payload == nil {
		return nil, &ValidationError{Fields: []string{"payload must not be empty"}}
	}
	if payload.DeviceID == "" {
		fields = append(fields, "deviceId must be a non-empty string")
	}
	if payload.Time == nil {
		fields = append(fields, "time must be a number")
	}
	if len(payload.Data) == 0 {
		fields = append(fields, "data must contain at least one sample")
	}

	samples := make([]domain.Sample, 0, len(payload.Data))
	for i, raw := range payload.Data {
		var sample domain.Sample
		if err := json.Unmarshal(raw, &sample); err != nil {
			fields = append(fields, fmt.Sprintf("data[%d]: %v", i, err))
			continue
		}
		samples = append(samples, sample)
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return samples, nil
}
