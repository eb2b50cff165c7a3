package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xray-data/internal/domain"
)

// MemorySignalsRepo in-memory SignalsRepo for unit tests and broker-less
// development. Filter semantics match the Postgres implementation.
type MemorySignalsRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.SignalRecord
}

func NewMemorySignalsRepo() *MemorySignalsRepo {
	return &MemorySignalsRepo{records: make(map[string]*domain.SignalRecord)}
}

var _ SignalsRepo = (*MemorySignalsRepo)(nil)

func (r *MemorySignalsRepo) Insert(_ context.Context, rec *domain.SignalRecord) (*domain.SignalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := *rec
	saved.ID = uuid.New().String()
	saved.CreatedAt = time.Now().UTC()
	saved.RawData = append([]domain.Sample(nil), rec.RawData...)
	r.records[saved.ID] = &saved

	out := saved
	return &out, nil
}

func (r *MemorySignalsRepo) FindByID(_ context.Context, id string) (*domain.SignalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (r *MemorySignalsRepo) DeleteByID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return false, nil
	}
	delete(r.records, id)
	return true, nil
}

func (r *MemorySignalsRepo) Find(_ context.Context, filters *SignalFilters, offset, limit int) ([]*domain.SignalRecord, error) {
	r.mu.RLock()
	matched := r.matchAll(filters)
	r.mu.RUnlock()

	sortRecords(matched, sortByOf(filters), sortOrderOf(filters))

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*domain.SignalRecord, 0, end-offset)
	for _, rec := range matched[offset:end] {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemorySignalsRepo) Count(_ context.Context, filters *SignalFilters) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matchAll(filters)), nil
}

func (r *MemorySignalsRepo) DeleteAll(_ context.Context, filters *SignalFilters) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, rec := range r.records {
		if matches(filters, rec) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *MemorySignalsRepo) matchAll(filters *SignalFilters) []*domain.SignalRecord {
	var matched []*domain.SignalRecord
	for _, rec := range r.records {
		if matches(filters, rec) {
			matched = append(matched, rec)
		}
	}
	return matched
}

// matches applies the same conjunction of optional predicates as BuildWhere.
func matches(f *SignalFilters, rec *domain.SignalRecord) bool {
	if f == nil {
		return true
	}
	if f.DeviceID != "" && rec.DeviceID != f.DeviceID {
		return false
	}
	if f.TimeStart != nil && rec.Time < *f.TimeStart {
		return false
	}
	if f.TimeEnd != nil && rec.Time > *f.TimeEnd {
		return false
	}
	if f.DataVolumeMin != nil && rec.DataVolume < *f.DataVolumeMin {
		return false
	}
	if f.DataVolumeMax != nil && rec.DataVolume > *f.DataVolumeMax {
		return false
	}
	if f.DataLengthMin != nil && rec.DataLength < *f.DataLengthMin {
		return false
	}
	if f.DataLengthMax != nil && rec.DataLength > *f.DataLengthMax {
		return false
	}
	return true
}

func sortRecords(records []*domain.SignalRecord, sortBy, sortOrder string) {
	desc := strings.EqualFold(sortOrder, "desc")

	key := func(rec *domain.SignalRecord) int64 {
		switch sortBy {
		case "dataVolume":
			return int64(rec.DataVolume)
		case "dataLength":
			return int64(rec.DataLength)
		default:
			return rec.Time
		}
	}

	sort.Slice(records, func(i, j int) bool {
		ki, kj := key(records[i]), key(records[j])
		if ki == kj {
			// id tiebreak, same as the Postgres ORDER BY
			return records[i].ID < records[j].ID
		}
		if desc {
			return ki > kj
		}
		return ki < kj
	})
}
