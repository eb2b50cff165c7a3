package repository

import (
	"context"

	"xray-data/internal/domain"
)

// SignalFilters are the optional predicates for querying signals. Every field
// is independently optional; nil/empty means unconstrained. Range bounds are
// inclusive, and a missing bound leaves that side of the range open.
type SignalFilters struct {
	DeviceID      string
	TimeStart     *int64 // epoch ms
	TimeEnd       *int64 // epoch ms
	DataVolumeMin *int
	DataVolumeMax *int
	DataLengthMin *int
	DataLengthMax *int
	SortBy        string // "time" | "dataVolume" | "dataLength", default "time"
	SortOrder     string // "asc" | "desc", default "asc"
}

// SignalsRepo is the durable signal record store.
type SignalsRepo interface {
	// Insert persists a record, assigning its id and creation timestamp.
	Insert(ctx context.Context, rec *domain.SignalRecord) (*domain.SignalRecord, error)

	// FindByID returns the record or (nil, nil) when the id does not exist.
	FindByID(ctx context.Context, id string) (*domain.SignalRecord, error)

	// DeleteByID removes one record; false when the id does not exist.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// Find returns one page of matching records sorted per the filters.
	Find(ctx context.Context, filters *SignalFilters, offset, limit int) ([]*domain.SignalRecord, error)

	// Count returns the total number of matching records.
	Count(ctx context.Context, filters *SignalFilters) (int, error)

	// DeleteAll removes every matching record and returns the count deleted.
	DeleteAll(ctx context.Context, filters *SignalFilters) (int, error)
}
