package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"xray-data/internal/domain"
)

// PostgresSignalsRepo SignalsRepo implementation backed by Postgres.
// rawData is stored as JSONB in the canonical tuple serialization, so the
// stored bytes are the same bytes dataVolume was computed from.
type PostgresSignalsRepo struct {
	db *sql.DB
}

func NewPostgresSignalsRepo(db *sql.DB) *PostgresSignalsRepo {
	return &PostgresSignalsRepo{db: db}
}

var _ SignalsRepo = (*PostgresSignalsRepo)(nil)

const signalColumns = `signal_id::text, device_id, time_ms, data_length, data_volume, raw_data, created_at`

// EnsureSchema creates the signals table and its indexes if missing.
// Mirrors migrations/001_create_xray_signals.sql.
func (r *PostgresSignalsRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS xray_signals (
			signal_id   UUID PRIMARY KEY,
			device_id   TEXT NOT NULL,
			time_ms     BIGINT NOT NULL,
			data_length INTEGER NOT NULL,
			data_volume INTEGER NOT NULL,
			raw_data    JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_xray_signals_device_time ON xray_signals (device_id, time_ms);
		CREATE INDEX IF NOT EXISTS idx_xray_signals_time ON xray_signals (time_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure xray_signals schema: %w", err)
	}
	return nil
}

func (r *PostgresSignalsRepo) Insert(ctx context.Context, rec *domain.SignalRecord) (*domain.SignalRecord, error) {
	raw, err := domain.EncodeSamples(rec.RawData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode samples: %w", err)
	}

	id := uuid.New().String()
	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO xray_signals (signal_id, device_id, time_ms, data_length, data_volume, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		id, rec.DeviceID, rec.Time, rec.DataLength, rec.DataVolume, raw,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert signal: %w", err)
	}

	saved := *rec
	saved.ID = id
	saved.CreatedAt = createdAt
	return &saved, nil
}

func (r *PostgresSignalsRepo) FindByID(ctx context.Context, id string) (*domain.SignalRecord, error) {
	// Invalid uuids cannot match anything; treat them as absence rather than
	// letting the uuid cast surface as a query error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM xray_signals WHERE signal_id = $1`, id)
	rec, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signal %s: %w", id, err)
	}
	return rec, nil
}

func (r *PostgresSignalsRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM xray_signals WHERE signal_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete signal %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresSignalsRepo) Find(ctx context.Context, filters *SignalFilters, offset, limit int) ([]*domain.SignalRecord, error) {
	where, args := BuildWhere(filters)
	order := BuildOrderBy(sortByOf(filters), sortOrderOf(filters))

	query := `SELECT ` + signalColumns + ` FROM xray_signals` + where + order +
		fmt.Sprintf(" OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []*domain.SignalRecord
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signals: %w", err)
	}
	return records, nil
}

func (r *PostgresSignalsRepo) Count(ctx context.Context, filters *SignalFilters) (int, error) {
	where, args := BuildWhere(filters)

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM xray_signals`+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals: %w", err)
	}
	return total, nil
}

func (r *PostgresSignalsRepo) DeleteAll(ctx context.Context, filters *SignalFilters) (int, error) {
	where, args := BuildWhere(filters)

	res, err := r.db.ExecContext(ctx, `DELETE FROM xray_signals`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete signals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*domain.SignalRecord, error) {
	var rec domain.SignalRecord
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.DeviceID, &rec.Time, &rec.DataLength, &rec.DataVolume, &raw, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.RawData); err != nil {
		return nil, fmt.Errorf("failed to decode raw_data: %w", err)
	}
	return &rec, nil
}

func sortByOf(f *SignalFilters) string {
	if f == nil {
		return ""
	}
	return f.SortBy
}

func sortOrderOf(f *SignalFilters) string {
	if f == nil {
		return ""
	}
	return f.SortOrder
}
