package telemetry

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository appends telemetry reports to durable storage.
type Repository interface {
	Insert(ctx context.Context, report Report) error
	CountByDevice(ctx context.Context, deviceID string) (int, error)
}

// SQLiteRepository implements Repository over the relay's SQLite store.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository using the given database handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert appends one report row. Missing sensor readings are stored with
// their defaults.
func (r *SQLiteRepository) Insert(ctx context.Context, report Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telemetries (device_id, type, model_id, status, temp, humidity, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.DeviceID, report.Type, report.ModelID, report.Status,
		report.TempValue(), report.HumidityValue(), report.TS,
	)
	if err != nil {
		return fmt.Errorf("inserting report for %s: %w", report.DeviceID, err)
	}
	return nil
}

// CountByDevice returns the number of stored reports for deviceID.
func (r *SQLiteRepository) CountByDevice(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetries WHERE device_id = ?`, deviceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting reports for %s: %w", deviceID, err)
	}
	return count, nil
}
