package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Identity is a single row of the identity pool.
type Identity struct {
	// DeviceID is the unique identity key (e.g. "simdevice0001").
	DeviceID string

	// AssignedTo is the requester token the identity is bound to,
	// or nil while the identity is unassigned.
	AssignedTo *string

	CreatedAt time.Time
}

// Repository defines the persistence operations for the identity pool.
// The SQLite implementation is the production store; tests may substitute
// their own to exercise failure paths.
type Repository interface {
	// Insert records a new unassigned identity key.
	Insert(ctx context.Context, deviceID string) error

	// Claim atomically binds the lowest unassigned key to token and
	// returns it. Returns ErrPoolExhausted when every key is assigned.
	Claim(ctx context.Context, token string) (string, error)

	// Get retrieves one identity. Returns ErrNotFound if absent.
	Get(ctx context.Context, deviceID string) (*Identity, error)

	// List returns all identity keys in ascending order.
	List(ctx context.Context) ([]string, error)

	// ReleaseAll clears every binding without deleting keys.
	ReleaseAll(ctx context.Context) error

	// Delete removes one identity. Returns ErrNotFound if absent.
	Delete(ctx context.Context, deviceID string) error

	// DeleteAll removes every identity in one statement.
	DeleteAll(ctx context.Context) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert records a new unassigned identity key.
func (r *SQLiteRepository) Insert(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO identities (device_id) VALUES (?)", deviceID,
	)
	if err != nil {
		return fmt.Errorf("inserting identity: %w", err)
	}
	return nil
}

// Claim atomically binds the lowest unassigned key to token.
//
// The selection and the binding happen inside a single conditional UPDATE,
// so the store itself serialises concurrent claimers; no application-level
// locking is involved and multiple relay processes can share one database.
func (r *SQLiteRepository) Claim(ctx context.Context, token string) (string, error) {
	query := `
		UPDATE identities
		SET assigned_to = ?
		WHERE device_id = (
			SELECT device_id FROM identities
			WHERE assigned_to IS NULL
			ORDER BY device_id ASC
			LIMIT 1
		)
		RETURNING device_id`

	var deviceID string
	err := r.db.QueryRowContext(ctx, query, token).Scan(&deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPoolExhausted
		}
		return "", fmt.Errorf("claiming identity: %w", err)
	}
	return deviceID, nil
}

// Get retrieves one identity row.
func (r *SQLiteRepository) Get(ctx context.Context, deviceID string) (*Identity, error) {
	query := `
		SELECT device_id, assigned_to, created_at
		FROM identities
		WHERE device_id = ?`

	var id Identity
	var assignedTo sql.NullString
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&id.DeviceID, &assignedTo, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying identity: %w", err)
	}

	if assignedTo.Valid {
		id.AssignedTo = &assignedTo.String
	}
	id.CreatedAt, _ = time.Parse("2006-01-02T15:04:05Z", createdAt) //nolint:errcheck // Format is controlled

	return &id, nil
}

// List returns all identity keys in ascending order.
func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT device_id FROM identities ORDER BY device_id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning identity row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}
	return keys, nil
}

// ReleaseAll clears every binding without deleting keys.
func (r *SQLiteRepository) ReleaseAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "UPDATE identities SET assigned_to = NULL")
	if err != nil {
		return fmt.Errorf("releasing identities: %w", err)
	}
	return nil
}

// Delete removes one identity.
func (r *SQLiteRepository) Delete(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM identities WHERE device_id = ?", deviceID,
	)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every identity in one statement.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM identities")
	if err != nil {
		return fmt.Errorf("deleting identities: %w", err)
	}
	return nil
}
