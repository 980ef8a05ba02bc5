package plant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for plant persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a plant by its unique identifier.
	// Returns ErrPlantNotFound if the plant does not exist.
	GetByID(ctx context.Context, id string) (*Plant, error)

	// Create inserts a new plant.
	Create(ctx context.Context, p *Plant) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a plant by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Plant, error) {
	query := `
		SELECT id, name, species, thresholds, position, created_at, updated_at
		FROM plants
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)

	var p Plant
	var thresholdsJSON sql.NullString
	var species, position sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &species, &thresholdsJSON, &position, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlantNotFound
		}
		return nil, fmt.Errorf("querying plant by id: %w", err)
	}

	if species.Valid {
		p.Species = &species.String
	}
	if position.Valid {
		p.Position = &position.String
	}
	if thresholdsJSON.Valid && thresholdsJSON.String != "" {
		var t Thresholds
		if err := json.Unmarshal([]byte(thresholdsJSON.String), &t); err != nil {
			return nil, fmt.Errorf("unmarshalling plant thresholds: %w", err)
		}
		p.Thresholds = &t
	}
	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)

	return &p, nil
}

// Create inserts a new plant.
func (r *SQLiteRepository) Create(ctx context.Context, p *Plant) error {
	var thresholdsJSON any
	if p.Thresholds != nil {
		data, err := json.Marshal(p.Thresholds)
		if err != nil {
			return fmt.Errorf("marshalling plant thresholds: %w", err)
		}
		thresholdsJSON = string(data)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO plants (id, name, species, thresholds, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, nullable(p.Species), thresholdsJSON, nullable(p.Position), now, now)
	if err != nil {
		return fmt.Errorf("inserting plant: %w", err)
	}
	return nil
}

// nullable converts an optional string to a driver-friendly value.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// parseTimestamp parses an RFC3339 timestamp, returning the zero time on failure.
func parseTimestamp(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
