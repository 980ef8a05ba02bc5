package alerting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoAlerts is returned when no alert exists for a plant and metric.
var ErrNoAlerts = errors.New("no alerts recorded")

// Repository defines the interface for alert persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Insert stores a dispatched alert.
	Insert(ctx context.Context, a *Alert) error

	// LatestFor retrieves the most recent alert for a plant and metric,
	// regardless of direction. Returns ErrNoAlerts when none exists.
	LatestFor(ctx context.Context, plantID, metric string) (*Alert, error)
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

// Insert stores a dispatched alert.
func (r *SQLiteRepository) Insert(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (plant_id, device_id, metric, value, threshold, direction, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sentAt := a.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, query,
		a.PlantID, a.DeviceID, a.Metric, a.Value, a.Threshold, a.Direction,
		sentAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// LatestFor retrieves the most recent alert for a plant and metric.
func (r *SQLiteRepository) LatestFor(ctx context.Context, plantID, metric string) (*Alert, error) {
	query := `
		SELECT id, plant_id, device_id, metric, value, threshold, direction, sent_at
		FROM alerts
		WHERE plant_id = ? AND metric = ?
		ORDER BY sent_at DESC
		LIMIT 1`

	var a Alert
	var sentAt string
	err := r.db.QueryRowContext(ctx, query, plantID, metric).Scan(
		&a.ID, &a.PlantID, &a.DeviceID, &a.Metric, &a.Value, &a.Threshold, &a.Direction, &sentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAlerts
		}
		return nil, fmt.Errorf("querying latest alert: %w", err)
	}

	if ts, err := time.Parse(time.RFC3339, sentAt); err == nil {
		a.SentAt = ts
	}
	return &a, nil
}
