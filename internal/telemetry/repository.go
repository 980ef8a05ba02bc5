package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoReadings is returned when a plant has no telemetry on record.
var ErrNoReadings = errors.New("no telemetry readings")

// Repository defines the interface for telemetry persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Insert stores a telemetry reading.
	Insert(ctx context.Context, r *Reading) error

	// LatestByPlant retrieves the most recent reading for a plant.
	// Returns ErrNoReadings if the plant has no telemetry.
	LatestByPlant(ctx context.Context, plantID string) (*Reading, error)

	// HistoryByPlant retrieves readings for a plant since the given time,
	// oldest first.
	HistoryByPlant(ctx context.Context, plantID string, since time.Time) ([]Reading, error)
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

const readingColumns = `time, device_id, plant_id, soil_moisture, temperature, humidity, light_level`

// Insert stores a telemetry reading.
func (r *SQLiteRepository) Insert(ctx context.Context, reading *Reading) error {
	query := `
		INSERT INTO telemetry (time, device_id, plant_id, soil_moisture, temperature, humidity, light_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		reading.Time.UTC().Format(time.RFC3339),
		reading.DeviceID,
		nullableString(reading.PlantID),
		nullableFloat(reading.SoilMoisture),
		nullableFloat(reading.Temperature),
		nullableFloat(reading.Humidity),
		nullableFloat(reading.LightLevel),
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry reading: %w", err)
	}
	return nil
}

// LatestByPlant retrieves the most recent reading for a plant.
func (r *SQLiteRepository) LatestByPlant(ctx context.Context, plantID string) (*Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM telemetry
		WHERE plant_id = ?
		ORDER BY time DESC
		LIMIT 1`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, plantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReadings
		}
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	return reading, nil
}

// HistoryByPlant retrieves readings for a plant since the given time, oldest first.
func (r *SQLiteRepository) HistoryByPlant(ctx context.Context, plantID string, since time.Time) ([]Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM telemetry
		WHERE plant_id = ? AND time >= ?
		ORDER BY time ASC`

	rows, err := r.db.QueryContext(ctx, query, plantID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying telemetry history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning telemetry reading: %w", err)
		}
		readings = append(readings, *reading)
	}
	return readings, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanReading.
type scanner interface {
	Scan(dest ...any) error
}

// scanReading scans a telemetry row in readingColumns order.
func scanReading(row scanner) (*Reading, error) {
	var reading Reading
	var ts string
	var plantID sql.NullString
	var moisture, temp, humidity, light sql.NullFloat64

	if err := row.Scan(&ts, &reading.DeviceID, &plantID, &moisture, &temp, &humidity, &light); err != nil {
		return nil, err
	}

	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		reading.Time = parsed
	}
	if plantID.Valid {
		reading.PlantID = &plantID.String
	}
	reading.SoilMoisture = floatPtr(moisture)
	reading.Temperature = floatPtr(temp)
	reading.Humidity = floatPtr(humidity)
	reading.LightLevel = floatPtr(light)

	return &reading, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// nullableString converts an optional string to a driver-friendly value.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullableFloat converts an optional float to a driver-friendly value.
func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
