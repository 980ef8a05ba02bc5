package careplan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrPlanNotFound is returned when a plant has no care plan on record.
var ErrPlanNotFound = errors.New("care plan not found")

// Repository defines the interface for care plan persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Insert stores a generated plan, assigning it an ID.
	Insert(ctx context.Context, p *Plan) error

	// LatestByPlant retrieves the most recent plan for a plant.
	// Returns ErrPlanNotFound when none exists.
	LatestByPlant(ctx context.Context, plantID string) (*Plan, error)
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

// Insert stores a generated plan, assigning it an ID.
func (r *SQLiteRepository) Insert(ctx context.Context, p *Plan) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now()
	}

	query := `
		INSERT INTO care_plans (id, plant_id, content, generated_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.PlantID, p.Content, p.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting care plan: %w", err)
	}
	return nil
}

// LatestByPlant retrieves the most recent plan for a plant.
func (r *SQLiteRepository) LatestByPlant(ctx context.Context, plantID string) (*Plan, error) {
	query := `
		SELECT id, plant_id, content, generated_at
		FROM care_plans
		WHERE plant_id = ?
		ORDER BY generated_at DESC
		LIMIT 1`

	var p Plan
	var generatedAt string
	err := r.db.QueryRowContext(ctx, query, plantID).Scan(&p.ID, &p.PlantID, &p.Content, &generatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("querying latest care plan: %w", err)
	}

	if ts, err := time.Parse(time.RFC3339, generatedAt); err == nil {
		p.GeneratedAt = ts
	}
	return &p, nil
}
