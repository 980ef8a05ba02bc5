// Package careplan generates plant care plans from recent telemetry
// using a language model.
package careplan

import (
	"context"
	"time"

	"github.com/plantops/plantops-core/internal/plant"
)

// Request asks for a care plan for one plant. It carries everything the
// generator needs so the worker does not re-query the plant registry.
type Request struct {
	PlantID    string
	PlantName  string
	Species    *string
	Thresholds *plant.Thresholds
}

// Plan is a stored generated care plan.
type Plan struct {
	ID          string
	PlantID     string
	Content     string
	GeneratedAt time.Time
}

// Generator produces care plan text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
