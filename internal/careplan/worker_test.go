package careplan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/plant"
	"github.com/plantops/plantops-core/internal/telemetry"
)

func f64(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

// stubReadings serves fixed telemetry.
type stubReadings struct {
	latest  *telemetry.Reading
	history []telemetry.Reading
}

func (s *stubReadings) Insert(_ context.Context, _ *telemetry.Reading) error { return nil }

func (s *stubReadings) LatestByPlant(_ context.Context, _ string) (*telemetry.Reading, error) {
	if s.latest == nil {
		return nil, telemetry.ErrNoReadings
	}
	return s.latest, nil
}

func (s *stubReadings) HistoryByPlant(_ context.Context, _ string, _ time.Time) ([]telemetry.Reading, error) {
	return s.history, nil
}

// stubPlans records inserted plans.
type stubPlans struct {
	inserted []Plan
	insErr   error
}

func (s *stubPlans) Insert(_ context.Context, p *Plan) error {
	if s.insErr != nil {
		return s.insErr
	}
	s.inserted = append(s.inserted, *p)
	return nil
}

func (s *stubPlans) LatestByPlant(_ context.Context, _ string) (*Plan, error) {
	return nil, ErrPlanNotFound
}

// stubGenerator captures the prompt and returns fixed content.
type stubGenerator struct {
	prompt  string
	content string
	err     error
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

func testRequest() Request {
	return Request{
		PlantID:   "p1",
		PlantName: "Monstera",
		Species:   strPtr("Monstera deliciosa"),
		Thresholds: &plant.Thresholds{
			SoilMoisture: &plant.Bound{Min: f64(30), Max: f64(80)},
		},
	}
}

func TestWorker_Handle(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	readings := &stubReadings{
		latest: &telemetry.Reading{
			Time:         now.Add(-5 * time.Minute),
			SoilMoisture: f64(45),
			Temperature:  f64(22),
		},
		history: []telemetry.Reading{
			{SoilMoisture: f64(40), Temperature: f64(21.0)},
			{SoilMoisture: f64(50), Temperature: f64(23.2)},
		},
	}
	plans := &stubPlans{}
	gen := &stubGenerator{content: "Water twice a week."}

	w := NewWorker(readings, plans, gen, logging.Discard())
	w.now = func() time.Time { return now }

	if err := w.Handle(context.Background(), testRequest()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(plans.inserted) != 1 {
		t.Fatalf("stored %d plans, want 1", len(plans.inserted))
	}
	p := plans.inserted[0]
	if p.PlantID != "p1" {
		t.Errorf("PlantID = %q, want p1", p.PlantID)
	}
	if p.Content != "Water twice a week." {
		t.Errorf("Content = %q, want generator output", p.Content)
	}

	for _, want := range []string{
		"Plant: Monstera",
		"Species: Monstera deliciosa",
		"soil_moisture: min 30.0 max 80.0",
		"Latest reading",
		"Last 24h (2 readings)",
		"soil_moisture: avg 45.0, min 40.0, max 50.0",
		"temperature: avg 22.1, min 21.0, max 23.2",
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q\nprompt:\n%s", want, gen.prompt)
		}
	}
}

func TestWorker_Handle_NoTelemetry(t *testing.T) {
	plans := &stubPlans{}
	gen := &stubGenerator{content: "General guidance."}

	w := NewWorker(&stubReadings{}, plans, gen, logging.Discard())
	if err := w.Handle(context.Background(), testRequest()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(gen.prompt, "No sensor readings recorded yet.") {
		t.Errorf("prompt missing no-readings note:\n%s", gen.prompt)
	}
	if len(plans.inserted) != 1 {
		t.Errorf("stored %d plans, want 1", len(plans.inserted))
	}
}

func TestWorker_Handle_GeneratorFailure(t *testing.T) {
	plans := &stubPlans{}
	gen := &stubGenerator{err: errors.New("rate limited")}

	w := NewWorker(&stubReadings{}, plans, gen, logging.Discard())
	if err := w.Handle(context.Background(), testRequest()); err == nil {
		t.Error("Handle() error = nil, want generator error")
	}
	if len(plans.inserted) != 0 {
		t.Errorf("stored %d plans after generator failure, want 0", len(plans.inserted))
	}
}

func TestWorker_Handle_StoreFailure(t *testing.T) {
	plans := &stubPlans{insErr: errors.New("disk full")}
	gen := &stubGenerator{content: "plan"}

	w := NewWorker(&stubReadings{}, plans, gen, logging.Discard())
	if err := w.Handle(context.Background(), testRequest()); err == nil {
		t.Error("Handle() error = nil, want store error")
	}
}
