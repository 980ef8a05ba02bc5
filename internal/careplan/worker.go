package careplan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/plant"
	"github.com/plantops/plantops-core/internal/telemetry"
)

// historyWindow is how far back the prompt's telemetry summary reaches.
const historyWindow = 24 * time.Hour

// Worker fulfils care plan requests. It is the handler behind the care
// plan queue; each request builds a prompt from the plant's recent
// telemetry, runs the generator, and stores the result.
type Worker struct {
	readings  telemetry.Repository
	plans     Repository
	generator Generator
	log       *logging.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewWorker creates a care plan worker.
func NewWorker(readings telemetry.Repository, plans Repository, generator Generator, log *logging.Logger) *Worker {
	return &Worker{
		readings:  readings,
		plans:     plans,
		generator: generator,
		log:       log.With("component", "careplan"),
		now:       time.Now,
	}
}

// Handle generates and stores one care plan. Satisfies queue.Handler.
func (w *Worker) Handle(ctx context.Context, req Request) error {
	prompt, err := w.buildPrompt(ctx, req)
	if err != nil {
		return fmt.Errorf("building prompt for plant %s: %w", req.PlantID, err)
	}

	content, err := w.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generating care plan for plant %s: %w", req.PlantID, err)
	}

	p := &Plan{PlantID: req.PlantID, Content: content, GeneratedAt: w.now()}
	if err := w.plans.Insert(ctx, p); err != nil {
		return fmt.Errorf("storing care plan for plant %s: %w", req.PlantID, err)
	}

	w.log.Info("care plan generated", "plant_id", req.PlantID, "plan_id", p.ID)
	return nil
}

// buildPrompt assembles the generator prompt: plant identity,
// configured thresholds, the latest reading and a summary of the last
// day of telemetry. A plant with no telemetry still gets a prompt.
func (w *Worker) buildPrompt(ctx context.Context, req Request) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Plant: %s\n", req.PlantName)
	if req.Species != nil {
		fmt.Fprintf(&b, "Species: %s\n", *req.Species)
	}
	writeThresholds(&b, req.Thresholds)

	latest, err := w.readings.LatestByPlant(ctx, req.PlantID)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoReadings) {
			b.WriteString("No sensor readings recorded yet.\n")
			return b.String(), nil
		}
		return "", err
	}
	writeLatest(&b, latest)

	history, err := w.readings.HistoryByPlant(ctx, req.PlantID, w.now().Add(-historyWindow))
	if err != nil {
		return "", err
	}
	writeSummary(&b, history)

	return b.String(), nil
}

func writeThresholds(b *strings.Builder, t *plant.Thresholds) {
	if t == nil {
		return
	}
	b.WriteString("Configured thresholds:\n")
	for _, entry := range []struct {
		name  string
		bound *plant.Bound
	}{
		{telemetry.MetricSoilMoisture, t.SoilMoisture},
		{telemetry.MetricTemperature, t.Temperature},
		{telemetry.MetricHumidity, t.Humidity},
		{telemetry.MetricLightLevel, t.LightLevel},
	} {
		if entry.bound == nil {
			continue
		}
		fmt.Fprintf(b, "  %s:", entry.name)
		if entry.bound.Min != nil {
			fmt.Fprintf(b, " min %.1f", *entry.bound.Min)
		}
		if entry.bound.Max != nil {
			fmt.Fprintf(b, " max %.1f", *entry.bound.Max)
		}
		b.WriteString("\n")
	}
}

func writeLatest(b *strings.Builder, r *telemetry.Reading) {
	fmt.Fprintf(b, "Latest reading (%s):\n", r.Time.UTC().Format(time.RFC3339))
	for _, m := range []struct {
		name  string
		value *float64
	}{
		{telemetry.MetricSoilMoisture, r.SoilMoisture},
		{telemetry.MetricTemperature, r.Temperature},
		{telemetry.MetricHumidity, r.Humidity},
		{telemetry.MetricLightLevel, r.LightLevel},
	} {
		if m.value != nil {
			fmt.Fprintf(b, "  %s: %.1f\n", m.name, *m.value)
		}
	}
}

// writeSummary appends avg/min/max per metric over the history window.
func writeSummary(b *strings.Builder, history []telemetry.Reading) {
	if len(history) == 0 {
		return
	}

	fmt.Fprintf(b, "Last 24h (%d readings):\n", len(history))
	for _, m := range []struct {
		name   string
		values func(*telemetry.Reading) *float64
	}{
		{telemetry.MetricSoilMoisture, func(r *telemetry.Reading) *float64 { return r.SoilMoisture }},
		{telemetry.MetricTemperature, func(r *telemetry.Reading) *float64 { return r.Temperature }},
		{telemetry.MetricHumidity, func(r *telemetry.Reading) *float64 { return r.Humidity }},
		{telemetry.MetricLightLevel, func(r *telemetry.Reading) *float64 { return r.LightLevel }},
	} {
		stats, ok := summarize(history, m.values)
		if !ok {
			continue
		}
		fmt.Fprintf(b, "  %s: avg %.1f, min %.1f, max %.1f\n",
			m.name, stats.avg, stats.min, stats.max)
	}
}

type metricStats struct {
	avg, min, max float64
}

func summarize(history []telemetry.Reading, pick func(*telemetry.Reading) *float64) (metricStats, bool) {
	var sum float64
	var count int
	stats := metricStats{min: math.Inf(1), max: math.Inf(-1)}

	for i := range history {
		v := pick(&history[i])
		if v == nil {
			continue
		}
		sum += *v
		count++
		stats.min = math.Min(stats.min, *v)
		stats.max = math.Max(stats.max, *v)
	}
	if count == 0 {
		return metricStats{}, false
	}

	stats.avg = round1(sum / float64(count))
	stats.min = round1(stats.min)
	stats.max = round1(stats.max)
	return stats, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
