package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/plant"
	"github.com/plantops/plantops-core/internal/telemetry"
)

// Evaluator checks telemetry readings against plant thresholds and
// applies the alert cooldown.
//
// The cooldown is keyed by plant and metric only. A low-moisture alert
// therefore suppresses a high-moisture alert within the window; in
// practice a metric does not swing across both bounds inside one
// cooldown, and the coarser key keeps the lookup to a single row.
type Evaluator struct {
	repo     Repository
	cooldown time.Duration
	log      *logging.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewEvaluator creates an evaluator with the given cooldown window.
func NewEvaluator(repo Repository, cooldown time.Duration, log *logging.Logger) *Evaluator {
	return &Evaluator{
		repo:     repo,
		cooldown: cooldown,
		log:      log.With("component", "evaluator"),
		now:      time.Now,
	}
}

// Evaluate compares a payload against a plant's thresholds and returns
// every breach found. Metrics are checked in canonical order, the
// minimum bound before the maximum, so output order is deterministic.
// A plant without thresholds yields no violations.
func (e *Evaluator) Evaluate(p *plant.Plant, deviceID string, payload *telemetry.Payload) []Violation {
	if p.Thresholds == nil {
		return nil
	}

	var violations []Violation
	for _, mv := range payload.MetricValues() {
		bound := boundFor(p.Thresholds, mv.Name)
		if bound == nil {
			continue
		}

		if bound.Min != nil && mv.Value < *bound.Min {
			violations = append(violations, Violation{
				PlantID:   p.ID,
				PlantName: p.Name,
				DeviceID:  deviceID,
				Metric:    mv.Name,
				Value:     mv.Value,
				Threshold: *bound.Min,
				Direction: DirectionMin,
			})
		}
		if bound.Max != nil && mv.Value > *bound.Max {
			violations = append(violations, Violation{
				PlantID:   p.ID,
				PlantName: p.Name,
				DeviceID:  deviceID,
				Metric:    mv.Name,
				Value:     mv.Value,
				Threshold: *bound.Max,
				Direction: DirectionMax,
			})
		}
	}
	return violations
}

// ShouldAlert reports whether a violation for the plant and metric is
// outside the cooldown window. A lookup failure suppresses the alert
// and returns the error; when in doubt, stay quiet.
func (e *Evaluator) ShouldAlert(ctx context.Context, plantID, metric string) (bool, error) {
	last, err := e.repo.LatestFor(ctx, plantID, metric)
	if err != nil {
		if errors.Is(err, ErrNoAlerts) {
			return true, nil
		}
		return false, fmt.Errorf("checking alert cooldown: %w", err)
	}

	return e.now().Sub(last.SentAt) >= e.cooldown, nil
}

// RecordAlert persists a dispatched violation for cooldown bookkeeping.
// Failures are logged, not returned; a missed record widens the next
// alert, it does not lose this one.
func (e *Evaluator) RecordAlert(ctx context.Context, v Violation) {
	alert := &Alert{
		PlantID:   v.PlantID,
		DeviceID:  v.DeviceID,
		Metric:    v.Metric,
		Value:     v.Value,
		Threshold: v.Threshold,
		Direction: v.Direction,
		SentAt:    e.now(),
	}
	if err := e.repo.Insert(ctx, alert); err != nil {
		e.log.Error("failed to record alert",
			"plant_id", v.PlantID,
			"metric", v.Metric,
			"error", err)
	}
}

// boundFor returns the configured bound for a metric, or nil.
func boundFor(t *plant.Thresholds, metric string) *plant.Bound {
	switch metric {
	case telemetry.MetricSoilMoisture:
		return t.SoilMoisture
	case telemetry.MetricTemperature:
		return t.Temperature
	case telemetry.MetricHumidity:
		return t.Humidity
	case telemetry.MetricLightLevel:
		return t.LightLevel
	default:
		return nil
	}
}
