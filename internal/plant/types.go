package plant

import "time"

// Plant represents a monitored plant and its care configuration.
type Plant struct {
	ID        string
	Name      string
	Species   *string
	Position  *string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Thresholds is the per-metric alert configuration.
	// Nil means the plant has no thresholds and is never evaluated.
	Thresholds *Thresholds
}

// Thresholds holds the per-metric bound configuration for a plant.
// Each metric is independently optional, as is each bound within a metric.
type Thresholds struct {
	SoilMoisture *Bound `json:"soil_moisture,omitempty"`
	Temperature  *Bound `json:"temperature,omitempty"`
	Humidity     *Bound `json:"humidity,omitempty"`
	LightLevel   *Bound `json:"light_level,omitempty"`
}

// Bound is a minimum/maximum pair. Either side may be nil (unbounded).
// Nothing prevents min > max; a misconfigured bound simply yields a
// violation on each side.
type Bound struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}
