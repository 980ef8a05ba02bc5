package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metric names as they appear in payloads and storage.
const (
	MetricSoilMoisture = "soil_moisture"
	MetricTemperature  = "temperature"
	MetricHumidity     = "humidity"
	MetricLightLevel   = "light_level"
)

// MetricNames lists the known metrics in canonical evaluation order.
var MetricNames = []string{
	MetricSoilMoisture,
	MetricTemperature,
	MetricHumidity,
	MetricLightLevel,
}

// Payload is a telemetry report as published by a device. Every metric is
// optional; a device reports whatever sensors it carries. Timestamp is
// optional too and defaults to the ingest time when absent.
type Payload struct {
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	SoilMoisture *float64   `json:"soil_moisture,omitempty"`
	Temperature  *float64   `json:"temperature,omitempty"`
	Humidity     *float64   `json:"humidity,omitempty"`
	LightLevel   *float64   `json:"light_level,omitempty"`
}

// ParsePayload decodes a telemetry payload from JSON.
func ParsePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding telemetry payload: %w", err)
	}
	return &p, nil
}

// MetricValues returns the payload's present metrics in canonical order.
// Absent metrics are skipped.
func (p *Payload) MetricValues() []MetricValue {
	var values []MetricValue
	for _, mv := range []struct {
		name  string
		value *float64
	}{
		{MetricSoilMoisture, p.SoilMoisture},
		{MetricTemperature, p.Temperature},
		{MetricHumidity, p.Humidity},
		{MetricLightLevel, p.LightLevel},
	} {
		if mv.value != nil {
			values = append(values, MetricValue{Name: mv.name, Value: *mv.value})
		}
	}
	return values
}

// MetricValue is a single named metric reading.
type MetricValue struct {
	Name  string
	Value float64
}

// Reading is a stored telemetry row. PlantID is nil when the reporting
// device was not assigned to a plant at ingest time.
type Reading struct {
	Time         time.Time
	DeviceID     string
	PlantID      *string
	SoilMoisture *float64
	Temperature  *float64
	Humidity     *float64
	LightLevel   *float64
}
