// Package influxdb mirrors telemetry readings to an InfluxDB bucket.
//
// The mirror is optional and write-only: SQLite remains the system of
// record, InfluxDB exists for dashboarding. Writes go through the
// client's non-blocking API and are batched; a mirror outage costs
// chart points, never readings.
package influxdb

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/plantops/plantops-core/internal/infrastructure/config"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/telemetry"
)

const measurement = "telemetry"

// Writer mirrors readings to InfluxDB.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      *logging.Logger
}

// NewWriter creates a mirror writer, or nil when the mirror is
// disabled. Callers treat a nil *Writer as a no-op.
func NewWriter(cfg config.InfluxDBConfig, log *logging.Logger) *Writer {
	if !cfg.Enabled {
		return nil
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	w := &Writer{
		client:   client,
		writeAPI: writeAPI,
		log:      log.With("component", "influxdb"),
	}

	// Async write errors surface on a channel, not at the call site.
	go func() {
		for err := range writeAPI.Errors() {
			w.log.Warn("mirror write failed", "error", err)
		}
	}()

	return w
}

// WriteReading queues one reading for the mirror. Never blocks.
func (w *Writer) WriteReading(r *telemetry.Reading) {
	tags := map[string]string{"device_id": r.DeviceID}
	if r.PlantID != nil {
		tags["plant_id"] = *r.PlantID
	}

	fields := map[string]any{}
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
			fields[m.name] = *m.value
		}
	}
	if len(fields) == 0 {
		return
	}

	point := influxdb2.NewPoint(measurement, tags, fields, r.Time)
	w.writeAPI.WritePoint(point)
}

// Close flushes pending points and shuts the client down.
func (w *Writer) Close() {
	w.writeAPI.Flush()
	w.client.Close()
}
