// Package ingest processes telemetry messages from field devices.
//
// The ingest path runs on the MQTT dispatch goroutine: parse the
// payload, resolve the reporting device, persist the reading, evaluate
// thresholds, and enqueue alerts. Every failure short of a broken
// payload degrades to a partial result; telemetry from an unregistered
// device is still stored, just without a plant attribution, so no data
// is lost while provisioning catches up.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plantops/plantops-core/internal/alerting"
	"github.com/plantops/plantops-core/internal/device"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/infrastructure/mqtt"
	"github.com/plantops/plantops-core/internal/plant"
	"github.com/plantops/plantops-core/internal/queue"
	"github.com/plantops/plantops-core/internal/telemetry"
)

// Mirror receives a copy of each stored reading. The InfluxDB writer
// satisfies it; a nil mirror disables mirroring.
type Mirror interface {
	WriteReading(r *telemetry.Reading)
}

// Handler ingests telemetry payloads.
type Handler struct {
	devices   device.Repository
	plants    plant.Repository
	readings  telemetry.Repository
	evaluator *alerting.Evaluator
	alerts    *queue.Queue[alerting.Notification]
	mirror    Mirror
	log       *logging.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewHandler creates a telemetry ingest handler. Pass a nil mirror to
// disable time-series mirroring.
func NewHandler(
	devices device.Repository,
	plants plant.Repository,
	readings telemetry.Repository,
	evaluator *alerting.Evaluator,
	alerts *queue.Queue[alerting.Notification],
	mirror Mirror,
	log *logging.Logger,
) *Handler {
	return &Handler{
		devices:   devices,
		plants:    plants,
		readings:  readings,
		evaluator: evaluator,
		alerts:    alerts,
		mirror:    mirror,
		log:       log.With("component", "ingest"),
	}
}

// HandleTelemetry processes one telemetry message.
func (h *Handler) HandleTelemetry(topic string, payload []byte) error {
	deviceID, err := mqtt.DeviceID(topic, mqtt.LeafTelemetry)
	if err != nil {
		return fmt.Errorf("parsing telemetry topic: %w", err)
	}

	p, err := telemetry.ParsePayload(payload)
	if err != nil {
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	ctx := context.Background()

	// Device-supplied timestamps win; clockless devices get ingest time.
	readingTime := h.currentTime()
	if p.Timestamp != nil {
		readingTime = *p.Timestamp
	}

	plantID, assignedPlant := h.resolvePlant(ctx, deviceID)

	reading := &telemetry.Reading{
		Time:         readingTime,
		DeviceID:     deviceID,
		PlantID:      plantID,
		SoilMoisture: p.SoilMoisture,
		Temperature:  p.Temperature,
		Humidity:     p.Humidity,
		LightLevel:   p.LightLevel,
	}

	if err := h.readings.Insert(ctx, reading); err != nil {
		return fmt.Errorf("storing reading from %s: %w", deviceID, err)
	}

	if h.mirror != nil {
		h.mirror.WriteReading(reading)
	}

	if assignedPlant != nil {
		h.evaluate(ctx, assignedPlant, deviceID, p)
	}

	return nil
}

// resolvePlant maps a device to its plant assignment. The plant id
// comes from the device row and sticks to the reading even when the
// plant record itself cannot be fetched; only evaluation needs the full
// record, so that failure just skips thresholds for this message.
func (h *Handler) resolvePlant(ctx context.Context, deviceID string) (*string, *plant.Plant) {
	d, err := h.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			h.log.Warn("telemetry from unregistered device", "device_id", deviceID)
		} else {
			h.log.Error("device lookup failed", "device_id", deviceID, "error", err)
		}
		return nil, nil
	}
	if d.PlantID == nil {
		return nil, nil
	}

	p, err := h.plants.GetByID(ctx, *d.PlantID)
	if err != nil {
		h.log.Error("plant lookup failed",
			"device_id", deviceID,
			"plant_id", *d.PlantID,
			"error", err)
		return d.PlantID, nil
	}
	return d.PlantID, p
}

// evaluate runs threshold checks and queues alertable violations.
//
// The alert is recorded as soon as it passes the cooldown check, before
// it is queued. Delivery is best-effort and never retried, so tying the
// record to a successful send would let a dead sink re-arm the same
// violation on every reading.
func (h *Handler) evaluate(ctx context.Context, p *plant.Plant, deviceID string, payload *telemetry.Payload) {
	for _, v := range h.evaluator.Evaluate(p, deviceID, payload) {
		ok, err := h.evaluator.ShouldAlert(ctx, v.PlantID, v.Metric)
		if err != nil {
			h.log.Error("cooldown check failed, alert suppressed",
				"plant_id", v.PlantID,
				"metric", v.Metric,
				"error", err)
			continue
		}
		if !ok {
			h.log.Debug("alert suppressed by cooldown",
				"plant_id", v.PlantID,
				"metric", v.Metric)
			continue
		}

		h.evaluator.RecordAlert(ctx, v)

		if err := h.alerts.Enqueue(alerting.Notification(v)); err != nil {
			h.log.Warn("alert dropped, queue full",
				"plant_id", v.PlantID,
				"metric", v.Metric)
		}
	}
}

func (h *Handler) currentTime() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now().UTC()
}
