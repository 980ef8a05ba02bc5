package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plantops/plantops-core/internal/alerting"
	"github.com/plantops/plantops-core/internal/device"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/plant"
	"github.com/plantops/plantops-core/internal/queue"
	"github.com/plantops/plantops-core/internal/telemetry"
)

func f64(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

// stubDevices resolves devices from a fixed map.
type stubDevices struct {
	devices map[string]*device.Device
}

func (s *stubDevices) GetByID(_ context.Context, id string) (*device.Device, error) {
	d, ok := s.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

func (s *stubDevices) Create(_ context.Context, _ *device.Device) error { return nil }
func (s *stubDevices) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error {
	return nil
}
func (s *stubDevices) ListStaleOnline(_ context.Context, _ time.Time) ([]device.Device, error) {
	return nil, nil
}
func (s *stubDevices) MarkOffline(_ context.Context, _ []string) error { return nil }

// stubPlants resolves plants from a fixed map.
type stubPlants struct {
	plants map[string]*plant.Plant
}

func (s *stubPlants) GetByID(_ context.Context, id string) (*plant.Plant, error) {
	p, ok := s.plants[id]
	if !ok {
		return nil, plant.ErrPlantNotFound
	}
	return p, nil
}

func (s *stubPlants) Create(_ context.Context, _ *plant.Plant) error { return nil }

// stubReadings records inserted readings.
type stubReadings struct {
	inserted []telemetry.Reading
	insErr   error
}

func (s *stubReadings) Insert(_ context.Context, r *telemetry.Reading) error {
	if s.insErr != nil {
		return s.insErr
	}
	s.inserted = append(s.inserted, *r)
	return nil
}

func (s *stubReadings) LatestByPlant(_ context.Context, _ string) (*telemetry.Reading, error) {
	return nil, telemetry.ErrNoReadings
}

func (s *stubReadings) HistoryByPlant(_ context.Context, _ string, _ time.Time) ([]telemetry.Reading, error) {
	return nil, nil
}

// stubAlertRepo is an in-memory alert store for cooldown checks.
type stubAlertRepo struct {
	alerts []alerting.Alert
}

func (s *stubAlertRepo) Insert(_ context.Context, a *alerting.Alert) error {
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *stubAlertRepo) LatestFor(_ context.Context, plantID, metric string) (*alerting.Alert, error) {
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].PlantID == plantID && s.alerts[i].Metric == metric {
			return &s.alerts[i], nil
		}
	}
	return nil, alerting.ErrNoAlerts
}

// stubMirror records mirrored readings.
type stubMirror struct {
	readings []telemetry.Reading
}

func (s *stubMirror) WriteReading(r *telemetry.Reading) {
	s.readings = append(s.readings, *r)
}

type fixture struct {
	handler  *Handler
	readings *stubReadings
	alerts   *queue.Queue[alerting.Notification]
	alertDB  *stubAlertRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	devices := &stubDevices{devices: map[string]*device.Device{
		"d1": {ID: "d1", PlantID: strPtr("p1")},
		"d2": {ID: "d2"},                             // registered, no plant
		"d3": {ID: "d3", PlantID: strPtr("gone-p2")}, // assignment points at a missing plant
	}}
	plants := &stubPlants{plants: map[string]*plant.Plant{
		"p1": {
			ID:   "p1",
			Name: "Monstera",
			Thresholds: &plant.Thresholds{
				SoilMoisture: &plant.Bound{Min: f64(30), Max: f64(80)},
			},
		},
	}}
	readings := &stubReadings{}
	alertDB := &stubAlertRepo{}
	alerts := queue.New[alerting.Notification](10)
	evaluator := alerting.NewEvaluator(alertDB, time.Hour, logging.Discard())

	h := NewHandler(devices, plants, readings, evaluator, alerts, nil, logging.Discard())
	return &fixture{handler: h, readings: readings, alerts: alerts, alertDB: alertDB}
}

func TestHandler_ViolationEnqueued(t *testing.T) {
	f := newFixture(t)

	err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"soil_moisture": 10}`))
	if err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}

	if len(f.readings.inserted) != 1 {
		t.Fatalf("stored %d readings, want 1", len(f.readings.inserted))
	}
	r := f.readings.inserted[0]
	if r.PlantID == nil || *r.PlantID != "p1" {
		t.Errorf("reading PlantID = %v, want p1", r.PlantID)
	}

	if f.alerts.Len() != 1 {
		t.Fatalf("queued %d alerts, want 1", f.alerts.Len())
	}
}

func TestHandler_InRangeNoAlert(t *testing.T) {
	f := newFixture(t)

	err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"soil_moisture": 50}`))
	if err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if f.alerts.Len() != 0 {
		t.Errorf("queued %d alerts for in-range reading, want 0", f.alerts.Len())
	}
	if len(f.readings.inserted) != 1 {
		t.Errorf("stored %d readings, want 1", len(f.readings.inserted))
	}
}

func TestHandler_CooldownSuppresses(t *testing.T) {
	f := newFixture(t)

	// A fresh alert exists for p1/soil_moisture.
	f.alertDB.alerts = []alerting.Alert{{
		PlantID: "p1",
		Metric:  telemetry.MetricSoilMoisture,
		SentAt:  time.Now().Add(-time.Minute),
	}}

	err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"soil_moisture": 10}`))
	if err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if f.alerts.Len() != 0 {
		t.Errorf("queued %d alerts inside cooldown, want 0", f.alerts.Len())
	}
	// The reading is still stored.
	if len(f.readings.inserted) != 1 {
		t.Errorf("stored %d readings, want 1", len(f.readings.inserted))
	}
}

func TestHandler_UnknownDeviceStoredWithoutPlant(t *testing.T) {
	f := newFixture(t)

	err := f.handler.HandleTelemetry("devices/ghost/telemetry", []byte(`{"temperature": 21}`))
	if err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}

	if len(f.readings.inserted) != 1 {
		t.Fatalf("stored %d readings, want 1", len(f.readings.inserted))
	}
	if f.readings.inserted[0].PlantID != nil {
		t.Errorf("PlantID = %v, want nil for unknown device", f.readings.inserted[0].PlantID)
	}
	if f.alerts.Len() != 0 {
		t.Errorf("queued %d alerts for unknown device, want 0", f.alerts.Len())
	}
}

func TestHandler_UnassignedDeviceSkipsEvaluation(t *testing.T) {
	f := newFixture(t)

	err := f.handler.HandleTelemetry("devices/d2/telemetry", []byte(`{"soil_moisture": 1}`))
	if err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if f.readings.inserted[0].PlantID != nil {
		t.Errorf("PlantID = %v, want nil for unassigned device", f.readings.inserted[0].PlantID)
	}
	if f.alerts.Len() != 0 {
		t.Errorf("queued %d alerts for unassigned device, want 0", f.alerts.Len())
	}
}

func TestHandler_AlertRecordedAtIngest(t *testing.T) {
	f := newFixture(t)

	// First breach: recorded and queued, even though nothing has
	// drained the queue or reached the sink yet.
	if err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"soil_moisture": 10}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if len(f.alertDB.alerts) != 1 {
		t.Fatalf("recorded %d alerts at ingest, want 1", len(f.alertDB.alerts))
	}

	// Same breach again: the record from the first pass engages the
	// cooldown regardless of delivery outcome.
	if err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"soil_moisture": 10}`)); err != nil {
		t.Fatalf("HandleTelemetry() second call error = %v", err)
	}
	if f.alerts.Len() != 1 {
		t.Errorf("queue len = %d after repeat breach, want 1", f.alerts.Len())
	}
	if len(f.alertDB.alerts) != 1 {
		t.Errorf("recorded %d alerts after repeat breach, want 1", len(f.alertDB.alerts))
	}
}

func TestHandler_PlantFetchFailureKeepsPlantID(t *testing.T) {
	f := newFixture(t)

	// d3's plant assignment resolves from the device row; the missing
	// plant record only disables evaluation for this message.
	if err := f.handler.HandleTelemetry("devices/d3/telemetry", []byte(`{"soil_moisture": 1}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}

	if len(f.readings.inserted) != 1 {
		t.Fatalf("stored %d readings, want 1", len(f.readings.inserted))
	}
	r := f.readings.inserted[0]
	if r.PlantID == nil || *r.PlantID != "gone-p2" {
		t.Errorf("reading PlantID = %v, want gone-p2 from the device row", r.PlantID)
	}
	if f.alerts.Len() != 0 {
		t.Errorf("queued %d alerts without a plant record, want 0", f.alerts.Len())
	}
}

func TestHandler_TimestampFallback(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	f.handler.now = func() time.Time { return now }

	err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"humidity": 55}`))
	if err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if !f.readings.inserted[0].Time.Equal(now) {
		t.Errorf("reading time = %v, want ingest time %v", f.readings.inserted[0].Time, now)
	}
}

func TestHandler_DeviceTimestampWins(t *testing.T) {
	f := newFixture(t)
	f.handler.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }

	payload := []byte(`{"humidity": 55, "timestamp": "2026-01-15T11:30:00Z"}`)
	if err := f.handler.HandleTelemetry("devices/d1/telemetry", payload); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}

	want := time.Date(2026, 1, 15, 11, 30, 0, 0, time.UTC)
	if !f.readings.inserted[0].Time.Equal(want) {
		t.Errorf("reading time = %v, want device timestamp %v", f.readings.inserted[0].Time, want)
	}
}

func TestHandler_MalformedPayload(t *testing.T) {
	f := newFixture(t)

	err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{broken`))
	if err == nil {
		t.Error("HandleTelemetry() error = nil, want parse error")
	}
	if len(f.readings.inserted) != 0 {
		t.Errorf("stored %d readings from broken payload, want 0", len(f.readings.inserted))
	}
}

func TestHandler_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.readings.insErr = errors.New("disk full")

	err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"soil_moisture": 10}`))
	if err == nil {
		t.Error("HandleTelemetry() error = nil, want storage error")
	}
	if f.alerts.Len() != 0 {
		t.Errorf("queued %d alerts despite storage failure, want 0", f.alerts.Len())
	}
}

func TestHandler_MirrorReceivesReading(t *testing.T) {
	f := newFixture(t)
	mirror := &stubMirror{}
	f.handler.mirror = mirror

	if err := f.handler.HandleTelemetry("devices/d1/telemetry", []byte(`{"temperature": 21}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if len(mirror.readings) != 1 {
		t.Errorf("mirrored %d readings, want 1", len(mirror.readings))
	}
}
