package liveness

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
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// stubDevices is an in-memory device repository for tracker tests.
type stubDevices struct {
	devices  map[string]*device.Device
	listErr  error
	markErr  error
	offlined [][]string
}

func newStubDevices() *stubDevices {
	return &stubDevices{devices: map[string]*device.Device{}}
}

func (s *stubDevices) GetByID(_ context.Context, id string) (*device.Device, error) {
	d, ok := s.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

func (s *stubDevices) Create(_ context.Context, d *device.Device) error {
	s.devices[d.ID] = d
	return nil
}

func (s *stubDevices) UpdateLastSeen(_ context.Context, id string, seenAt time.Time) error {
	d, ok := s.devices[id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	d.LastSeenAt = &seenAt
	d.Status = device.StatusOnline
	return nil
}

func (s *stubDevices) ListStaleOnline(_ context.Context, cutoff time.Time) ([]device.Device, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var stale []device.Device
	for _, d := range s.devices {
		if d.Status == device.StatusOnline && d.LastSeenAt != nil && d.LastSeenAt.Before(cutoff) {
			stale = append(stale, *d)
		}
	}
	return stale, nil
}

func (s *stubDevices) MarkOffline(_ context.Context, ids []string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.offlined = append(s.offlined, ids)
	for _, id := range ids {
		s.devices[id].Status = device.StatusOffline
	}
	return nil
}

// stubPlants resolves plant names from a fixed map.
type stubPlants struct {
	plants map[string]string
}

func (s *stubPlants) GetByID(_ context.Context, id string) (*plant.Plant, error) {
	name, ok := s.plants[id]
	if !ok {
		return nil, plant.ErrPlantNotFound
	}
	return &plant.Plant{ID: id, Name: name}, nil
}

func (s *stubPlants) Create(_ context.Context, _ *plant.Plant) error { return nil }

func newTestTracker(devices *stubDevices, plants *stubPlants) (*Tracker, *queue.Queue[alerting.Notification]) {
	q := queue.New[alerting.Notification](10)
	tr := NewTracker(devices, plants, q, 3*time.Minute, logging.Discard())
	return tr, q
}

func TestTracker_HandleHeartbeat(t *testing.T) {
	devices := newStubDevices()
	devices.devices["d1"] = &device.Device{ID: "d1", Status: device.StatusProvisioning}

	tr, _ := newTestTracker(devices, &stubPlants{})
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	if err := tr.HandleHeartbeat("devices/d1/heartbeat", []byte(`{}`)); err != nil {
		t.Fatalf("HandleHeartbeat() error = %v", err)
	}

	d := devices.devices["d1"]
	if d.Status != device.StatusOnline {
		t.Errorf("Status = %q, want online", d.Status)
	}
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(now) {
		t.Errorf("LastSeenAt = %v, want %v", d.LastSeenAt, now)
	}
}

func TestTracker_HandleHeartbeat_UnknownDevice(t *testing.T) {
	tr, _ := newTestTracker(newStubDevices(), &stubPlants{})

	// Unknown devices are dropped without error; the loop must not stall.
	if err := tr.HandleHeartbeat("devices/ghost/heartbeat", nil); err != nil {
		t.Errorf("HandleHeartbeat() error = %v, want nil for unknown device", err)
	}
}

func TestTracker_HandleHeartbeat_BadTopic(t *testing.T) {
	tr, _ := newTestTracker(newStubDevices(), &stubPlants{})

	if err := tr.HandleHeartbeat("devices/heartbeat", nil); err == nil {
		t.Error("HandleHeartbeat() error = nil, want topic parse error")
	}
}

func TestTracker_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	devices := newStubDevices()
	devices.devices["stale"] = &device.Device{
		ID:         "stale",
		Status:     device.StatusOnline,
		PlantID:    strPtr("p1"),
		LastSeenAt: timePtr(now.Add(-10 * time.Minute)),
	}
	devices.devices["fresh"] = &device.Device{
		ID:         "fresh",
		Status:     device.StatusOnline,
		LastSeenAt: timePtr(now.Add(-time.Minute)),
	}
	devices.devices["already-offline"] = &device.Device{
		ID:         "already-offline",
		Status:     device.StatusOffline,
		LastSeenAt: timePtr(now.Add(-time.Hour)),
	}

	plants := &stubPlants{plants: map[string]string{"p1": "Monstera"}}
	tr, q := newTestTracker(devices, plants)
	tr.now = func() time.Time { return now }

	ids, err := tr.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "stale" {
		t.Fatalf("Sweep() = %v, want [stale]", ids)
	}
	if devices.devices["stale"].Status != device.StatusOffline {
		t.Error("stale device not marked offline")
	}
	if devices.devices["fresh"].Status != device.StatusOnline {
		t.Error("fresh device was marked offline")
	}

	if q.Len() != 1 {
		t.Fatalf("queued %d events, want 1", q.Len())
	}
}

func TestTracker_Sweep_SecondPassQuiet(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	devices := newStubDevices()
	devices.devices["d1"] = &device.Device{
		ID:         "d1",
		Status:     device.StatusOnline,
		LastSeenAt: timePtr(now.Add(-10 * time.Minute)),
	}

	tr, q := newTestTracker(devices, &stubPlants{})
	tr.now = func() time.Time { return now }

	if _, err := tr.Sweep(context.Background()); err != nil {
		t.Fatalf("first Sweep() error = %v", err)
	}

	// Device is offline now; a second sweep must not re-flag it.
	ids, err := tr.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("second Sweep() = %v, want none", ids)
	}
	if q.Len() != 1 {
		t.Errorf("queued %d events total, want 1", q.Len())
	}
}

func TestTracker_Sweep_PlantResolutionFailureDegrades(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	devices := newStubDevices()
	devices.devices["d1"] = &device.Device{
		ID:         "d1",
		Status:     device.StatusOnline,
		PlantID:    strPtr("missing-plant"),
		LastSeenAt: timePtr(now.Add(-10 * time.Minute)),
	}

	tr, q := newTestTracker(devices, &stubPlants{})
	tr.now = func() time.Time { return now }

	if _, err := tr.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if q.Len() != 1 {
		t.Fatal("offline event was not queued")
	}
}

func TestTracker_Sweep_ListFailure(t *testing.T) {
	devices := newStubDevices()
	devices.listErr = errors.New("db locked")

	tr, _ := newTestTracker(devices, &stubPlants{})
	if _, err := tr.Sweep(context.Background()); err == nil {
		t.Error("Sweep() error = nil, want list error")
	}
}

func TestTracker_Run_StopsOnCancel(t *testing.T) {
	tr, _ := newTestTracker(newStubDevices(), &stubPlants{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		tr.Run(ctx, 10*time.Millisecond)
		close(stopped)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop on cancellation")
	}
}
