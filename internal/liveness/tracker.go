// Package liveness tracks device heartbeats and flags devices that have
// gone quiet.
//
// Heartbeats arrive on devices/{id}/heartbeat and refresh the device's
// last-seen timestamp. A periodic sweep marks online devices offline
// once their last heartbeat is older than the liveness timeout, and
// emits an offline event per affected device. Only online devices are
// swept, so each outage produces exactly one event.
package liveness

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
)

// Tracker maintains device liveness state.
type Tracker struct {
	devices device.Repository
	plants  plant.Repository
	events  *queue.Queue[alerting.Notification]
	timeout time.Duration
	log     *logging.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewTracker creates a liveness tracker. The timeout is how long a
// device may go without a heartbeat before the sweep flags it.
func NewTracker(devices device.Repository, plants plant.Repository, events *queue.Queue[alerting.Notification], timeout time.Duration, log *logging.Logger) *Tracker {
	return &Tracker{
		devices: devices,
		plants:  plants,
		events:  events,
		timeout: timeout,
		log:     log.With("component", "liveness"),
		now:     time.Now,
	}
}

// HandleHeartbeat processes a heartbeat message. The payload is not
// inspected; receipt alone proves the device is alive. Heartbeats from
// unregistered devices are dropped with a warning.
func (t *Tracker) HandleHeartbeat(topic string, _ []byte) error {
	deviceID, err := mqtt.DeviceID(topic, mqtt.LeafHeartbeat)
	if err != nil {
		return fmt.Errorf("parsing heartbeat topic: %w", err)
	}

	ctx := context.Background()
	if err := t.devices.UpdateLastSeen(ctx, deviceID, t.now()); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			t.log.Warn("heartbeat from unregistered device", "device_id", deviceID)
			return nil
		}
		return fmt.Errorf("recording heartbeat: %w", err)
	}

	t.log.Debug("heartbeat", "device_id", deviceID)
	return nil
}

// Sweep marks stale online devices offline and enqueues one offline
// event per device. Returns the IDs of devices taken offline.
func (t *Tracker) Sweep(ctx context.Context) ([]string, error) {
	cutoff := t.now().Add(-t.timeout)

	stale, err := t.devices.ListStaleOnline(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing stale devices: %w", err)
	}
	if len(stale) == 0 {
		return nil, nil
	}

	ids := make([]string, len(stale))
	for i, d := range stale {
		ids[i] = d.ID
	}

	if err := t.devices.MarkOffline(ctx, ids); err != nil {
		return nil, fmt.Errorf("marking devices offline: %w", err)
	}

	for _, d := range stale {
		ev := alerting.OfflineEvent{
			DeviceID:  d.ID,
			PlantName: t.plantName(ctx, d.PlantID),
			LastSeen:  d.LastSeenAt,
		}
		if err := t.events.Enqueue(alerting.Notification(ev)); err != nil {
			t.log.Warn("offline event dropped, queue full", "device_id", d.ID)
		}
	}

	t.log.Info("devices marked offline", "count", len(ids))
	return ids, nil
}

// Run executes the sweep on a fixed interval until ctx is cancelled.
// Sweep failures are logged; a bad cycle never stops the loop.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	t.log.Info("liveness sweep started",
		"interval", interval.String(),
		"timeout", t.timeout.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("liveness sweep stopped")
			return
		case <-ticker.C:
			if _, err := t.Sweep(ctx); err != nil {
				t.log.Error("sweep failed", "error", err)
			}
		}
	}
}

// plantName resolves a device's plant name for the offline event.
// Resolution failures degrade to an anonymous event rather than
// blocking the sweep.
func (t *Tracker) plantName(ctx context.Context, plantID *string) *string {
	if plantID == nil {
		return nil
	}
	p, err := t.plants.GetByID(ctx, *plantID)
	if err != nil {
		t.log.Warn("failed to resolve plant for offline event",
			"plant_id", *plantID,
			"error", err)
		return nil
	}
	return &p.Name
}
