package notify

import (
	"context"
	"fmt"

	"github.com/plantops/plantops-core/internal/alerting"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
)

// Dispatcher turns queued notifications into webhook deliveries. It is
// the handler behind the alert queue worker; one notification is sent
// at a time, failures are logged by the worker and dropped. Cooldown
// bookkeeping happens at ingest, before the item is queued, so the
// dispatcher only delivers.
type Dispatcher struct {
	notifier *Notifier
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher over the given notifier.
func NewDispatcher(notifier *Notifier, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		log:      log.With("component", "dispatcher"),
	}
}

// Handle delivers one notification. Satisfies queue.Handler.
func (d *Dispatcher) Handle(ctx context.Context, n alerting.Notification) error {
	if !d.notifier.Enabled() {
		d.log.Debug("webhook not configured, dropping notification")
		return nil
	}

	switch ev := n.(type) {
	case alerting.Violation:
		if err := d.notifier.SendViolation(ctx, ev); err != nil {
			return fmt.Errorf("sending violation alert: %w", err)
		}
		d.log.Info("alert sent",
			"plant_id", ev.PlantID,
			"metric", ev.Metric,
			"direction", ev.Direction)
		return nil

	case alerting.OfflineEvent:
		if err := d.notifier.SendOffline(ctx, ev); err != nil {
			return fmt.Errorf("sending offline alert: %w", err)
		}
		d.log.Info("offline alert sent", "device_id", ev.DeviceID)
		return nil

	default:
		return fmt.Errorf("unknown notification type %T", n)
	}
}
