// Package notify delivers alert notifications to a Discord-compatible
// webhook endpoint.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/plantops/plantops-core/internal/alerting"
	"github.com/plantops/plantops-core/internal/infrastructure/config"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("webhook not configured")

// Embed colours, decimal-encoded RGB as the webhook API expects.
const (
	colourRed    = 15158332 // threshold alerts
	colourOrange = 15105570 // device offline
)

// webhookMessage is the outbound webhook request body.
type webhookMessage struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields,omitempty"`
	Timestamp string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notifier posts alert embeds to a webhook URL.
type Notifier struct {
	client *resty.Client
	url    string
	log    *logging.Logger
}

// NewNotifier creates a webhook notifier. An empty webhook URL yields a
// notifier whose sends fail with ErrNotConfigured; callers that want a
// silent no-op should check Enabled first.
func NewNotifier(cfg config.NotifierConfig, log *logging.Logger) *Notifier {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Notifier{
		client: client,
		url:    cfg.WebhookURL,
		log:    log.With("component", "notifier"),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// SendViolation posts a threshold alert embed.
func (n *Notifier) SendViolation(ctx context.Context, v alerting.Violation) error {
	direction := "below minimum"
	if v.Direction == alerting.DirectionMax {
		direction = "above maximum"
	}

	msg := webhookMessage{
		Embeds: []embed{{
			Title: fmt.Sprintf("Plant Alert: %s", v.PlantName),
			Color: colourRed,
			Fields: []embedField{
				{Name: "Metric", Value: fmt.Sprintf("%s (%s)", v.Metric, direction), Inline: true},
				{Name: "Current", Value: formatValue(v.Value), Inline: true},
				{Name: "Threshold", Value: formatValue(v.Threshold), Inline: true},
				{Name: "Device", Value: v.DeviceID, Inline: false},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	}

	return n.post(ctx, msg)
}

// SendOffline posts a device-offline embed.
func (n *Notifier) SendOffline(ctx context.Context, ev alerting.OfflineEvent) error {
	fields := []embedField{
		{Name: "Device", Value: ev.DeviceID, Inline: true},
	}
	if ev.PlantName != nil {
		fields = append(fields, embedField{Name: "Plant", Value: *ev.PlantName, Inline: true})
	}
	if ev.LastSeen != nil {
		fields = append(fields, embedField{
			Name:   "Last Seen",
			Value:  ev.LastSeen.UTC().Format(time.RFC3339),
			Inline: false,
		})
	}

	msg := webhookMessage{
		Embeds: []embed{{
			Title:     "Device Offline",
			Color:     colourOrange,
			Fields:    fields,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	}

	return n.post(ctx, msg)
}

// post delivers one webhook message.
func (n *Notifier) post(ctx context.Context, msg webhookMessage) error {
	if n.url == "" {
		return ErrNotConfigured
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// formatValue renders a metric value without trailing float noise.
func formatValue(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
