package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plantops/plantops-core/internal/alerting"
	"github.com/plantops/plantops-core/internal/infrastructure/config"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
)

func strPtr(s string) *string { return &s }

// captureServer records the last webhook body it receives.
func captureServer(t *testing.T, status int) (*httptest.Server, *webhookMessage) {
	t.Helper()

	var captured webhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading webhook body: %v", err)
		}
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, &captured
}

func newTestNotifier(url string) *Notifier {
	return NewNotifier(config.NotifierConfig{WebhookURL: url, Timeout: 5}, logging.Discard())
}

func TestNotifier_SendViolation(t *testing.T) {
	srv, captured := captureServer(t, http.StatusNoContent)
	n := newTestNotifier(srv.URL)

	v := alerting.Violation{
		PlantID:   "p1",
		PlantName: "Monstera",
		DeviceID:  "d1",
		Metric:    "soil_moisture",
		Value:     10,
		Threshold: 30,
		Direction: alerting.DirectionMin,
	}
	if err := n.SendViolation(context.Background(), v); err != nil {
		t.Fatalf("SendViolation() error = %v", err)
	}

	if len(captured.Embeds) != 1 {
		t.Fatalf("sent %d embeds, want 1", len(captured.Embeds))
	}
	e := captured.Embeds[0]
	if e.Title != "Plant Alert: Monstera" {
		t.Errorf("Title = %q, want Plant Alert: Monstera", e.Title)
	}
	if e.Color != colourRed {
		t.Errorf("Color = %d, want %d", e.Color, colourRed)
	}

	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	if !strings.Contains(fields["Metric"], "below minimum") {
		t.Errorf("Metric field = %q, want direction below minimum", fields["Metric"])
	}
	if fields["Current"] != "10.0" {
		t.Errorf("Current field = %q, want 10.0", fields["Current"])
	}
	if fields["Threshold"] != "30.0" {
		t.Errorf("Threshold field = %q, want 30.0", fields["Threshold"])
	}
}

func TestNotifier_SendOffline(t *testing.T) {
	srv, captured := captureServer(t, http.StatusNoContent)
	n := newTestNotifier(srv.URL)

	lastSeen := time.Date(2026, 1, 15, 11, 55, 0, 0, time.UTC)
	ev := alerting.OfflineEvent{
		DeviceID:  "d1",
		PlantName: strPtr("Monstera"),
		LastSeen:  &lastSeen,
	}
	if err := n.SendOffline(context.Background(), ev); err != nil {
		t.Fatalf("SendOffline() error = %v", err)
	}

	e := captured.Embeds[0]
	if e.Title != "Device Offline" {
		t.Errorf("Title = %q, want Device Offline", e.Title)
	}
	if e.Color != colourOrange {
		t.Errorf("Color = %d, want %d", e.Color, colourOrange)
	}
	if len(e.Fields) != 3 {
		t.Errorf("sent %d fields, want 3", len(e.Fields))
	}
}

func TestNotifier_SendOffline_UnassignedDevice(t *testing.T) {
	srv, captured := captureServer(t, http.StatusNoContent)
	n := newTestNotifier(srv.URL)

	if err := n.SendOffline(context.Background(), alerting.OfflineEvent{DeviceID: "d1"}); err != nil {
		t.Fatalf("SendOffline() error = %v", err)
	}
	if len(captured.Embeds[0].Fields) != 1 {
		t.Errorf("sent %d fields, want 1 (device only)", len(captured.Embeds[0].Fields))
	}
}

func TestNotifier_ErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusTooManyRequests)
	n := newTestNotifier(srv.URL)

	err := n.SendViolation(context.Background(), alerting.Violation{PlantName: "x"})
	if err == nil {
		t.Error("SendViolation() error = nil, want error on 429 response")
	}
}

func TestNotifier_NotConfigured(t *testing.T) {
	n := newTestNotifier("")

	if n.Enabled() {
		t.Error("Enabled() = true, want false without a URL")
	}
	err := n.SendViolation(context.Background(), alerting.Violation{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SendViolation() error = %v, want ErrNotConfigured", err)
	}
}
