package device

import "time"

// Status is the lifecycle state of a field device.
type Status string

// Device status values.
//
// A device is created as provisioning (registration is handled outside this
// core). Heartbeats move it to online; only the liveness sweep moves it to
// offline. There is no implicit transition.
const (
	StatusProvisioning Status = "provisioning"
	StatusOnline       Status = "online"
	StatusOffline      Status = "offline"
)

// Device represents a registered field device.
type Device struct {
	ID              string
	MACAddress      *string
	FirmwareVersion *string
	Status          Status
	CreatedAt       time.Time

	// PlantID is the plant this device is assigned to, if any.
	PlantID *string

	// LastSeenAt is the time of the most recent heartbeat.
	// Nil until the device first reports.
	LastSeenAt *time.Time
}
