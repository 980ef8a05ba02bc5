package mqtt

import (
	"fmt"
	"strings"
)

// Device topic layout. Field devices publish under a fixed three-segment shape
// with the device id in the middle position.
const (
	// TopicPrefixDevices is the base for all device-originated topics.
	TopicPrefixDevices = "devices"

	// LeafTelemetry is the final segment of telemetry topics.
	LeafTelemetry = "telemetry"

	// LeafHeartbeat is the final segment of heartbeat topics.
	LeafHeartbeat = "heartbeat"
)

// deviceTopicSegments is the exact segment count of a device topic.
const deviceTopicSegments = 3

// Topics provides builders for PlantOps MQTT topic patterns.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceTelemetry returns the telemetry topic for a specific device.
//
// Example: devices/dev-001/telemetry
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, LeafTelemetry)
}

// DeviceHeartbeat returns the heartbeat topic for a specific device.
//
// Example: devices/dev-001/heartbeat
func (Topics) DeviceHeartbeat(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, LeafHeartbeat)
}

// AllTelemetry returns a pattern matching telemetry from every device.
//
// Pattern: devices/+/telemetry
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevices, LeafTelemetry)
}

// AllHeartbeats returns a pattern matching heartbeats from every device.
//
// Pattern: devices/+/heartbeat
func (Topics) AllHeartbeats() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevices, LeafHeartbeat)
}

// DeviceID extracts the device id from a topic of shape devices/{id}/{leaf}.
//
// The shape is checked strictly: exactly three segments, the devices prefix,
// the expected leaf and a non-empty id.
//
// Returns:
//   - string: The device id
//   - error: If the topic does not have the expected shape
func DeviceID(topic, leaf string) (string, error) {
	parts := strings.Split(topic, topicSeparator)
	if len(parts) != deviceTopicSegments ||
		parts[0] != TopicPrefixDevices ||
		parts[2] != leaf ||
		parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return parts[1], nil
}
