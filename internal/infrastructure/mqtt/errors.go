package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected transport.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned for empty topics or topics that don't
	// match the expected device topic shape.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrRouterClosed is returned when registering handlers on a closed router.
	ErrRouterClosed = errors.New("mqtt: router closed")
)
