package device

import "errors"

// ErrDeviceNotFound is returned when a device does not exist.
var ErrDeviceNotFound = errors.New("device not found")
