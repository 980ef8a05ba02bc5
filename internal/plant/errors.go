package plant

import "errors"

// ErrPlantNotFound is returned when a plant does not exist.
var ErrPlantNotFound = errors.New("plant not found")
