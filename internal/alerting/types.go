package alerting

import "time"

// Threshold directions. A violation is either below a configured
// minimum or above a configured maximum.
const (
	DirectionMin = "min"
	DirectionMax = "max"
)

// Violation is a single threshold breach found during evaluation.
// PlantName travels with the violation so the notifier does not need a
// second plant lookup at send time.
type Violation struct {
	PlantID   string
	PlantName string
	DeviceID  string
	Metric    string
	Value     float64
	Threshold float64
	Direction string
}

// OfflineEvent reports a device that stopped heartbeating.
type OfflineEvent struct {
	DeviceID  string
	PlantName *string
	LastSeen  *time.Time
}

// Notification is the union of payloads the dispatcher handles.
// Violation and OfflineEvent implement it.
type Notification interface {
	notification()
}

func (Violation) notification()    {}
func (OfflineEvent) notification() {}

// Alert is a stored record of a dispatched threshold alert. The cooldown
// check reads these back by plant and metric.
type Alert struct {
	ID        int64
	PlantID   string
	DeviceID  string
	Metric    string
	Value     float64
	Threshold float64
	Direction string
	SentAt    time.Time
}
