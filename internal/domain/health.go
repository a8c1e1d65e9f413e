package domain

import "time"

// HealthStatus is the last observed engine condition.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthState is the shared engine health record.
type HealthState struct {
	Status    HealthStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
