package models

import "github.com/breatheroute/aqiguard/internal/provider/resilience"

// Health represents the liveness status of the service.
type Health struct {
	Status  HealthStatus      `json:"status"`
	Time    Timestamp         `json:"time"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// SystemStatus represents the readiness of the service and its dependencies.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// NewProviderStatus converts a breaker snapshot. An open circuit fails the
// provider and a half-open one degrades it.
func NewProviderStatus(h resilience.ProviderHealth) ProviderStatus {
	ps := ProviderStatus{
		Provider:      h.Name,
		Status:        HealthStatusOK,
		CircuitState:  h.CircuitState.String(),
		LastSuccessAt: TimestampPtr(h.LastSuccessAt),
		LastFailureAt: TimestampPtr(h.LastFailureAt),
	}
	switch h.Status() {
	case "unhealthy":
		ps.Status = HealthStatusFail
	case "degraded":
		ps.Status = HealthStatusDegraded
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}

// Worst returns the more severe of two statuses.
func Worst(a, b HealthStatus) HealthStatus {
	rank := func(s HealthStatus) int {
		switch s {
		case HealthStatusFail:
			return 2
		case HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
