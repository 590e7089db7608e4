package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed infrastructure component.
// Each infrastructure module (pipe fitting, kafka stream, redis queue, etc.)
// implements this interface.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for startup logging.
// Components that implement Describable return this to self-report
// what they are and how they're configured.
type Description struct {
	// Name is the human-readable display name (e.g., "Order Flow", "Kafka Stream").
	// If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "fitting", "kafka", "redis", "ws", etc.
	Type string
	// Details is a human-readable one-liner shown in the startup summary.
	// Examples: "orders -> enriched cap=64", "localhost:9092 topic=trades"
	Details string
}

// Describable is optionally implemented by Components to provide
// startup summary information. Groups log descriptions of their
// members when starting.
type Describable interface {
	Describe() Description
}
