package health

import "context"

// Pinger checks a store's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks a model provider's availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// Component is one named dependency. A failing critical component makes the
// service unhealthy; any other failure only degrades it.
type Component struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Store wraps a Pinger as a component.
func Store(name string, p Pinger, critical bool) Component {
	return Component{Name: name, Critical: critical, Check: p.Ping}
}

// Provider wraps a ProviderChecker as a component.
func Provider(name string, p ProviderChecker, critical bool) Component {
	return Component{Name: name, Critical: critical, Check: p.HealthCheck}
}
