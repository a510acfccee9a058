package health

import "sync"

// Monitor collects the latest status per component and folds them into
// one system status for the operator endpoints. Safe for concurrent
// use; checkers write, endpoints read.
type Monitor struct {
	mu      sync.RWMutex
	entries map[string]Status
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{entries: make(map[string]Status)}
}

func (m *Monitor) put(status Status) {
	m.mu.Lock()
	m.entries[status.Component] = status
	m.mu.Unlock()
}

// UpdateHealthy records a healthy status for the component.
func (m *Monitor) UpdateHealthy(component, message string) {
	m.put(NewHealthy(component, message))
}

// UpdateUnhealthy records an unhealthy status. The message is
// sanitized by the status constructor.
func (m *Monitor) UpdateUnhealthy(component, message string) {
	m.put(NewUnhealthy(component, message))
}

// UpdateDegraded records a degraded status.
func (m *Monitor) UpdateDegraded(component, message string) {
	m.put(NewDegraded(component, message))
}

// Get returns the last recorded status for the component.
func (m *Monitor) Get(component string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.entries[component]
	return status, ok
}

// AggregateHealth folds every recorded status into one status named
// component. With nothing recorded yet the aggregate is healthy.
func (m *Monitor) AggregateHealth(component string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.entries))
	for _, status := range m.entries {
		subs = append(subs, status)
	}
	m.mu.RUnlock()

	return Aggregate(component, subs)
}
