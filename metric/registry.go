package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sawyersec/uds-tcp-graphql/errors"
)

// Registry manages the registration and lifecycle of gateway metrics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a metrics registry with the core gateway metrics
// and Go runtime collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register adds a named collector beyond the core set.
func (r *Registry) Register(name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registered[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered", name),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "Registry", "Register",
			"failed to register collector with prometheus")
	}

	r.registered[name] = collector
	return nil
}

// Unregister removes a named collector from the registry.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	collector, exists := r.registered[name]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registered, name)
	}
	return success
}
