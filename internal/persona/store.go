package persona

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names for persona reloads.
const (
	MetricReloadsTotal   = "persona_reloads_total"
	MetricPersonasLoaded = "personas_loaded"
)

// Metrics tracks persona table reloads.
type Metrics struct {
	reloads *prometheus.CounterVec
	loaded  prometheus.Gauge
}

// NewMetrics creates persona metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReloadsTotal,
				Help: "Total number of persona table reload attempts by result",
			},
			[]string{"result"},
		),
		loaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricPersonasLoaded,
				Help: "Number of personas in the active table",
			},
		),
	}
}

// Register registers the collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.reloads, m.loaded} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Loader produces a complete registry, e.g. LoadDir bound to a directory.
type Loader func() (*Registry, error)

// Store holds the active registry behind an atomic pointer.
// Readers take one snapshot per request with Current; a reload installs a
// fully validated registry in a single swap, so no reader ever sees a mix.
type Store struct {
	current  atomic.Pointer[Registry]
	reloadMu sync.Mutex // serializes Reload; readers never take it
	metrics  *Metrics
}

// NewStore creates a store serving reg.
func NewStore(reg *Registry, metrics *Metrics) *Store {
	s := &Store{metrics: metrics}
	s.Swap(reg)
	return s
}

// Current returns the active registry snapshot.
func (s *Store) Current() *Registry {
	return s.current.Load()
}

// Swap installs reg as the active registry and returns the previous one.
func (s *Store) Swap(reg *Registry) *Registry {
	old := s.current.Swap(reg)
	if s.metrics != nil {
		s.metrics.loaded.Set(float64(reg.Len()))
	}
	return old
}

// Reload runs load and installs the result. On error the active registry is
// left untouched and the error is returned.
func (s *Store) Reload(load Loader) (*Registry, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	reg, err := load()
	if err != nil {
		if s.metrics != nil {
			s.metrics.reloads.WithLabelValues("failure").Inc()
		}
		slog.Error("persona reload failed, keeping active table",
			"error", err,
			"active_count", s.Current().Len())
		return nil, err
	}

	s.Swap(reg)
	if s.metrics != nil {
		s.metrics.reloads.WithLabelValues("success").Inc()
	}
	slog.Info("persona table reloaded", "count", reg.Len(), "ids", reg.IDs())
	return reg, nil
}
