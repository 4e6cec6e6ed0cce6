package esl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame kinds counted by Metrics.
const (
	frameEvent     = "event"
	frameReply     = "reply"
	frameSkipped   = "skipped"
	frameMalformed = "malformed"
)

// MetricsConfig selects where a session's collectors are registered and how
// they are named. NewMetrics starts from the "esl" namespace and the default
// Prometheus registerer.
type MetricsConfig struct {
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	Registry    prometheus.Registerer
}

// MetricsOption adjusts a MetricsConfig before NewMetrics registers anything.
type MetricsOption func(*MetricsConfig)

func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels attaches labels to every collector, e.g. the switch host
// when one process watches several switches.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry registers the collectors on registry instead of
// prometheus.DefaultRegisterer. Tests pass a fresh prometheus.NewRegistry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the collectors updated by the dispatch loop. A nil *Metrics
// records nothing.
type Metrics struct {
	frames *prometheus.CounterVec
	events *prometheus.CounterVec
	panics *prometheus.CounterVec
	state  prometheus.Gauge
}

// NewMetrics creates and registers the session collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "esl",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)
	return &Metrics{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "frames_total",
			Help:        "Frames read by the dispatch loop, by kind.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "events_total",
			Help:        "Events dispatched, by event name.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"event"}),
		panics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "callback_panics_total",
			Help:        "Recovered callback panics, by event name.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"event"}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "state",
			Help:        "Session state: 0 disconnected, 1 connected, 2 authenticated.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func (m *Metrics) frame(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

func (m *Metrics) panicked(name string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(name).Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
