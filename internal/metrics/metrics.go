// Package metrics exposes cycle counters as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

const namespace = "tgemonitor"

// Collector records one observation per completed cycle.
type Collector struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
	items         *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

var _ ports.CycleObserver = (*Collector)(nil)

// New registers the collectors on a private registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed monitoring cycles.",
		}),
		cycleErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_errors_total",
			Help:      "Errors counted during cycles (failed endpoints, sources, sinks, saves).",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a monitoring cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items seen per source and outcome.",
		}, []string{"source", "outcome"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Relevant alerts found per source.",
		}, []string{"source"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_cycles_total",
			Help:      "Cycles in which a source was throttled.",
		}, []string{"source"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alert batch deliveries by result.",
		}, []string{"delivered"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
	}
}

// ObserveCycle implements ports.CycleObserver.
func (c *Collector) ObserveCycle(r domain.CycleReport) {
	c.cycles.Inc()
	c.cycleErrors.Add(float64(r.Errors))
	c.cycleDuration.Observe(r.Duration.Seconds())
	c.lastSuccess.Set(float64(r.StartedAt.Add(r.Duration).Unix()))

	for kind, s := range r.Sources {
		source := string(kind)
		c.items.WithLabelValues(source, "fetched").Add(float64(s.Fetched))
		c.items.WithLabelValues(source, "skipped").Add(float64(s.Skipped))
		c.items.WithLabelValues(source, "processed").Add(float64(s.Processed))
		c.items.WithLabelValues(source, "duplicate").Add(float64(s.Duplicates))
		c.alerts.WithLabelValues(source).Add(float64(s.Alerts))
		if s.RateLimited {
			c.rateLimited.WithLabelValues(source).Inc()
		}
	}
	if r.Alerts > 0 {
		c.notifications.WithLabelValues(strconv.FormatBool(r.Notified)).Inc()
	}
}

// Registry exposes the underlying registry for tests and custom handlers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
