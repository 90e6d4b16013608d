// Package metrics exposes pipeline run statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

const namespace = "herimoss"

// Collector records one observation per pipeline run in its own registry.
type Collector struct {
	registry *prometheus.Registry

	runs           prometheus.Counter
	rawEvents      prometheus.Counter
	uniqueEvents   prometheus.Counter
	duplicates     *prometheus.CounterVec
	archived       prometheus.Counter
	sourceFailures *prometheus.CounterVec
	errors         prometheus.Counter
	currentEvents  prometheus.Gauge
	archivedEvents prometheus.Gauge
	lastSuccess    prometheus.Gauge
	runDuration    prometheus.Histogram
}

func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Number of completed pipeline runs.",
		}),
		rawEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "raw_events_total",
			Help:      "Raw events fetched from all sources.",
		}),
		uniqueEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "unique_events_total",
			Help:      "Events left after deduplication.",
		}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duplicates_total",
			Help:      "Events folded into another, by match reason.",
		}, []string{"reason"}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "archived_events_total",
			Help:      "Events moved to the archive.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Failed source fetches.",
		}, []string{"source"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "errors_total",
			Help:      "Non-fatal errors during runs.",
		}),
		currentEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "events",
			Help:      "Upcoming events in the catalog.",
		}),
		archivedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "archived_events",
			Help:      "Events in the archive.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}

	for _, col := range []prometheus.Collector{
		c.runs, c.rawEvents, c.uniqueEvents, c.duplicates, c.archived,
		c.sourceFailures, c.errors, c.currentEvents, c.archivedEvents,
		c.lastSuccess, c.runDuration,
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObserveRun records the outcome of one run.
func (c *Collector) ObserveRun(stats *domain.RunStats, duplicates []domain.DuplicateMapping) {
	c.runs.Inc()
	c.rawEvents.Add(float64(stats.EventsFetched))
	c.uniqueEvents.Add(float64(stats.UniqueEvents))
	c.archived.Add(float64(stats.ArchivedEvents))
	c.errors.Add(float64(stats.Errors))

	for _, m := range duplicates {
		c.duplicates.WithLabelValues(string(m.Reason)).Inc()
	}
	for _, id := range stats.FailedSources {
		c.sourceFailures.WithLabelValues(id).Inc()
	}

	c.currentEvents.Set(float64(stats.TotalEvents))
	c.archivedEvents.Set(float64(stats.TotalArchived))
	c.lastSuccess.Set(float64(stats.FinishedAt.Unix()))
	c.runDuration.Observe(stats.DurationSeconds)
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
