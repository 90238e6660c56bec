// Package metrics exposes Prometheus collectors for the update scheduler.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sbar"

// Recorder groups the scheduler collectors. A nil *Recorder is valid and
// records nothing, so callers never need to check whether metrics are on.
type Recorder struct {
	passes        *prometheus.CounterVec
	recomputes    *prometheus.CounterVec
	publishErrors prometheus.Counter
	passDuration  prometheus.Histogram
	tick          prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with r. Collectors
// already registered with r are reused, which allows several bars to share
// the default registry.
func NewRecorder(r prometheus.Registerer) (*Recorder, error) {
	rec := &Recorder{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "passes_total",
			Help:      "Number of update passes that published, by reason.",
		}, []string{"reason"}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "items_recomputed_total",
			Help:      "Number of item recomputations, by kind and result.",
		}, []string{"kind", "result"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "publish_errors_total",
			Help:      "Number of failed publishes to the display sink.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pass_duration_seconds",
			Help:      "Time spent recomputing and publishing in one pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick",
			Help:      "Current value of the tick counter.",
		}),
	}

	var err error
	if rec.passes, err = register(r, rec.passes); err != nil {
		return nil, err
	}
	if rec.recomputes, err = register(r, rec.recomputes); err != nil {
		return nil, err
	}
	if rec.publishErrors, err = register(r, rec.publishErrors); err != nil {
		return nil, err
	}
	if rec.passDuration, err = register(r, rec.passDuration); err != nil {
		return nil, err
	}
	if rec.tick, err = register(r, rec.tick); err != nil {
		return nil, err
	}
	return rec, nil
}

// register adds c to r, returning the previously registered collector if an
// identical one already exists.
func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObservePass records a published pass.
func (r *Recorder) ObservePass(reason string, d time.Duration) {
	if r == nil {
		return
	}
	r.passes.WithLabelValues(reason).Inc()
	r.passDuration.Observe(d.Seconds())
}

// IncRecompute records one item recomputation. result is "ok" or "error".
func (r *Recorder) IncRecompute(kind, result string) {
	if r == nil {
		return
	}
	r.recomputes.WithLabelValues(kind, result).Inc()
}

// IncPublishError records a failed publish.
func (r *Recorder) IncPublishError() {
	if r == nil {
		return
	}
	r.publishErrors.Inc()
}

// SetTick records the tick counter.
func (r *Recorder) SetTick(tick uint64) {
	if r == nil {
		return
	}
	r.tick.Set(float64(tick))
}
