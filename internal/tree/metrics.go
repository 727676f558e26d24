package tree

import (
	"time"

	"github.com/dyluth/canopy/pkg/okr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the tree engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	fetches   *prometheus.CounterVec
	mutations *prometheus.CounterVec
	loads     *prometheus.HistogramVec
	replayed  prometheus.Counter
	discarded prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_fetches_total",
			Help: "Backend fetches issued during loads, by level and outcome",
		}, []string{"level", "outcome"}),

		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_mutations_total",
			Help: "Mutations attempted, by level, operation and outcome",
		}, []string{"level", "op", "outcome"}),

		loads: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_load_duration_seconds",
			Help:    "Duration of full tree loads",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind", "outcome"}),

		replayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "canopy_mutations_replayed_total",
			Help: "Mutations replayed onto a freshly loaded snapshot",
		}),

		discarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "canopy_stale_loads_discarded_total",
			Help: "Loads that finished after a newer load had started",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeFetch(level okr.Level, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(string(level), outcome(err)).Inc()
}

func (m *Metrics) observeMutation(level okr.Level, op Op, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(level), string(op), outcome(err)).Inc()
}

func (m *Metrics) observeLoad(kind okr.RootKind, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(string(kind), outcome(err)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeReplay(n int) {
	if m == nil || n == 0 {
		return
	}
	m.replayed.Add(float64(n))
}

func (m *Metrics) observeDiscard() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}
