package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 游戏相关的 prometheus 指标
type Metrics struct {
	Ticks     prometheus.Counter
	Apples    prometheus.Counter
	GamesOver prometheus.Counter
	Restarts  prometheus.Counter
	Inputs    *prometheus.CounterVec
	Sessions  prometheus.Gauge
	Renders   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snake",
			Name:      "ticks_total",
			Help:      "Number of game ticks advanced.",
		}),
		Apples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snake",
			Name:      "apples_eaten_total",
			Help:      "Number of apples eaten across all sessions.",
		}),
		GamesOver: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snake",
			Name:      "games_over_total",
			Help:      "Number of games that ended in a collision.",
		}),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snake",
			Name:      "restarts_total",
			Help:      "Number of explicit restarts.",
		}),
		Inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snake",
			Name:      "direction_inputs_total",
			Help:      "Direction changes by whether they were accepted.",
		}, []string{"accepted"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snake",
			Name:      "sessions",
			Help:      "Number of live sessions.",
		}),
		Renders: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snake",
			Name:      "render_seconds",
			Help:      "Time spent rendering a frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}
	reg.MustRegister(m.Ticks, m.Apples, m.GamesOver, m.Restarts, m.Inputs, m.Sessions, m.Renders)
	return m
}

// Noop returns metrics that are not registered anywhere.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}
