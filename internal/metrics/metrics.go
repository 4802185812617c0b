package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cschnabel/mplog/internal/ingest"
)

const namespace = "mplog"

// Metrics holds parse counters on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	parses           *prometheus.CounterVec
	games            prometheus.Counter
	lines            prometheus.Counter
	decodeFailures   prometheus.Counter
	malformedLobbies prometheus.Counter
	parseSeconds     prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parses_total",
			Help:      "Log parses by outcome.",
		}, []string{"status"}),
		games: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_total",
			Help:      "Games reconstructed from parsed logs.",
		}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Log lines read.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_decode_failures_total",
			Help:      "Packed payloads that failed to decode.",
		}),
		malformedLobbies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_lobby_lines_total",
			Help:      "Lobby info lines missing required fields.",
		}),
		parseSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Wall time per parse.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	m.Registry.MustRegister(
		m.parses,
		m.games,
		m.lines,
		m.decodeFailures,
		m.malformedLobbies,
		m.parseSeconds,
	)
	return m
}

// Observe records one finished parse.
func (m *Metrics) Observe(res ingest.Result) {
	m.parses.WithLabelValues(string(res.Status)).Inc()
	m.games.Add(float64(len(res.Games)))
	m.lines.Add(float64(res.Stats.LinesRead))
	m.decodeFailures.Add(float64(res.Stats.DecodeFailures))
	m.malformedLobbies.Add(float64(res.Stats.MalformedLobbies))
	if !res.Stats.CompletedAt.IsZero() {
		m.parseSeconds.Observe(res.Stats.CompletedAt.Sub(res.Stats.StartedAt).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
