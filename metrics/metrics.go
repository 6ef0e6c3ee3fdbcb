// Package metrics provides Prometheus metrics for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "syncfm"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Latency compensation
	LatencySeconds prometheus.Gauge
	LatencyBumps   prometheus.Counter

	// Reconciler
	TracksReceived    prometheus.Counter
	LoadsStarted      *prometheus.CounterVec
	StaleLoadsDropped prometheus.Counter
	SourceErrors      prometheus.Counter
	PlayRejected      prometheus.Counter
	SeekCommands      prometheus.Counter
	CommandsSent      *prometheus.CounterVec
	ReconcilerState   *prometheus.GaugeVec

	// Lyrics
	LyricCues        prometheus.Gauge
	LyricParseFailed prometheus.Counter
	AnnotatedLines   prometheus.Counter
	AnnotatorReady   prometheus.Gauge
}

// DefaultMetrics is the global metrics instance registered with the default
// Prometheus registry.
var DefaultMetrics = New(prometheus.DefaultRegisterer)

// New creates the metrics and registers them with reg. A nil reg leaves them
// unregistered, which tests use to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LatencySeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Current latency compensation applied to server offsets",
		}),
		LatencyBumps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "latency_bumps_total",
			Help:      "Number of times the latency estimate was increased",
		}),
		TracksReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_received_total",
			Help:      "Number of new-track events received",
		}),
		LoadsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_started_total",
			Help:      "Source loads issued to the player",
		}, []string{"path"}),
		StaleLoadsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_loads_suppressed_total",
			Help:      "Delayed loads dropped because a newer track superseded them",
		}),
		SourceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Player source load failures",
		}),
		PlayRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "play_rejected_total",
			Help:      "Play attempts rejected by the player",
		}),
		SeekCommands: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seek_commands_total",
			Help:      "Server-issued seek commands applied",
		}),
		CommandsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Outbound commands sent to the session server",
		}, []string{"key"}),
		ReconcilerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciler_state",
			Help:      "1 for the reconciler's current state, 0 otherwise",
		}, []string{"state"}),
		LyricCues: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lyric_cues",
			Help:      "Number of cues in the current track's lyric store",
		}),
		LyricParseFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lyric_parse_failed_total",
			Help:      "Lyric blobs rejected as malformed",
		}),
		AnnotatedLines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotated_lines_total",
			Help:      "Lyric lines rewritten with furigana",
		}),
		AnnotatorReady: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "annotator_ready",
			Help:      "1 once the furigana tokenizer finished loading",
		}),
	}
}
