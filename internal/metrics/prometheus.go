// Package metrics exports pipeline counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voiceagent/internal/domain"
)

var knownStates = []domain.ConnectionState{
	domain.StateDisconnected,
	domain.StateConnecting,
	domain.StateConnected,
	domain.StateError,
}

// Prometheus records session and audio pipeline metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	connectionState  *prometheus.GaugeVec
	connectAttempts  *prometheus.CounterVec
	chunksSent       prometheus.Counter
	chunksDropped    *prometheus.CounterVec
	chunksScheduled  prometheus.Counter
	scheduledSeconds prometheus.Histogram
	payloadsRejected prometheus.Counter
	interruptions    prometheus.Counter
	turnsCommitted   prometheus.Counter
	transcriptLines  prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Prometheus{
		registry: registry,
		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voiceagent_connection_state",
			Help: "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		connectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceagent_connect_attempts_total",
			Help: "Connect attempts by result",
		}, []string{"result"}),
		chunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceagent_capture_chunks_sent_total",
			Help: "Microphone chunks handed to the live session",
		}),
		chunksDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceagent_capture_chunks_dropped_total",
			Help: "Microphone chunks dropped before reaching the live session",
		}, []string{"reason"}),
		chunksScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceagent_playback_chunks_scheduled_total",
			Help: "Agent audio chunks scheduled for playback",
		}),
		scheduledSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceagent_playback_chunk_duration_seconds",
			Help:    "Duration of scheduled agent audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		payloadsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceagent_playback_payloads_rejected_total",
			Help: "Inbound audio payloads that failed to decode",
		}),
		interruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceagent_interruptions_total",
			Help: "Agent turns interrupted by the user",
		}),
		turnsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceagent_turns_committed_total",
			Help: "Completed conversation turns",
		}),
		transcriptLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceagent_transcript_entries_total",
			Help: "Transcript entries committed",
		}),
	}
}

// Registry exposes the registry for serving and tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ConnectionState(state domain.ConnectionState) {
	for _, known := range knownStates {
		value := 0.0
		if known == state {
			value = 1
		}
		p.connectionState.WithLabelValues(string(known)).Set(value)
	}
}

func (p *Prometheus) ConnectAttempt(result string) {
	p.connectAttempts.WithLabelValues(result).Inc()
}

func (p *Prometheus) ChunkSent() {
	p.chunksSent.Inc()
}

func (p *Prometheus) ChunkDropped(reason string) {
	p.chunksDropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) ChunkScheduled(duration time.Duration) {
	p.chunksScheduled.Inc()
	p.scheduledSeconds.Observe(duration.Seconds())
}

func (p *Prometheus) PayloadRejected() {
	p.payloadsRejected.Inc()
}

func (p *Prometheus) Interrupted() {
	p.interruptions.Inc()
}

func (p *Prometheus) TurnCommitted(entries int) {
	p.turnsCommitted.Inc()
	p.transcriptLines.Add(float64(entries))
}
