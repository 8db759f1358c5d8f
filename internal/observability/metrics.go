// Package observability carries the prometheus instrumentation for the
// session engine and the debug HTTP surface.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picamd",
		Subsystem: "session",
		Name:      "frames_sent_total",
		Help:      "Frames written to the viewer connection.",
	})
	frameBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picamd",
		Subsystem: "session",
		Name:      "frame_bytes_total",
		Help:      "Encoded frame bytes written to the viewer connection.",
	})
	commandsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picamd",
		Subsystem: "session",
		Name:      "commands_applied_total",
		Help:      "Pan/tilt commands applied, by kind.",
	}, []string{"kind"})
	sessionsAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picamd",
		Subsystem: "gate",
		Name:      "sessions_admitted_total",
		Help:      "Connections admitted by the handshake gate.",
	})
	sessionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picamd",
		Subsystem: "gate",
		Name:      "sessions_rejected_total",
		Help:      "Connections rejected by the handshake gate.",
	})
	sessionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "picamd",
		Subsystem: "session",
		Name:      "active",
		Help:      "1 while a viewer session is active.",
	})
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, frameBytes, commandsApplied,
			sessionsAdmitted, sessionsRejected, sessionActive,
		)
	})
}

func RecordFrame(byteCount int) {
	RegisterMetrics()
	framesSent.Inc()
	frameBytes.Add(float64(byteCount))
}

func RecordCommand(kind string) {
	RegisterMetrics()
	commandsApplied.WithLabelValues(kind).Inc()
}

func RecordAdmitted() {
	RegisterMetrics()
	sessionsAdmitted.Inc()
	sessionActive.Set(1)
}

func RecordRejected() {
	RegisterMetrics()
	sessionsRejected.Inc()
}

func RecordSessionEnd() {
	RegisterMetrics()
	sessionActive.Set(0)
}
