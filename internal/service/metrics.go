package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatserver/internal/domain"
)

// Metrics - счетчики Prometheus, обновляемые по событиям встреч
type Metrics struct {
	activeMeetings prometheus.Gauge
	sessions       prometheus.Gauge
	events         *prometheus.CounterVec
	droppedEvents  prometheus.Counter
	rejectedFrames *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeMeetings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatserver",
			Name:      "active_meetings",
			Help:      "Number of meetings currently registered.",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatserver",
			Name:      "sessions",
			Help:      "Number of open chat sessions.",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatserver",
			Name:      "meeting_events_total",
			Help:      "Meeting events by type.",
		}, []string{"type"}),
		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatserver",
			Name:      "dropped_events_total",
			Help:      "Events dropped because the dispatch queue was full.",
		}),
		rejectedFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatserver",
			Name:      "rejected_frames_total",
			Help:      "Inbound websocket frames refused before dispatch.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) HandleEvent(_ context.Context, evt domain.MeetingEvent) {
	m.events.WithLabelValues(string(evt.Type)).Inc()
	switch evt.Type {
	case domain.MeetingCreated:
		m.activeMeetings.Inc()
	case domain.MeetingEnded:
		m.activeMeetings.Dec()
	}
}

func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	m.sessions.Dec()
}

func (m *Metrics) EventDropped() {
	m.droppedEvents.Inc()
}

func (m *Metrics) FrameRejected(reason string) {
	m.rejectedFrames.WithLabelValues(reason).Inc()
}
