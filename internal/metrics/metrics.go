package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the voice pipeline.
type Metrics struct {
	ActiveConversations prometheus.Gauge
	ConversationsTotal  prometheus.Counter
	ConversationErrors  prometheus.Counter

	FramesCaptured  prometheus.Counter
	ChunksScheduled prometheus.Counter
	DecodeDrops     prometheus.Counter
	Interruptions   prometheus.Counter
	TurnsCompleted  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConversations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "careervoice_active_conversations",
			Help: "Number of live voice conversations currently connected.",
		}),
		ConversationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_conversations_total",
			Help: "Total voice conversations started.",
		}),
		ConversationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_conversation_errors_total",
			Help: "Conversations ended by a transport or capture error.",
		}),
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_capture_frames_total",
			Help: "Encoded microphone frames forwarded upstream.",
		}),
		ChunksScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_playback_chunks_total",
			Help: "Assistant audio chunks scheduled for playback.",
		}),
		DecodeDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_playback_decode_drops_total",
			Help: "Inbound audio chunks dropped because they failed to decode.",
		}),
		Interruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_interruptions_total",
			Help: "Barge-in interruptions that flushed scheduled playback.",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "careervoice_turns_total",
			Help: "Completed conversation turns appended to history.",
		}),
	}
}
