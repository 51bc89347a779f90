package live

type EventType string

const (
	EventPartialInputTranscript  EventType = "partial_input_transcript"
	EventPartialOutputTranscript EventType = "partial_output_transcript"
	EventTurnComplete            EventType = "turn_complete"
	EventAudioChunk              EventType = "audio_chunk"
	EventInterrupted             EventType = "interrupted"
)

// Event is one element of the transport's event union. A single inbound
// message may expand into several events; they are dispatched in a fixed
// order: transcripts, audio, interruption, turn completion.
type Event struct {
	Type EventType
	// Text is set for transcript events.
	Text string
	// Data is the base64 audio payload for EventAudioChunk.
	Data string
	// SampleRate is the playback rate for EventAudioChunk.
	SampleRate int
}

// Handlers subscribe a single consumer to the session. OnOpen fires once
// the remote acknowledges setup; OnError and OnClose are terminal and
// mutually exclusive.
type Handlers struct {
	OnOpen  func()
	OnEvent func(Event)
	OnError func(error)
	OnClose func()
}
