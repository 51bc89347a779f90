package conversation

// State is the connection state of one conversation. It is owned
// exclusively by the Engine; transitions happen nowhere else.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateError      State = "error"
	StateClosed     State = "closed"
)

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// TranscriptTurn is one side of a completed exchange. Turns are immutable
// once appended; history is append-only and never reordered.
type TranscriptTurn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Listener receives user-facing conversation updates. All methods are
// optional; the gateway forwards them to the browser client.
type Listener interface {
	OnStateChange(state State)
	OnPartialTranscript(speaker Speaker, text string)
	OnTurns(turns []TranscriptTurn)
	OnInterrupted()
	OnFailure(code, message string)
}
