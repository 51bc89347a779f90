package gateway

import (
	"errors"

	"github.com/eleven-am/careervoice/internal/conversation"
	"github.com/eleven-am/careervoice/internal/tone"
)

// Control messages from the client.
const (
	typeStart = "start"
	typeStop  = "stop"
)

// Messages to the client.
const (
	typeState       = "state"
	typePartial     = "partial"
	typeTurns       = "turns"
	typeInterrupted = "interrupted"
	typeError       = "error"
	typeAudio       = "audio"
	typeCancelAudio = "cancelAudio"
)

type clientEnvelope struct {
	Type              string `json:"type"`
	Tone              string `json:"tone,omitempty"`
	CustomInstruction string `json:"customInstruction,omitempty"`
}

func (e clientEnvelope) toneConfiguration() tone.Configuration {
	return tone.Configuration{
		Tone:              tone.Tone(e.Tone),
		CustomInstruction: e.CustomInstruction,
	}
}

type serverEnvelope struct {
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`

	Turns []conversation.TranscriptTurn `json:"turns,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	ID         string  `json:"id,omitempty"`
	Data       string  `json:"data,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	StartAt    float64 `json:"startAt,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

// handleStartError reports start failures the engine's listener does not
// already cover.
func (c *Conn) handleStartError(err error) {
	switch {
	case errors.Is(err, conversation.ErrAlreadyActive):
		c.sendEnvelope(serverEnvelope{Type: typeError, Code: "already_active", Message: "a conversation is already running"})
	case errors.Is(err, tone.ErrUnknownTone):
		c.sendEnvelope(serverEnvelope{Type: typeError, Code: "invalid_tone", Message: "unknown tone"})
	default:
		// Connect and claim failures already reached the client through
		// the listener.
		c.log.Warn("conversation start failed", "error", err)
	}
}
