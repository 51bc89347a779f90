package live

import (
	"strconv"
	"strings"
)

const defaultOutputRate = 24000

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type setupPayload struct {
	Model                    string            `json:"model"`
	SystemInstruction        *content          `json:"systemInstruction,omitempty"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type realtimeInput struct {
	MediaChunks []blob `json:"mediaChunks"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type transcription struct {
	Text string `json:"text"`
}

type serverContent struct {
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
	ModelTurn           *content       `json:"modelTurn"`
	Interrupted         bool           `json:"interrupted"`
	TurnComplete        bool           `json:"turnComplete"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
}

// rateFromMime extracts the sample rate from mime types of the form
// "audio/pcm;rate=24000".
func rateFromMime(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		if value, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultOutputRate
}

// expandEvents turns one server content block into the event union. A
// single message can carry transcripts, audio, an interruption, and a
// turn boundary at the same time; all of them are dispatched, in this
// fixed order.
func expandEvents(sc *serverContent) []Event {
	var events []Event

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, Event{Type: EventPartialInputTranscript, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, Event{Type: EventPartialOutputTranscript, Text: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			events = append(events, Event{
				Type:       EventAudioChunk,
				Data:       p.InlineData.Data,
				SampleRate: rateFromMime(p.InlineData.MimeType),
			})
		}
	}
	if sc.Interrupted {
		events = append(events, Event{Type: EventInterrupted})
	}
	if sc.TurnComplete {
		events = append(events, Event{Type: EventTurnComplete})
	}

	return events
}
