package live

import (
	"encoding/json"
	"testing"
)

func TestRateFromMime(t *testing.T) {
	if got := rateFromMime("audio/pcm;rate=24000"); got != 24000 {
		t.Errorf("expected 24000, got %d", got)
	}
	if got := rateFromMime("audio/pcm; rate=16000"); got != 16000 {
		t.Errorf("expected 16000 with spaced params, got %d", got)
	}
	if got := rateFromMime("audio/pcm"); got != defaultOutputRate {
		t.Errorf("expected default %d, got %d", defaultOutputRate, got)
	}
	if got := rateFromMime("audio/pcm;rate=bogus"); got != defaultOutputRate {
		t.Errorf("expected default for bad rate, got %d", got)
	}
}

func TestExpandEvents_SingleTranscript(t *testing.T) {
	events := expandEvents(&serverContent{
		OutputTranscription: &transcription{Text: "Hello"},
	})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventPartialOutputTranscript || events[0].Text != "Hello" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestExpandEvents_CoOccurringTypes(t *testing.T) {
	// One message carrying a transcript fragment, two audio parts, and
	// the turn boundary must dispatch as all of them.
	sc := &serverContent{
		InputTranscription:  &transcription{Text: "tell me"},
		OutputTranscription: &transcription{Text: "sure"},
		ModelTurn: &content{Parts: []part{
			{InlineData: &blob{MimeType: "audio/pcm;rate=24000", Data: "AAAA"}},
			{Text: "ignored text part"},
			{InlineData: &blob{MimeType: "audio/pcm;rate=24000", Data: "BBBB"}},
		}},
		TurnComplete: true,
	}

	events := expandEvents(sc)
	want := []EventType{
		EventPartialInputTranscript,
		EventPartialOutputTranscript,
		EventAudioChunk,
		EventAudioChunk,
		EventTurnComplete,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, events[i].Type)
		}
	}
	if events[2].SampleRate != 24000 {
		t.Errorf("audio event should carry the mime sample rate, got %d", events[2].SampleRate)
	}
}

func TestExpandEvents_Interrupted(t *testing.T) {
	events := expandEvents(&serverContent{Interrupted: true})
	if len(events) != 1 || events[0].Type != EventInterrupted {
		t.Fatalf("expected single interrupted event, got %+v", events)
	}
}

func TestExpandEvents_EmptyContent(t *testing.T) {
	if events := expandEvents(&serverContent{}); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestSetupMessage_Shape(t *testing.T) {
	msg := setupMessage{Setup: setupPayload{
		Model:                    "test-model",
		SystemInstruction:        &content{Parts: []part{{Text: "hi"}}},
		GenerationConfig:         &generationConfig{ResponseModalities: []string{"AUDIO"}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	setup, ok := decoded["setup"].(map[string]any)
	if !ok {
		t.Fatal("missing setup envelope")
	}
	for _, key := range []string{"model", "systemInstruction", "generationConfig", "inputAudioTranscription", "outputAudioTranscription"} {
		if _, ok := setup[key]; !ok {
			t.Errorf("setup payload missing %q", key)
		}
	}
}
