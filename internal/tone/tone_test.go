package tone

import (
	"errors"
	"strings"
	"testing"
)

func TestConfiguration_Validate(t *testing.T) {
	for _, tn := range []Tone{Friendly, Professional, Creative, Bold} {
		cfg := Configuration{Tone: tn}
		if err := cfg.Validate(); err != nil {
			t.Errorf("tone %q should be valid: %v", tn, err)
		}
	}

	cfg := Configuration{Tone: "sarcastic"}
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownTone) {
		t.Errorf("expected ErrUnknownTone, got %v", err)
	}
}

func TestConfiguration_SystemInstruction(t *testing.T) {
	cfg := Configuration{Tone: Professional}
	instruction := cfg.SystemInstruction()
	if !strings.Contains(instruction, "career coach") {
		t.Errorf("instruction should mention the coach role, got %q", instruction)
	}
	if !strings.Contains(instruction, "polished") {
		t.Errorf("instruction should include the professional style, got %q", instruction)
	}
}

func TestConfiguration_SystemInstruction_Custom(t *testing.T) {
	cfg := Configuration{Tone: Friendly, CustomInstruction: "  Focus on software roles.  "}
	instruction := cfg.SystemInstruction()
	if !strings.HasSuffix(instruction, "Focus on software roles.") {
		t.Errorf("custom instruction should be appended trimmed, got %q", instruction)
	}
}
