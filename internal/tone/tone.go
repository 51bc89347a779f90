package tone

import (
	"errors"
	"strings"
)

type Tone string

const (
	Friendly     Tone = "friendly"
	Professional Tone = "professional"
	Creative     Tone = "creative"
	Bold         Tone = "bold"
)

var ErrUnknownTone = errors.New("tone: unknown tone")

var styles = map[Tone]string{
	Friendly:     "Be warm, encouraging, and conversational.",
	Professional: "Be polished, precise, and businesslike.",
	Creative:     "Be imaginative and suggest unconventional angles.",
	Bold:         "Be direct, confident, and challenge the candidate when useful.",
}

// Configuration selects the assistant's speaking style for one session.
// It is consumed once at connection open and never changes afterwards.
type Configuration struct {
	Tone              Tone   `json:"tone"`
	CustomInstruction string `json:"custom_instruction,omitempty"`
}

func (c Configuration) Validate() error {
	if _, ok := styles[c.Tone]; !ok {
		return ErrUnknownTone
	}
	return nil
}

// SystemInstruction builds the system prompt for the live session.
func (c Configuration) SystemInstruction() string {
	var b strings.Builder
	b.WriteString("You are a career coach helping the user with job searching, resumes, and interview practice. ")
	b.WriteString("Keep spoken answers short and concrete.")

	if style, ok := styles[c.Tone]; ok {
		b.WriteString(" ")
		b.WriteString(style)
	}

	if custom := strings.TrimSpace(c.CustomInstruction); custom != "" {
		b.WriteString(" ")
		b.WriteString(custom)
	}

	return b.String()
}
