package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the capture rate the upstream session expects.
	InputSampleRate = 16000
	// FrameSamples is the fixed capture chunk size.
	FrameSamples = 4096

	MimePCM16k = "audio/pcm;rate=16000"
)

var ErrEmptyFrame = errors.New("audio: empty frame")

// DecodeError marks a malformed inbound frame. Callers are expected to
// drop the frame and keep the session alive.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "audio: decode: " + e.Reason
}

// Frame is one encoded capture chunk in the wire format of the live
// session: little-endian 16-bit PCM, base64.
type Frame struct {
	Data     string
	MimeType string
}

// Buffer holds decoded playback audio, one sample slice per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

func (b *Buffer) NumSamples() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.NumSamples()) / float64(b.SampleRate) * float64(time.Second))
}

// EncodeFrame converts raw float samples in [-1, 1] to the wire format.
// Samples are scaled by 32768 and truncated to 16 bits without clamping,
// so values outside [-1, 1] wrap instead of saturating. That matches the
// producing clients, which never emit gain above unity.
func EncodeFrame(samples []float32) (Frame, error) {
	if len(samples) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(math.Round(float64(s) * 32768))
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(v)))
	}

	return Frame{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: MimePCM16k,
	}, nil
}

// DecodeFrame reverses the wire format into per-channel float samples.
func DecodeFrame(data string, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid channel count %d", channels)}
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64: " + err.Error()}
	}

	if len(raw) == 0 || len(raw)%(2*channels) != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("byte length %d is not a multiple of %d", len(raw), 2*channels)}
	}

	frames := len(raw) / (2 * channels)
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(raw[(i*channels+ch)*2:]))
			out[ch][i] = float32(v) / 32768.0
		}
	}

	return &Buffer{SampleRate: sampleRate, Channels: out}, nil
}
