package audio

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncodeFrame_Empty(t *testing.T) {
	_, err := EncodeFrame(nil)
	if !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestEncodeFrame_MimeType(t *testing.T) {
	frame, err := EncodeFrame([]float32{0, 0.5, -0.5})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if frame.MimeType != MimePCM16k {
		t.Errorf("expected mime %q, got %q", MimePCM16k, frame.MimeType)
	}
	if frame.Data == "" {
		t.Error("expected non-empty payload")
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	samples := make([]float32, 512)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 16.0))
	}

	frame, err := EncodeFrame(samples)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	buf, err := DecodeFrame(frame.Data, InputSampleRate, 1)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(buf.Channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(buf.Channels))
	}
	if buf.NumSamples() != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), buf.NumSamples())
	}

	const maxErr = 1.0 / 32768.0
	for i, want := range samples {
		got := buf.Channels[0][i]
		if diff := math.Abs(float64(got - want)); diff > maxErr {
			t.Fatalf("sample %d: got %f, want %f (diff %f > %f)", i, got, want, diff, maxErr)
		}
	}
}

func TestDecodeFrame_Stereo(t *testing.T) {
	// Interleaved L/R: L=0.25, R=-0.25 for every frame.
	samples := []float32{0.25, -0.25, 0.25, -0.25, 0.25, -0.25}
	frame, err := EncodeFrame(samples)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	buf, err := DecodeFrame(frame.Data, 24000, 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(buf.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(buf.Channels))
	}
	if buf.NumSamples() != 3 {
		t.Fatalf("expected 3 frames, got %d", buf.NumSamples())
	}
	for i := 0; i < 3; i++ {
		if buf.Channels[0][i] <= 0 || buf.Channels[1][i] >= 0 {
			t.Errorf("frame %d: channels not de-interleaved: L=%f R=%f", i, buf.Channels[0][i], buf.Channels[1][i])
		}
	}
}

func TestDecodeFrame_BadLength(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	_, err := DecodeFrame(payload, 24000, 1)

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeFrame_BadBase64(t *testing.T) {
	_, err := DecodeFrame("not-base64!!!", 24000, 1)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeFrame_LengthNotMultipleOfChannels(t *testing.T) {
	// 6 bytes is valid mono but not valid 2*channels=4 alignment.
	payload := base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 0, 0, 0})
	if _, err := DecodeFrame(payload, 24000, 1); err != nil {
		t.Fatalf("mono decode should succeed: %v", err)
	}
	var decErr *DecodeError
	if _, err := DecodeFrame(payload, 24000, 2); !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError for stereo, got %v", err)
	}
}

func TestBuffer_Duration(t *testing.T) {
	buf := &Buffer{SampleRate: 16000, Channels: [][]float32{make([]float32, 16000)}}
	if buf.Duration() != time.Second {
		t.Errorf("expected 1s, got %v", buf.Duration())
	}

	empty := &Buffer{SampleRate: 0}
	if empty.Duration() != 0 {
		t.Errorf("expected 0 for zero sample rate, got %v", empty.Duration())
	}
}
