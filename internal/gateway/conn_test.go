package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/eleven-am/careervoice/internal/audio"
	"github.com/eleven-am/careervoice/internal/capture"
)

func newTestConn() *Conn {
	return &Conn{
		id:    "conn_test",
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		epoch: time.Now(),
		send:  make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func readEnvelope(t *testing.T, c *Conn) serverEnvelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env serverEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no envelope sent")
		return serverEnvelope{}
	}
}

func TestDecodePCMFloat32(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-1.0))

	samples, ok := decodePCMFloat32(raw)
	if !ok || len(samples) != 2 {
		t.Fatalf("decode failed: ok=%v samples=%v", ok, samples)
	}
	if samples[0] != 0.5 || samples[1] != -1.0 {
		t.Errorf("unexpected samples: %v", samples)
	}

	if _, ok := decodePCMFloat32(raw[:7]); ok {
		t.Error("misaligned frame should be rejected")
	}
	if _, ok := decodePCMFloat32(nil); ok {
		t.Error("empty frame should be rejected")
	}
}

func TestMicStream_ReadAndDrain(t *testing.T) {
	m := newMicStream()
	m.push([]float32{1, 2, 3})

	buf := make([]float32, 2)
	n, err := m.Read(buf)
	if err != nil || n != 2 {
		t.Fatalf("read: n=%d err=%v", n, err)
	}
	if buf[0] != 1 || buf[1] != 2 {
		t.Errorf("unexpected samples: %v", buf)
	}

	// Leftover from the previous chunk comes first.
	n, err = m.Read(buf)
	if err != nil || n != 1 || buf[0] != 3 {
		t.Fatalf("leftover read: n=%d err=%v buf=%v", n, err, buf)
	}

	m.push([]float32{4})
	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	n, err = m.Read(buf)
	if err != nil || n != 1 || buf[0] != 4 {
		t.Fatalf("buffered frame should survive close: n=%d err=%v", n, err)
	}
	if _, err = m.Read(buf); err != io.EOF {
		t.Fatalf("expected EOF after drain, got %v", err)
	}

	// Pushes after close are dropped, not panics.
	m.push([]float32{5})
}

func TestConn_OpenGivesFreshStreamPerConversation(t *testing.T) {
	c := newTestConn()

	first, err := c.Open(context.Background(), audio.InputSampleRate)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	second, err := c.Open(context.Background(), audio.InputSampleRate)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if first == second {
		t.Error("each conversation should get its own stream")
	}

	// The stale stream is closed so its reader unwinds.
	buf := make([]float32, 4)
	if _, err := first.Read(buf); err != io.EOF {
		t.Errorf("expected EOF from replaced stream, got %v", err)
	}

	c.pushAudio([]byte{0, 0, 0, 0})
	if n, err := second.Read(buf); err != nil || n != 1 {
		t.Errorf("active stream should receive frames: n=%d err=%v", n, err)
	}
}

func TestConn_OpenAfterCloseDenied(t *testing.T) {
	c := newTestConn()
	c.closed = true

	if _, err := c.Open(context.Background(), audio.InputSampleRate); !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected permission denied on closed conn, got %v", err)
	}
}

func TestConn_PlaySendsAudioEnvelope(t *testing.T) {
	c := newTestConn()
	ended := make(chan struct{})

	buf := &audio.Buffer{SampleRate: 24000, Channels: [][]float32{make([]float32, 240)}}
	src, err := c.Play(buf, 0, func() { close(ended) })
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	env := readEnvelope(t, c)
	if env.Type != typeAudio || env.ID == "" || env.Data == "" {
		t.Fatalf("unexpected audio envelope: %+v", env)
	}
	if env.SampleRate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", env.SampleRate)
	}
	if env.Duration < 0.009 || env.Duration > 0.011 {
		t.Errorf("240 samples at 24kHz should last 10ms, got %f", env.Duration)
	}

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("onEnded never fired")
	}

	// Stop after natural completion is safe and still cancels remotely.
	src.Stop()
	env = readEnvelope(t, c)
	if env.Type != typeCancelAudio {
		t.Errorf("expected cancel envelope, got %+v", env)
	}
}

func TestConn_StopCancelsOnceAndKillsTimer(t *testing.T) {
	c := newTestConn()
	ended := make(chan struct{}, 1)

	buf := &audio.Buffer{SampleRate: 24000, Channels: [][]float32{make([]float32, 24000)}}
	src, err := c.Play(buf, c.Now()+10, func() { ended <- struct{}{} })
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	readEnvelope(t, c)

	src.Stop()
	src.Stop()

	env := readEnvelope(t, c)
	if env.Type != typeCancelAudio {
		t.Fatalf("expected cancel envelope, got %+v", env)
	}
	select {
	case data := <-c.send:
		t.Fatalf("second stop must not send again: %s", data)
	default:
	}

	select {
	case <-ended:
		t.Fatal("stopped source must not report natural end")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConn_SpeakerCloseKeepsSocketAlive(t *testing.T) {
	c := newTestConn()
	if err := c.Speaker().Close(); err != nil {
		t.Fatalf("speaker close failed: %v", err)
	}

	c.OnStateChange("idle")
	env := readEnvelope(t, c)
	if env.Type != typeState || env.State != "idle" {
		t.Errorf("connection should outlive the playback leg: %+v", env)
	}
}

func TestConn_ListenerEnvelopes(t *testing.T) {
	c := newTestConn()

	c.OnFailure("permission_denied", "microphone access was denied")
	env := readEnvelope(t, c)
	if env.Type != typeError || env.Code != "permission_denied" {
		t.Errorf("unexpected error envelope: %+v", env)
	}

	c.OnPartialTranscript("model", "Hel")
	env = readEnvelope(t, c)
	if env.Type != typePartial || env.Speaker != "model" || env.Text != "Hel" {
		t.Errorf("unexpected partial envelope: %+v", env)
	}
}

func TestClientEnvelope_ToneConfiguration(t *testing.T) {
	var env clientEnvelope
	if err := json.Unmarshal([]byte(`{"type":"start","tone":"bold","customInstruction":"focus on tech"}`), &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	cfg := env.toneConfiguration()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid configuration: %v", err)
	}
	if cfg.CustomInstruction != "focus on tech" {
		t.Errorf("custom instruction lost: %q", cfg.CustomInstruction)
	}
}
