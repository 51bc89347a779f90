package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/eleven-am/careervoice/internal/audio"
	"github.com/eleven-am/careervoice/internal/capture"
	"github.com/eleven-am/careervoice/internal/conversation"
	"github.com/eleven-am/careervoice/internal/playback"
	"github.com/eleven-am/careervoice/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBufSize    = 256
	micBufFrames   = 32
)

// Conn is one browser connection. It is the client's audio hardware as
// far as the pipeline is concerned: inbound binary frames are the
// microphone, outbound audio envelopes are the speaker, and the shared
// timeline starts when the socket opens.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	log    *slog.Logger
	epoch  time.Time

	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	mic    *micStream
	closed bool
}

func NewConn(ws *websocket.Conn, userID string, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	id := shared.NewID("conn_")
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		log:    log.With("conn_id", id, "user_id", userID),
		epoch:  time.Now(),
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	mic := c.mic
	c.mic = nil
	c.mu.Unlock()

	close(c.done)
	if mic != nil {
		_ = mic.Close()
	}
	return c.ws.Close()
}

func (c *Conn) sendEnvelope(env serverEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("failed to marshal envelope", "error", err)
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn("send buffer full, dropping message", "type", env.Type)
	}
}

// Open hands out a fresh microphone stream. Each conversation gets its
// own stream; closing the previous one never starves the next.
func (c *Conn) Open(ctx context.Context, sampleRate int) (capture.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, capture.ErrPermissionDenied
	}
	if c.mic != nil {
		_ = c.mic.Close()
	}
	c.mic = newMicStream()
	return c.mic, nil
}

// pushAudio feeds one binary microphone frame into the active stream.
// Frames arriving with no conversation running are dropped.
func (c *Conn) pushAudio(data []byte) {
	samples, ok := decodePCMFloat32(data)
	if !ok {
		c.log.Warn("dropping malformed microphone frame", "bytes", len(data))
		return
	}

	c.mu.Lock()
	mic := c.mic
	c.mu.Unlock()

	if mic != nil {
		mic.push(samples)
	}
}

// Now reports seconds since the connection opened. This is the playback
// timeline the client schedules against.
func (c *Conn) Now() float64 {
	return time.Since(c.epoch).Seconds()
}

// Play ships one decoded buffer to the client with its exact start
// position. Completion is tracked by timer; a stopped source tells the
// client to cancel the chunk.
func (c *Conn) Play(buf *audio.Buffer, startAt float64, onEnded func()) (playback.Source, error) {
	frame, err := audio.EncodeFrame(buf.Channels[0])
	if err != nil {
		return nil, err
	}

	id := shared.NewID("chunk_")
	duration := buf.Duration().Seconds()
	c.sendEnvelope(serverEnvelope{
		Type:       typeAudio,
		ID:         id,
		Data:       frame.Data,
		SampleRate: buf.SampleRate,
		StartAt:    startAt,
		Duration:   duration,
	})

	until := time.Duration((startAt + duration - c.Now()) * float64(time.Second))
	if until < 0 {
		until = 0
	}
	timer := time.AfterFunc(until, onEnded)

	return &remoteSource{conn: c, id: id, timer: timer}, nil
}

// Speaker exposes the playback leg. Its Close releases only the audio
// side; conversations come and go while the socket stays open.
func (c *Conn) Speaker() playback.Output {
	return speakerOutput{c}
}

type speakerOutput struct {
	c *Conn
}

func (o speakerOutput) Play(buf *audio.Buffer, startAt float64, onEnded func()) (playback.Source, error) {
	return o.c.Play(buf, startAt, onEnded)
}

func (o speakerOutput) Close() error {
	return nil
}

type remoteSource struct {
	conn  *Conn
	id    string
	timer *time.Timer
	once  sync.Once
}

func (s *remoteSource) Stop() {
	s.once.Do(func() {
		s.timer.Stop()
		s.conn.sendEnvelope(serverEnvelope{Type: typeCancelAudio, ID: s.id})
	})
}

func (c *Conn) OnStateChange(state conversation.State) {
	c.sendEnvelope(serverEnvelope{Type: typeState, State: string(state)})
}

func (c *Conn) OnPartialTranscript(speaker conversation.Speaker, text string) {
	c.sendEnvelope(serverEnvelope{Type: typePartial, Speaker: string(speaker), Text: text})
}

func (c *Conn) OnTurns(turns []conversation.TranscriptTurn) {
	c.sendEnvelope(serverEnvelope{Type: typeTurns, Turns: turns})
}

func (c *Conn) OnInterrupted() {
	c.sendEnvelope(serverEnvelope{Type: typeInterrupted})
}

func (c *Conn) OnFailure(code, message string) {
	c.sendEnvelope(serverEnvelope{Type: typeError, Code: code, Message: message})
}

func (c *Conn) readPump(engine *conversation.Engine) {
	defer func() {
		_ = c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.pushAudio(data)
		case websocket.TextMessage:
			c.handleControl(data, engine)
		}
	}
}

func (c *Conn) handleControl(data []byte, engine *conversation.Engine) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("failed to unmarshal control message", "error", err)
		return
	}

	switch env.Type {
	case typeStart:
		cfg := env.toneConfiguration()
		if err := engine.Start(context.Background(), cfg); err != nil {
			c.handleStartError(err)
		}
	case typeStop:
		engine.End()
	default:
		c.log.Warn("unknown control message", "type", env.Type)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// micStream buffers inbound microphone frames for the capture pipeline.
// The producer never blocks; frames beyond the buffer are dropped.
type micStream struct {
	frames   chan []float32
	done     chan struct{}
	leftover []float32

	closeOnce sync.Once
}

func newMicStream() *micStream {
	return &micStream{
		frames: make(chan []float32, micBufFrames),
		done:   make(chan struct{}),
	}
}

func (m *micStream) push(samples []float32) {
	select {
	case m.frames <- samples:
	case <-m.done:
	default:
	}
}

func (m *micStream) Read(p []float32) (int, error) {
	if len(m.leftover) > 0 {
		n := copy(p, m.leftover)
		m.leftover = m.leftover[n:]
		return n, nil
	}

	select {
	case chunk := <-m.frames:
		n := copy(p, chunk)
		m.leftover = chunk[n:]
		return n, nil
	case <-m.done:
		// Drain anything buffered before reporting end of stream.
		select {
		case chunk := <-m.frames:
			n := copy(p, chunk)
			m.leftover = chunk[n:]
			return n, nil
		default:
			return 0, io.EOF
		}
	}
}

func (m *micStream) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// decodePCMFloat32 parses a binary microphone frame of little-endian
// float32 samples.
func decodePCMFloat32(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, true
}
