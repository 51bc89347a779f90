package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/careervoice/internal/audio"
	"github.com/eleven-am/careervoice/internal/tone"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 * 1024
	sendBufSize    = 128
)

// Dialer opens bidirectional sessions against the upstream generative
// live endpoint.
type Dialer struct {
	cfg Config
	log *slog.Logger
}

func NewDialer(cfg Config, log *slog.Logger) *Dialer {
	if log == nil {
		log = slog.Default()
	}
	return &Dialer{cfg: cfg, log: log}
}

// Session is one bidirectional streaming connection. The handle is
// usable immediately after Connect returns; frames sent before the
// remote acknowledges setup are dropped, not queued.
type Session struct {
	conn     *websocket.Conn
	handlers Handlers
	log      *slog.Logger

	send chan []byte
	open atomic.Bool
	done chan struct{}

	closeOnce sync.Once
	termOnce  sync.Once
}

// Connect dials the endpoint, sends the session setup built from the
// tone configuration, and returns the handle. OnOpen fires
// asynchronously once the remote confirms setup.
func (d *Dialer) Connect(ctx context.Context, cfg tone.Configuration, handlers Handlers) (*Session, error) {
	u := url.URL{
		Scheme:   d.cfg.scheme(),
		Host:     d.cfg.Host,
		Path:     d.cfg.Path,
		RawQuery: url.Values{"key": {d.cfg.APIKey}}.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:     conn,
		handlers: handlers,
		log:      d.log,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
	}

	setup := setupMessage{Setup: setupPayload{
		Model:                    d.cfg.model(),
		SystemInstruction:        &content{Parts: []part{{Text: cfg.SystemInstruction()}}},
		GenerationConfig:         &generationConfig{ResponseModalities: []string{"AUDIO"}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	data, err := json.Marshal(setup)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.send <- data

	go s.writePump()
	go s.readPump()

	return s, nil
}

// SendFrame forwards one outbound capture frame. Frames sent before the
// session is open, or after it has closed, are dropped silently; a lossy
// real-time stream never blocks its producer.
func (s *Session) SendFrame(frame audio.Frame) {
	if !s.open.Load() {
		return
	}

	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []blob{{MimeType: frame.MimeType, Data: frame.Data}},
	}}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case s.send <- data:
	case <-s.done:
	default:
		s.log.Warn("live send buffer full, dropping frame")
	}
}

// Close requests graceful termination. Safe to call repeatedly and from
// any state; the terminal callback fires exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.done)

		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	})
}

// terminate dispatches the single terminal callback.
func (s *Session) terminate(err error) {
	s.termOnce.Do(func() {
		s.open.Store(false)
		if err != nil {
			if s.handlers.OnError != nil {
				s.handlers.OnError(err)
			}
			return
		}
		if s.handlers.OnClose != nil {
			s.handlers.OnClose()
		}
	})
}

func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Local close in flight; not a transport failure.
				s.terminate(nil)
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.terminate(nil)
				} else {
					s.terminate(err)
				}
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("live message unmarshal failed", "error", err)
			continue
		}

		if msg.SetupComplete != nil {
			s.open.Store(true)
			if s.handlers.OnOpen != nil {
				s.handlers.OnOpen()
			}
			continue
		}

		if msg.ServerContent != nil && s.handlers.OnEvent != nil {
			for _, evt := range expandEvents(msg.ServerContent) {
				s.handlers.OnEvent(evt)
			}
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
