package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/careervoice/internal/audio"
	"github.com/eleven-am/careervoice/internal/capture"
	"github.com/eleven-am/careervoice/internal/live"
	"github.com/eleven-am/careervoice/internal/metrics"
	"github.com/eleven-am/careervoice/internal/tone"
	"github.com/google/uuid"
)

var ErrAlreadyActive = errors.New("conversation: session already active")

// TransportSession is the live connection handle the engine drives.
type TransportSession interface {
	SendFrame(frame audio.Frame)
	Close()
}

// Transport opens live sessions. Production wires live.Dialer; tests
// substitute fakes.
type Transport interface {
	Connect(ctx context.Context, cfg tone.Configuration, h live.Handlers) (TransportSession, error)
}

// Scheduler is the playback side the engine forwards audio events to.
type Scheduler interface {
	Schedule(data string, sampleRate int) error
	Interrupt()
	Teardown()
}

type CaptureHandle interface {
	Stop()
}

type CaptureStarter func(ctx context.Context, device capture.Device, onFrame capture.FrameFunc, log *slog.Logger) (CaptureHandle, error)

// TurnSink persists completed turns. Optional.
type TurnSink interface {
	AppendTurns(ctx context.Context, sessionID, userID string, turns []TranscriptTurn) error
}

// Registry tracks which user has a live session, so a second concurrent
// start is rejected even across replicas. Optional.
type Registry interface {
	Claim(ctx context.Context, userID, sessionID string) error
	Heartbeat(ctx context.Context, userID, sessionID string) error
	Release(ctx context.Context, userID, sessionID string) error
}

// heartbeatPeriod renews the registry claim well inside its TTL.
const heartbeatPeriod = 30 * time.Second

type EngineConfig struct {
	UserID       string
	Transport    Transport
	Device       capture.Device
	NewScheduler func() Scheduler
	StartCapture CaptureStarter
	Listener     Listener
	Sink         TurnSink
	Registry     Registry
	Metrics      *metrics.Metrics
	Log          *slog.Logger
}

// Engine is the conversation state machine. It owns the connection
// state, the pending transcript accumulators, and the turn history, and
// it coordinates capture and playback around transport events. One
// engine serves one client; each Start builds a fresh session that is
// fully discarded on teardown.
type Engine struct {
	userID       string
	transport    Transport
	device       capture.Device
	newScheduler func() Scheduler
	startCapture CaptureStarter
	listener     Listener
	sink         TurnSink
	registry     Registry
	metrics      *metrics.Metrics
	log          *slog.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	sessionID  string
	session    TransportSession
	pipeline   CaptureHandle
	sched      Scheduler
	pendingIn  strings.Builder
	pendingOut strings.Builder
	history    []TranscriptTurn
}

func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	startCapture := cfg.StartCapture
	if startCapture == nil {
		startCapture = func(ctx context.Context, device capture.Device, onFrame capture.FrameFunc, log *slog.Logger) (CaptureHandle, error) {
			return capture.Start(ctx, device, onFrame, log)
		}
	}

	return &Engine{
		userID:       cfg.UserID,
		transport:    cfg.Transport,
		device:       cfg.Device,
		newScheduler: cfg.NewScheduler,
		startCapture: startCapture,
		listener:     cfg.Listener,
		sink:         cfg.Sink,
		registry:     cfg.Registry,
		metrics:      cfg.Metrics,
		log:          log.With("user_id", cfg.UserID),
		state:        StateIdle,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// History returns a copy of the completed turns of the current engine.
func (e *Engine) History() []TranscriptTurn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TranscriptTurn, len(e.history))
	copy(out, e.history)
	return out
}

// Start opens a new conversation. Valid only from idle, error, or
// closed; a start while connecting or connected is rejected. Capture
// does not begin until the transport reports open.
func (e *Engine) Start(ctx context.Context, cfg tone.Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.state == StateConnecting || e.state == StateConnected {
		e.mu.Unlock()
		return ErrAlreadyActive
	}
	e.gen++
	gen := e.gen
	sessionID := uuid.New().String()
	e.sessionID = sessionID
	e.state = StateConnecting
	e.pendingIn.Reset()
	e.pendingOut.Reset()
	e.mu.Unlock()

	e.notifyState(StateConnecting)

	if e.registry != nil {
		if err := e.registry.Claim(ctx, e.userID, sessionID); err != nil {
			if e.teardown(gen, StateError) {
				e.notifyState(StateError)
			}
			e.notifyFailure("session_conflict", "another live session is already active")
			return fmt.Errorf("conversation: claim session: %w", err)
		}
	}

	sched := e.newScheduler()

	handlers := live.Handlers{
		OnOpen:  func() { e.onOpen(ctx, gen) },
		OnEvent: func(evt live.Event) { e.handleEvent(gen, evt) },
		OnError: func(err error) { e.onTransportError(gen, err) },
		OnClose: func() { e.onTransportClose(gen) },
	}

	session, err := e.transport.Connect(ctx, cfg, handlers)
	if err != nil {
		sched.Teardown()
		if e.teardown(gen, StateError) {
			e.notifyState(StateError)
		}
		e.notifyFailure("connect_failed", "could not reach the assistant")
		if e.metrics != nil {
			e.metrics.ConversationErrors.Inc()
		}
		return fmt.Errorf("conversation: connect: %w", err)
	}

	e.mu.Lock()
	if e.gen != gen {
		// Torn down while connecting.
		e.mu.Unlock()
		session.Close()
		sched.Teardown()
		return nil
	}
	e.session = session
	e.sched = sched
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ConversationsTotal.Inc()
	}

	e.log.Info("conversation connecting", "session_id", sessionID, "tone", cfg.Tone)
	return nil
}

// End closes the conversation from connecting or connected and returns
// the engine to idle. Calling it in any other state is a no-op.
func (e *Engine) End() {
	e.mu.Lock()
	if e.state != StateConnecting && e.state != StateConnected {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	e.mu.Unlock()

	if e.teardown(gen, StateIdle) {
		e.notifyState(StateIdle)
	}
}

func (e *Engine) onOpen(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if e.gen != gen || e.state != StateConnecting {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	handle, err := e.startCapture(ctx, e.device, func(frame audio.Frame) {
		e.sendFrame(frame)
	}, e.log)
	if err != nil {
		if e.teardown(gen, StateError) {
			e.notifyState(StateError)
		}
		if errors.Is(err, capture.ErrPermissionDenied) {
			e.notifyFailure("permission_denied", "microphone access was denied")
		} else {
			e.notifyFailure("capture_failed", "could not start the microphone")
		}
		if e.metrics != nil {
			e.metrics.ConversationErrors.Inc()
		}
		e.log.Warn("capture start failed", "error", err)
		return
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		handle.Stop()
		return
	}
	e.pipeline = handle
	e.state = StateConnected
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ActiveConversations.Inc()
	}
	if e.registry != nil {
		go e.heartbeatLoop(gen)
	}
	e.notifyState(StateConnected)
	e.log.Info("conversation connected", "session_id", e.SessionID())
}

func (e *Engine) heartbeatLoop(gen uint64) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		stale := e.gen != gen
		sessionID := e.sessionID
		e.mu.Unlock()
		if stale {
			return
		}
		if err := e.registry.Heartbeat(context.Background(), e.userID, sessionID); err != nil {
			e.log.Debug("registry heartbeat failed", "error", err)
		}
	}
}

func (e *Engine) sendFrame(frame audio.Frame) {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()

	if session == nil {
		return
	}
	session.SendFrame(frame)
	if e.metrics != nil {
		e.metrics.FramesCaptured.Inc()
	}
}

func (e *Engine) handleEvent(gen uint64, evt live.Event) {
	switch evt.Type {
	case live.EventPartialInputTranscript:
		e.appendPending(gen, SpeakerUser, evt.Text)
	case live.EventPartialOutputTranscript:
		e.appendPending(gen, SpeakerModel, evt.Text)
	case live.EventTurnComplete:
		e.flushTurn(gen)
	case live.EventAudioChunk:
		e.scheduleAudio(gen, evt)
	case live.EventInterrupted:
		e.interrupt(gen)
	}
}

func (e *Engine) appendPending(gen uint64, speaker Speaker, text string) {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	var full string
	if speaker == SpeakerUser {
		e.pendingIn.WriteString(text)
		full = e.pendingIn.String()
	} else {
		e.pendingOut.WriteString(text)
		full = e.pendingOut.String()
	}
	e.mu.Unlock()

	if e.listener != nil {
		e.listener.OnPartialTranscript(speaker, full)
	}
}

// flushTurn converts both pending buffers into a user/model turn pair,
// appends them to history atomically, and clears the buffers. Both turns
// are appended even when one side said nothing.
func (e *Engine) flushTurn(gen uint64) {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	turns := []TranscriptTurn{
		{Speaker: SpeakerUser, Text: e.pendingIn.String()},
		{Speaker: SpeakerModel, Text: e.pendingOut.String()},
	}
	e.pendingIn.Reset()
	e.pendingOut.Reset()
	e.history = append(e.history, turns...)
	sessionID := e.sessionID
	e.mu.Unlock()

	if e.sink != nil {
		if err := e.sink.AppendTurns(context.Background(), sessionID, e.userID, turns); err != nil {
			e.log.Error("failed to persist turns", "session_id", sessionID, "error", err)
		}
	}
	if e.metrics != nil {
		e.metrics.TurnsCompleted.Add(float64(len(turns)))
	}
	if e.listener != nil {
		e.listener.OnTurns(turns)
	}
}

func (e *Engine) scheduleAudio(gen uint64, evt live.Event) {
	e.mu.Lock()
	if e.gen != gen || e.sched == nil {
		e.mu.Unlock()
		return
	}
	sched := e.sched
	e.mu.Unlock()

	if err := sched.Schedule(evt.Data, evt.SampleRate); err != nil {
		var decErr *audio.DecodeError
		if errors.As(err, &decErr) {
			// One bad frame never ends the conversation.
			if e.metrics != nil {
				e.metrics.DecodeDrops.Inc()
			}
			e.log.Warn("dropping undecodable audio chunk", "error", err)
			return
		}
		e.log.Debug("schedule failed", "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.ChunksScheduled.Inc()
	}
}

func (e *Engine) interrupt(gen uint64) {
	e.mu.Lock()
	if e.gen != gen || e.sched == nil {
		e.mu.Unlock()
		return
	}
	sched := e.sched
	e.mu.Unlock()

	sched.Interrupt()
	if e.metrics != nil {
		e.metrics.Interruptions.Inc()
	}
	if e.listener != nil {
		e.listener.OnInterrupted()
	}
}

func (e *Engine) onTransportError(gen uint64, err error) {
	if e.teardown(gen, StateError) {
		e.notifyState(StateError)
		e.notifyFailure("transport_error", "the assistant connection failed")
		if e.metrics != nil {
			e.metrics.ConversationErrors.Inc()
		}
		e.log.Warn("transport error", "error", err)
	}
}

func (e *Engine) onTransportClose(gen uint64) {
	if e.teardown(gen, StateClosed) {
		e.notifyState(StateClosed)
	}
}

// teardown releases everything belonging to the generation: capture,
// transport, playback, and the registry claim. Late callbacks from a
// previous generation are ignored, so an explicit End cannot be
// overridden by the close event it provokes.
func (e *Engine) teardown(gen uint64, to State) bool {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return false
	}
	e.gen++
	wasConnected := e.state == StateConnected
	session := e.session
	pipeline := e.pipeline
	sched := e.sched
	sessionID := e.sessionID
	e.session = nil
	e.pipeline = nil
	e.sched = nil
	e.pendingIn.Reset()
	e.pendingOut.Reset()
	e.state = to
	e.mu.Unlock()

	if pipeline != nil {
		pipeline.Stop()
	}
	if session != nil {
		session.Close()
	}
	if sched != nil {
		sched.Teardown()
	}
	if e.registry != nil {
		if err := e.registry.Release(context.Background(), e.userID, sessionID); err != nil {
			e.log.Debug("registry release failed", "error", err)
		}
	}
	if wasConnected && e.metrics != nil {
		e.metrics.ActiveConversations.Dec()
	}

	return true
}

func (e *Engine) notifyState(state State) {
	if e.listener != nil {
		e.listener.OnStateChange(state)
	}
}

func (e *Engine) notifyFailure(code, message string) {
	if e.listener != nil {
		e.listener.OnFailure(code, message)
	}
}
