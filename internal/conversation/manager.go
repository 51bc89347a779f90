package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/careervoice/internal/capture"
	"github.com/eleven-am/careervoice/internal/live"
	"github.com/eleven-am/careervoice/internal/metrics"
	"github.com/eleven-am/careervoice/internal/playback"
	"github.com/eleven-am/careervoice/internal/tone"
)

// Manager creates engines for connected clients and tracks them so a
// disconnect can always find its engine to tear down.
type Manager struct {
	dialer   *live.Dialer
	sink     TurnSink
	registry Registry
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

func NewManager(dialer *live.Dialer, sink TurnSink, registry Registry, m *metrics.Metrics, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dialer:   dialer,
		sink:     sink,
		registry: registry,
		metrics:  m,
		log:      log.With("component", "conversation"),
		engines:  make(map[string]*Engine),
	}
}

// Attach builds an engine for one client connection. The device and
// output are the connection's audio legs; connID keys the engine until
// Detach.
func (m *Manager) Attach(connID, userID string, device capture.Device, out playback.Output, clock playback.Clock, listener Listener) *Engine {
	engine := NewEngine(EngineConfig{
		UserID:    userID,
		Transport: dialerTransport{m.dialer},
		Device:    device,
		NewScheduler: func() Scheduler {
			return playback.NewScheduler(out, clock, m.log)
		},
		Listener: listener,
		Sink:     m.sink,
		Registry: m.registry,
		Metrics:  m.metrics,
		Log:      m.log,
	})

	m.mu.Lock()
	m.engines[connID] = engine
	m.mu.Unlock()

	return engine
}

// Detach ends the engine's conversation, if any, and forgets it.
func (m *Manager) Detach(connID string) {
	m.mu.Lock()
	engine, ok := m.engines[connID]
	delete(m.engines, connID)
	m.mu.Unlock()

	if ok {
		engine.End()
	}
}

func (m *Manager) Engine(connID string) (*Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, ok := m.engines[connID]
	return engine, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}

type dialerTransport struct {
	d *live.Dialer
}

func (t dialerTransport) Connect(ctx context.Context, cfg tone.Configuration, h live.Handlers) (TransportSession, error) {
	return t.d.Connect(ctx, cfg, h)
}
