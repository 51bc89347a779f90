package conversation

import (
	"io"
	"log/slog"
	"testing"
)

func TestManager_AttachDetach(t *testing.T) {
	m := NewManager(nil, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	engine := m.Attach("conn-1", "user-1", nil, nil, nil, nil)
	if engine == nil {
		t.Fatal("attach returned no engine")
	}
	if got, ok := m.Engine("conn-1"); !ok || got != engine {
		t.Fatal("engine lookup failed")
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 engine, got %d", m.Count())
	}

	// Detach on an idle engine is a clean no-op teardown.
	m.Detach("conn-1")
	if _, ok := m.Engine("conn-1"); ok {
		t.Error("engine should be forgotten after detach")
	}
	if m.Count() != 0 {
		t.Errorf("expected 0 engines, got %d", m.Count())
	}

	// Detaching an unknown connection is safe.
	m.Detach("conn-unknown")
}
