package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recorded is one frame captured by fakeConn.
type recorded struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// fakeConn is an in-memory Conn that records every payload it accepts.
type fakeConn struct {
	id       string
	capacity int

	mu     sync.Mutex
	frames []recorded
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return false
	}
	var frame recorded
	if err := json.Unmarshal(payload, &frame); err != nil {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) all() []recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recorded(nil), c.frames...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func (c *fakeConn) named(name string) []recorded {
	var out []recorded
	for _, f := range c.all() {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

func decodeAll[T any](t *testing.T, frames []recorded) []T {
	t.Helper()
	out := make([]T, 0, len(frames))
	for _, f := range frames {
		var v T
		require.NoError(t, json.Unmarshal(f.Data, &v))
		out = append(out, v)
	}
	return out
}

// fakeSaver stores nothing and hands back a predictable URL.
type fakeSaver struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (s *fakeSaver) SaveFile(_ context.Context, data []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "/static/avatars/" + name, nil
}

type fixture struct {
	handler    *Handler
	registry   *Registry
	dispatcher *Dispatcher
	saver      *fakeSaver
}

func newFixture() fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	dispatcher := NewDispatcher(log)
	saver := &fakeSaver{}
	return fixture{
		handler:    NewHandler(registry, dispatcher, saver, log),
		registry:   registry,
		dispatcher: dispatcher,
		saver:      saver,
	}
}
