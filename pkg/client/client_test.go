package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

// fakeChannel is an in-memory EventChannel: Emit records, fire injects
// an incoming event through the registered handlers, synchronously,
// which mirrors the real channel's serialized dispatch.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	errFns   []func(error)
	emitted  []emittedEvent
	closed   int
}

type emittedEvent struct {
	event   string
	payload json.RawMessage
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]func(json.RawMessage))}
}

func (f *fakeChannel) On(event string, handler func(json.RawMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
}

func (f *fakeChannel) OnError(handler func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errFns = append(f.errFns, handler)
}

func (f *fakeChannel) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emittedEvent{event: event, payload: raw})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeChannel) fire(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	f.mu.Lock()
	handlers := append([]func(json.RawMessage){}, f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (f *fakeChannel) fireError(err error) {
	f.mu.Lock()
	fns := append([]func(error){}, f.errFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (f *fakeChannel) eventsNamed(event string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (f *fakeChannel) lastEvent() (string, json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.emitted) == 0 {
		return "", nil
	}
	last := f.emitted[len(f.emitted)-1]
	return last.event, last.payload
}

// recordingCanvas captures draw commands so two replays can be
// compared operation for operation.
type recordingCanvas struct {
	ops []string
}

func (c *recordingCanvas) BeginPath(p protocol.Point) {
	c.ops = append(c.ops, fmt.Sprintf("begin %g,%g %s %g %s", p.X, p.Y, p.Color, p.Size, p.Tool))
}

func (c *recordingCanvas) LineTo(p protocol.Point) {
	c.ops = append(c.ops, fmt.Sprintf("line %g,%g %s %g %s", p.X, p.Y, p.Color, p.Size, p.Tool))
}

func (c *recordingCanvas) ClosePath() { c.ops = append(c.ops, "close") }
func (c *recordingCanvas) Clear()     { c.ops = append(c.ops, "clear") }

func penPoint(x, y float64) protocol.Point {
	return protocol.Point{X: x, Y: y, Color: "#ffffff", Size: 4, Tool: protocol.ToolPen}
}

func equalOps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
