package client

import (
	"encoding/json"
	"sync"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

// Canvas is the rendering boundary of the stroke engine. BeginPath
// anchors a new path at a point without drawing; LineTo draws a
// segment from the previous point using the new point's color, size
// and tool; ClosePath ends the current path; Clear wipes all pixels.
//
// Eraser points must be painted in the canvas background color (see
// Point.StrokeColor); an erased area is covered, never removed from
// the stroke log, so replay order preserves the visible result.
type Canvas interface {
	BeginPath(p protocol.Point)
	LineTo(p protocol.Point)
	ClosePath()
	Clear()
}

// Whiteboard owns the client's stroke log and keeps it replicated:
// local gestures append and broadcast, remote events replay, and a
// full-state sync replaces the log wholesale. The log is the only
// durable representation of the drawing on a client; the canvas can be
// reproduced from it at any time, which is what Redraw does.
type Whiteboard struct {
	ch     EventChannel
	canvas Canvas

	mu      sync.Mutex
	roomID  string
	strokes []protocol.Stroke
	drawing bool
}

func NewWhiteboard(ch EventChannel, canvas Canvas) *Whiteboard {
	return &Whiteboard{ch: ch, canvas: canvas}
}

// Bind scopes the engine to a room and starts replaying remote events.
func (w *Whiteboard) Bind(roomID string) {
	w.mu.Lock()
	w.roomID = roomID
	w.mu.Unlock()

	w.ch.On(protocol.EventWhiteboardBegin, w.handleRemoteBegin)
	w.ch.On(protocol.EventWhiteboardDraw, w.handleRemoteDraw)
	w.ch.On(protocol.EventWhiteboardEnd, w.handleRemoteEnd)
	w.ch.On(protocol.EventWhiteboardClear, w.handleRemoteClear)
	w.ch.On(protocol.EventWhiteboardSync, w.handleSync)
	w.ch.On(protocol.EventWhiteboardRequestSync, w.handleRequestSync)
}

// Local gestures.

// BeginStroke starts a new stroke at p: appended to the log, rendered
// as a path start, broadcast to the room.
func (w *Whiteboard) BeginStroke(p protocol.Point) error {
	w.mu.Lock()
	w.strokes = append(w.strokes, protocol.Stroke{Points: []protocol.Point{p}})
	w.drawing = true
	roomID := w.roomID
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.BeginPath(p)
	}

	return w.ch.Emit(protocol.EventWhiteboardBegin, protocol.WhiteboardPointPayload{
		RoomID: roomID,
		Point:  p,
	})
}

// ContinueStroke extends the current stroke with p, rendering the
// segment from the previous point.
func (w *Whiteboard) ContinueStroke(p protocol.Point) error {
	w.mu.Lock()
	if !w.drawing {
		w.mu.Unlock()
		return nil
	}
	w.appendPointLocked(p)
	roomID := w.roomID
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.LineTo(p)
	}

	return w.ch.Emit(protocol.EventWhiteboardDraw, protocol.WhiteboardPointPayload{
		RoomID: roomID,
		Point:  p,
	})
}

// EndStroke closes the current gesture.
func (w *Whiteboard) EndStroke() error {
	w.mu.Lock()
	if !w.drawing {
		w.mu.Unlock()
		return nil
	}
	w.drawing = false
	roomID := w.roomID
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.ClosePath()
	}

	return w.ch.Emit(protocol.EventWhiteboardEnd, protocol.WhiteboardRoomPayload{
		RoomID: roomID,
	})
}

// Clear empties the stroke log, wipes the canvas, and tells the room
// to do the same. Clearing an already empty board is a no-op remotely
// and locally.
func (w *Whiteboard) Clear() error {
	w.mu.Lock()
	w.strokes = nil
	w.drawing = false
	roomID := w.roomID
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.Clear()
	}

	return w.ch.Emit(protocol.EventWhiteboardClear, protocol.WhiteboardRoomPayload{
		RoomID: roomID,
	})
}

// RequestSync asks the room for the current stroke log. Any member may
// answer; the last sync payload to arrive wins. There is no timeout:
// a client that never hears back keeps an empty board.
func (w *Whiteboard) RequestSync() error {
	w.mu.Lock()
	roomID := w.roomID
	w.mu.Unlock()

	return w.ch.Emit(protocol.EventWhiteboardRequestSync, protocol.WhiteboardRequestSyncPayload{
		RoomID: roomID,
	})
}

// Strokes returns a deep copy of the stroke log.
func (w *Whiteboard) Strokes() []protocol.Stroke {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyStrokes(w.strokes)
}

// Redraw reproduces the whole canvas from the stroke log: clear, then
// replay every stroke (first point anchors, later points draw
// segments, path closed between strokes). Idempotent, and the only
// way to restore pixels after a sync or a resize.
func (w *Whiteboard) Redraw() {
	w.mu.Lock()
	strokes := copyStrokes(w.strokes)
	w.mu.Unlock()

	if w.canvas == nil {
		return
	}
	w.canvas.Clear()
	for _, stroke := range strokes {
		for i, p := range stroke.Points {
			if i == 0 {
				w.canvas.BeginPath(p)
			} else {
				w.canvas.LineTo(p)
			}
		}
		w.canvas.ClosePath()
	}
}

// Resize re-renders after a viewport change. Rasterized pixels don't
// survive a resize; the log does.
func (w *Whiteboard) Resize() {
	w.Redraw()
}

// Remote events. Payloads are rendered as they arrive, unvalidated:
// the worst a malformed point can do is draw wrong.

func (w *Whiteboard) handleRemoteBegin(raw json.RawMessage) {
	var p protocol.WhiteboardPointPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	w.mu.Lock()
	w.strokes = append(w.strokes, protocol.Stroke{Points: []protocol.Point{p.Point}})
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.BeginPath(p.Point)
	}
}

func (w *Whiteboard) handleRemoteDraw(raw json.RawMessage) {
	var p protocol.WhiteboardPointPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	w.mu.Lock()
	w.appendPointLocked(p.Point)
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.LineTo(p.Point)
	}
}

func (w *Whiteboard) handleRemoteEnd(json.RawMessage) {
	if w.canvas != nil {
		w.canvas.ClosePath()
	}
}

func (w *Whiteboard) handleRemoteClear(json.RawMessage) {
	w.mu.Lock()
	w.strokes = nil
	w.mu.Unlock()

	if w.canvas != nil {
		w.canvas.Clear()
	}
}

// handleSync replaces the whole log with the peer's copy and redraws.
// With several responders the last payload wins; there is no merge.
func (w *Whiteboard) handleSync(raw json.RawMessage) {
	var p protocol.WhiteboardSyncPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	w.mu.Lock()
	w.strokes = copyStrokes(p.WhiteboardData)
	w.mu.Unlock()

	w.Redraw()
}

// handleRequestSync answers a late joiner with the full stroke log,
// addressed to the requester only.
func (w *Whiteboard) handleRequestSync(raw json.RawMessage) {
	var p protocol.WhiteboardRequestSyncPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	w.mu.Lock()
	strokes := copyStrokes(w.strokes)
	w.mu.Unlock()

	w.ch.Emit(protocol.EventWhiteboardSync, protocol.WhiteboardSyncPayload{
		WhiteboardData: strokes,
		SocketID:       p.SocketID,
	})
}

// appendPointLocked extends the last stroke. A draw with no open
// stroke (events can arrive out of order) starts one instead of being
// dropped.
func (w *Whiteboard) appendPointLocked(p protocol.Point) {
	if len(w.strokes) == 0 {
		w.strokes = append(w.strokes, protocol.Stroke{Points: []protocol.Point{p}})
		return
	}
	last := &w.strokes[len(w.strokes)-1]
	last.Points = append(last.Points, p)
}

func copyStrokes(strokes []protocol.Stroke) []protocol.Stroke {
	out := make([]protocol.Stroke, len(strokes))
	for i, s := range strokes {
		points := make([]protocol.Point, len(s.Points))
		copy(points, s.Points)
		out[i] = protocol.Stroke{Points: points}
	}
	return out
}
