package protocol

import "encoding/json"

// Tool values carried by Point.
const (
	ToolPen    = "pen"
	ToolEraser = "eraser"
)

// Envelope wraps every frame on the wire: a named event plus its payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it under the given event name.
func NewEnvelope(event string, payload any) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Payload: raw}, nil
}

// Participant is one connected user as the relay advertises it.
type Participant struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// Point is a single sample of a freehand gesture. Color, size and tool
// travel with every point so remote clients render the stroke with the
// author's style, not their own current selection.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
	Tool  string  `json:"tool"`
}

// StrokeColor resolves the color a point paints with. Eraser points
// paint in the canvas background color; the stroke stays in the log.
func (p Point) StrokeColor(background string) string {
	if p.Tool == ToolEraser {
		return background
	}
	return p.Color
}

// Stroke is one continuous gesture: an ordered list of points. The
// first point anchors the path, every later point draws a segment from
// its predecessor.
type Stroke struct {
	Points []Point `json:"points"`
}

// Payloads, one struct per event in the wire table.

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type JoinedPayload struct {
	Clients  []Participant `json:"clients"`
	Username string        `json:"username"`
	SocketID string        `json:"socketId"`
}

type DisconnectedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type CodeChangePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type SyncCodePayload struct {
	Code     string `json:"code"`
	SocketID string `json:"socketId"`
}

type WhiteboardPointPayload struct {
	RoomID string `json:"roomId"`
	Point  Point  `json:"point"`
}

// WhiteboardRoomPayload covers end and clear, which carry the room only.
type WhiteboardRoomPayload struct {
	RoomID string `json:"roomId"`
}

// WhiteboardRequestSyncPayload is sent with only the room set; the
// relay stamps SocketID with the requester's id before forwarding so
// responders can address their reply.
type WhiteboardRequestSyncPayload struct {
	RoomID   string `json:"roomId"`
	SocketID string `json:"socketId,omitempty"`
}

type WhiteboardSyncPayload struct {
	WhiteboardData []Stroke `json:"whiteboardData"`
	SocketID       string   `json:"socketId,omitempty"`
}
