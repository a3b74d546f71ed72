package protocol

// Event names exchanged over the room channel. Shared by the relay and
// every client; renaming one is a wire break.
const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventDisconnected = "disconnected"
	EventCodeChange   = "code-change"
	EventSyncCode     = "sync-code"
	EventLeave        = "leave"

	EventWhiteboardBegin       = "whiteboard-begin"
	EventWhiteboardDraw        = "whiteboard-draw"
	EventWhiteboardEnd         = "whiteboard-end"
	EventWhiteboardClear       = "whiteboard-clear"
	EventWhiteboardSync        = "whiteboard-sync"
	EventWhiteboardRequestSync = "whiteboard-request-sync"
)
