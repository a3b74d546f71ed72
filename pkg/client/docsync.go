package client

import (
	"encoding/json"
	"sync"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

// Editor is the text widget boundary: the sync layer only ever hands
// it the full replacement text.
type Editor interface {
	SetText(text string)
}

// EditorFunc adapts a function to the Editor interface.
type EditorFunc func(text string)

func (f EditorFunc) SetText(text string) { f(text) }

// DocSync keeps one client's document snapshot in step with the room.
// The model is last-writer-wins over full snapshots: a local edit
// broadcasts the whole text, a remote edit replaces it verbatim. No
// merging, no diffing; concurrent edits resolve per client by arrival
// order and self-heal on the next edit.
type DocSync struct {
	ch     EventChannel
	editor Editor

	mu     sync.Mutex
	roomID string
	text   string
}

// NewDocSync builds the sync layer. editor may be nil for headless
// clients that only track the text.
func NewDocSync(ch EventChannel, editor Editor) *DocSync {
	return &DocSync{ch: ch, editor: editor}
}

// Bind scopes the channel to a room and starts applying remote edits.
// Session.Join calls this during the handshake.
func (d *DocSync) Bind(roomID string) {
	d.mu.Lock()
	d.roomID = roomID
	d.mu.Unlock()

	d.ch.On(protocol.EventCodeChange, d.applyRemote)
	d.ch.On(protocol.EventSyncCode, d.applyCatchUp)
}

// LocalChange records the editor's latest full text and broadcasts it
// to the room. The relay excludes the sender, so the local editor is
// never echoed back its own edit.
func (d *DocSync) LocalChange(text string) error {
	d.mu.Lock()
	d.text = text
	roomID := d.roomID
	d.mu.Unlock()

	return d.ch.Emit(protocol.EventCodeChange, protocol.CodeChangePayload{
		RoomID: roomID,
		Code:   text,
	})
}

// PushTo unicasts the current snapshot to one connection id. This is
// the late-joiner catch-up: the fresh member gets the document without
// having authored anything.
func (d *DocSync) PushTo(socketID string) error {
	d.mu.Lock()
	text := d.text
	d.mu.Unlock()

	return d.ch.Emit(protocol.EventSyncCode, protocol.SyncCodePayload{
		Code:     text,
		SocketID: socketID,
	})
}

// Text returns the cached snapshot.
func (d *DocSync) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *DocSync) applyRemote(raw json.RawMessage) {
	var p protocol.CodeChangePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	d.apply(p.Code)
}

func (d *DocSync) applyCatchUp(raw json.RawMessage) {
	var p protocol.SyncCodePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	d.apply(p.Code)
}

func (d *DocSync) apply(text string) {
	d.mu.Lock()
	d.text = text
	editor := d.editor
	d.mu.Unlock()

	if editor != nil {
		editor.SetText(text)
	}
}
