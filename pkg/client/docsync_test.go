package client

import (
	"encoding/json"
	"testing"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

func newTestDocSync(t *testing.T) (*DocSync, *fakeChannel, *[]string) {
	t.Helper()
	ch := newFakeChannel()
	var displayed []string
	doc := NewDocSync(ch, EditorFunc(func(text string) {
		displayed = append(displayed, text)
	}))
	doc.Bind("room-1")
	return doc, ch, &displayed
}

func TestLocalChangeBroadcastsFullSnapshot(t *testing.T) {
	doc, ch, displayed := newTestDocSync(t)

	doc.LocalChange("print(1)")

	if doc.Text() != "print(1)" {
		t.Errorf("Expected cached text 'print(1)', got %q", doc.Text())
	}

	events := ch.eventsNamed(protocol.EventCodeChange)
	if len(events) != 1 {
		t.Fatalf("Expected 1 code-change emission, got %d", len(events))
	}
	var p protocol.CodeChangePayload
	json.Unmarshal(events[0], &p)
	if p.RoomID != "room-1" || p.Code != "print(1)" {
		t.Errorf("Unexpected payload: %+v", p)
	}

	// The relay excludes the sender, so the local editor never hears
	// its own edit back.
	if len(*displayed) != 0 {
		t.Errorf("Local change must not reach the local editor, got %v", *displayed)
	}
}

// Client A sends code-change {code:"print(1)"}; client B must display
// print(1) without any further action.
func TestRemoteChangeAppliedVerbatim(t *testing.T) {
	doc, ch, displayed := newTestDocSync(t)

	ch.fire(t, protocol.EventCodeChange, protocol.CodeChangePayload{
		RoomID: "room-1",
		Code:   "print(1)",
	})

	if doc.Text() != "print(1)" {
		t.Errorf("Expected text 'print(1)', got %q", doc.Text())
	}
	if len(*displayed) != 1 || (*displayed)[0] != "print(1)" {
		t.Errorf("Expected editor to display print(1), got %v", *displayed)
	}
}

func TestLastWriterWins(t *testing.T) {
	doc, ch, _ := newTestDocSync(t)

	ch.fire(t, protocol.EventCodeChange, protocol.CodeChangePayload{RoomID: "room-1", Code: "first"})
	ch.fire(t, protocol.EventCodeChange, protocol.CodeChangePayload{RoomID: "room-1", Code: "second"})

	if doc.Text() != "second" {
		t.Errorf("Expected last writer to win, got %q", doc.Text())
	}
}

func TestCatchUpPushApplied(t *testing.T) {
	doc, ch, displayed := newTestDocSync(t)

	ch.fire(t, protocol.EventSyncCode, protocol.SyncCodePayload{
		Code:     "seeded",
		SocketID: "sock-self",
	})

	if doc.Text() != "seeded" {
		t.Errorf("Expected catch-up text applied, got %q", doc.Text())
	}
	if len(*displayed) != 1 {
		t.Errorf("Expected editor updated once, got %v", *displayed)
	}
}

func TestPushToAddressesOneConnection(t *testing.T) {
	doc, ch, _ := newTestDocSync(t)

	doc.LocalChange("shared state")
	doc.PushTo("sock-late")

	events := ch.eventsNamed(protocol.EventSyncCode)
	if len(events) != 1 {
		t.Fatalf("Expected 1 sync-code emission, got %d", len(events))
	}
	var p protocol.SyncCodePayload
	json.Unmarshal(events[0], &p)
	if p.SocketID != "sock-late" || p.Code != "shared state" {
		t.Errorf("Unexpected payload: %+v", p)
	}
}
