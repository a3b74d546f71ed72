package ws

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

func newTestHub() *Hub {
	hub := NewHub(slog.Default())
	go hub.Run()
	return hub
}

func newTestClient(hub *Hub, socketID string) *Client {
	c := &Client{
		hub:      hub,
		send:     make(chan []byte, 64),
		socketID: socketID,
	}
	hub.register <- c
	return c
}

func sendEvent(t *testing.T, hub *Hub, sender *Client, event string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("Failed to build envelope: %v", err)
	}
	hub.inbound <- &inboundEvent{sender: sender, env: env}
}

func recvEvent(t *testing.T, c *Client) *protocol.Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("Failed to decode frame: %v", err)
		}
		return &env
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for frame")
		return nil
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("Expected no frame, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func joinRoom(t *testing.T, hub *Hub, c *Client, roomID, username string) {
	t.Helper()
	sendEvent(t, hub, c, protocol.EventJoin, protocol.JoinPayload{RoomID: roomID, Username: username})
}

func TestJoinedDeliveredToWholeRoomIncludingJoiner(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	env := recvEvent(t, alice)
	if env.Event != protocol.EventJoined {
		t.Fatalf("Expected joined, got %s", env.Event)
	}

	var first protocol.JoinedPayload
	if err := json.Unmarshal(env.Payload, &first); err != nil {
		t.Fatalf("Failed to decode joined payload: %v", err)
	}
	if first.SocketID != "sock-a" || len(first.Clients) != 1 {
		t.Errorf("Expected own join with 1 client, got %+v", first)
	}

	joinRoom(t, hub, bob, "room-1", "bob")

	for _, c := range []*Client{alice, bob} {
		env := recvEvent(t, c)
		if env.Event != protocol.EventJoined {
			t.Fatalf("Expected joined, got %s", env.Event)
		}
		var p protocol.JoinedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("Failed to decode joined payload: %v", err)
		}
		if p.SocketID != "sock-b" || p.Username != "bob" {
			t.Errorf("Expected bob's join, got %+v", p)
		}
		if len(p.Clients) != 2 {
			t.Errorf("Expected 2 clients in membership, got %d", len(p.Clients))
		}
	}
}

func TestCodeChangeExcludesSender(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-1", "bob")
	recvEvent(t, alice)
	recvEvent(t, bob)

	sendEvent(t, hub, alice, protocol.EventCodeChange, protocol.CodeChangePayload{
		RoomID: "room-1",
		Code:   "print(1)",
	})

	env := recvEvent(t, bob)
	if env.Event != protocol.EventCodeChange {
		t.Fatalf("Expected code-change, got %s", env.Event)
	}
	var p protocol.CodeChangePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if p.Code != "print(1)" {
		t.Errorf("Expected code 'print(1)', got %q", p.Code)
	}

	expectNoEvent(t, alice)
}

func TestSyncCodeUnicast(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")
	carol := newTestClient(hub, "sock-c")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-1", "bob")
	recvEvent(t, alice)
	recvEvent(t, bob)
	joinRoom(t, hub, carol, "room-1", "carol")
	recvEvent(t, alice)
	recvEvent(t, bob)
	recvEvent(t, carol)

	sendEvent(t, hub, alice, protocol.EventSyncCode, protocol.SyncCodePayload{
		Code:     "x = 1",
		SocketID: "sock-b",
	})

	env := recvEvent(t, bob)
	if env.Event != protocol.EventSyncCode {
		t.Fatalf("Expected sync-code, got %s", env.Event)
	}
	expectNoEvent(t, carol)
	expectNoEvent(t, alice)
}

func TestRequestSyncStampedWithRequester(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-1", "bob")
	recvEvent(t, alice)
	recvEvent(t, bob)

	sendEvent(t, hub, bob, protocol.EventWhiteboardRequestSync, protocol.WhiteboardRequestSyncPayload{
		RoomID: "room-1",
	})

	env := recvEvent(t, alice)
	if env.Event != protocol.EventWhiteboardRequestSync {
		t.Fatalf("Expected whiteboard-request-sync, got %s", env.Event)
	}
	var p protocol.WhiteboardRequestSyncPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if p.SocketID != "sock-b" {
		t.Errorf("Expected requester sock-b stamped, got %q", p.SocketID)
	}

	expectNoEvent(t, bob)
}

func TestWhiteboardSyncUnicastToRequester(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-1", "bob")
	recvEvent(t, alice)
	recvEvent(t, bob)

	strokes := []protocol.Stroke{{Points: []protocol.Point{
		{X: 10, Y: 10, Color: "#ffffff", Size: 4, Tool: protocol.ToolPen},
	}}}
	sendEvent(t, hub, alice, protocol.EventWhiteboardSync, protocol.WhiteboardSyncPayload{
		WhiteboardData: strokes,
		SocketID:       "sock-b",
	})

	env := recvEvent(t, bob)
	if env.Event != protocol.EventWhiteboardSync {
		t.Fatalf("Expected whiteboard-sync, got %s", env.Event)
	}
	var p protocol.WhiteboardSyncPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if len(p.WhiteboardData) != 1 || len(p.WhiteboardData[0].Points) != 1 {
		t.Errorf("Expected 1 stroke with 1 point, got %+v", p.WhiteboardData)
	}
	expectNoEvent(t, alice)
}

func TestWhiteboardEventsBroadcastExcludingSender(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-1", "bob")
	recvEvent(t, alice)
	recvEvent(t, bob)

	point := protocol.Point{X: 10, Y: 10, Color: "#ffffff", Size: 4, Tool: protocol.ToolPen}
	sendEvent(t, hub, alice, protocol.EventWhiteboardBegin, protocol.WhiteboardPointPayload{
		RoomID: "room-1", Point: point,
	})
	sendEvent(t, hub, alice, protocol.EventWhiteboardEnd, protocol.WhiteboardRoomPayload{RoomID: "room-1"})

	if env := recvEvent(t, bob); env.Event != protocol.EventWhiteboardBegin {
		t.Fatalf("Expected whiteboard-begin, got %s", env.Event)
	}
	if env := recvEvent(t, bob); env.Event != protocol.EventWhiteboardEnd {
		t.Fatalf("Expected whiteboard-end, got %s", env.Event)
	}
	expectNoEvent(t, alice)
}

func TestDisconnectBroadcast(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-1", "bob")
	recvEvent(t, alice)
	recvEvent(t, bob)

	hub.unregister <- bob

	env := recvEvent(t, alice)
	if env.Event != protocol.EventDisconnected {
		t.Fatalf("Expected disconnected, got %s", env.Event)
	}
	var p protocol.DisconnectedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if p.SocketID != "sock-b" || p.Username != "bob" {
		t.Errorf("Expected bob's departure, got %+v", p)
	}
}

func TestRoomClosedWhenEmpty(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)

	if hub.RoomCount() != 1 {
		t.Fatalf("Expected 1 room, got %d", hub.RoomCount())
	}

	hub.unregister <- alice
	time.Sleep(10 * time.Millisecond)

	if hub.RoomCount() != 0 {
		t.Errorf("Expected 0 rooms after last member left, got %d", hub.RoomCount())
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestStatsAccessors(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "sock-a")
	bob := newTestClient(hub, "sock-b")

	joinRoom(t, hub, alice, "room-1", "alice")
	recvEvent(t, alice)
	joinRoom(t, hub, bob, "room-2", "bob")
	recvEvent(t, bob)

	if hub.RoomCount() != 2 {
		t.Errorf("Expected 2 rooms, got %d", hub.RoomCount())
	}
	if hub.ClientCount() != 2 {
		t.Errorf("Expected 2 clients, got %d", hub.ClientCount())
	}
	active := hub.ActiveRooms()
	if active["room-1"] != 1 || active["room-2"] != 1 {
		t.Errorf("Unexpected active rooms: %v", active)
	}
}
