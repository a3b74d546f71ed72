package client

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

// Session lifecycle states.
type State int32

const (
	StateDisconnected State = iota
	StateJoining
	StateJoined
	StateLeaving
)

func (s State) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	default:
		return "disconnected"
	}
}

var ErrAlreadyJoined = errors.New("session already joined a room")

// Session owns the join/leave lifecycle of one participant in one
// room and the cached membership list. A transport error during
// Joining or Joined is terminal for the session: the error callback
// fires and no rejoin is attempted.
//
// Set the callback fields before Join; they are invoked from the
// channel's dispatch goroutine.
type Session struct {
	// PeerJoined fires when a different participant enters the room.
	PeerJoined func(p protocol.Participant)

	// PeerLeft fires when a participant leaves or drops.
	PeerLeft func(p protocol.Participant)

	// MembershipChanged fires with the full list after every change.
	MembershipChanged func(participants []protocol.Participant)

	// Joined fires once, when the session's own join is confirmed.
	// Components that need a catch-up round (the whiteboard engine's
	// request-sync) hang off this.
	Joined func()

	// TerminalError fires on a transport failure; the session is dead
	// afterwards and the caller should navigate out of the room.
	TerminalError func(err error)

	ch  EventChannel
	doc *DocSync

	mu           sync.Mutex
	state        State
	roomID       string
	username     string
	socketID     string
	participants []protocol.Participant
}

// NewSession builds a session over ch. doc may be nil when the caller
// has no document to share; the join handshake then skips the
// document push.
func NewSession(ch EventChannel, doc *DocSync) *Session {
	return &Session{ch: ch, doc: doc}
}

// Join requests membership in roomID under displayName. The transition
// to Joined happens when the first joined event for this session
// arrives.
func (s *Session) Join(roomID, displayName string) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyJoined
	}
	s.state = StateJoining
	s.roomID = roomID
	s.username = displayName
	s.mu.Unlock()

	s.ch.On(protocol.EventJoined, s.handleJoined)
	s.ch.On(protocol.EventDisconnected, s.handleDisconnected)
	s.ch.OnError(s.handleChannelError)

	if s.doc != nil {
		s.doc.Bind(roomID)
	}

	return s.ch.Emit(protocol.EventJoin, protocol.JoinPayload{
		RoomID:   roomID,
		Username: displayName,
	})
}

// Leave disconnects the channel. Always safe to call again; a session
// that is already disconnected stays disconnected.
func (s *Session) Leave() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateLeaving
	s.mu.Unlock()

	s.ch.Close()

	s.mu.Lock()
	s.state = StateDisconnected
	s.participants = nil
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SocketID returns the connection id the relay assigned, empty until
// the own join is confirmed.
func (s *Session) SocketID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socketID
}

// Participants returns a copy of the cached membership list.
func (s *Session) Participants() []protocol.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

func (s *Session) handleJoined(raw json.RawMessage) {
	var p protocol.JoinedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	s.mu.Lock()
	added := diffParticipants(s.participants, p.Clients)
	s.participants = p.Clients
	ownFirstJoin := s.state == StateJoining && s.socketID == "" && p.Username == s.username
	if ownFirstJoin {
		s.socketID = p.SocketID
		s.state = StateJoined
	}
	selfID := s.socketID
	selfName := s.username
	snapshot := make([]protocol.Participant, len(p.Clients))
	copy(snapshot, p.Clients)
	s.mu.Unlock()

	if s.MembershipChanged != nil {
		s.MembershipChanged(snapshot)
	}

	if ownFirstJoin {
		if s.Joined != nil {
			s.Joined()
		}
		return
	}

	// Step 1: the delta says whether this event announces a genuinely
	// new member. Step 2: a new member gets the current document
	// pushed, addressed to its connection id only.
	if p.SocketID != selfID {
		if p.Username != selfName && s.PeerJoined != nil {
			s.PeerJoined(protocol.Participant{SocketID: p.SocketID, Username: p.Username})
		}
		if containsParticipant(added, p.SocketID) && s.doc != nil {
			s.doc.PushTo(p.SocketID)
		}
	}
}

func (s *Session) handleDisconnected(raw json.RawMessage) {
	var p protocol.DisconnectedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	s.mu.Lock()
	kept := s.participants[:0]
	for _, member := range s.participants {
		if member.SocketID != p.SocketID {
			kept = append(kept, member)
		}
	}
	s.participants = kept
	snapshot := make([]protocol.Participant, len(kept))
	copy(snapshot, kept)
	s.mu.Unlock()

	if s.PeerLeft != nil {
		s.PeerLeft(protocol.Participant{SocketID: p.SocketID, Username: p.Username})
	}
	if s.MembershipChanged != nil {
		s.MembershipChanged(snapshot)
	}
}

func (s *Session) handleChannelError(err error) {
	s.mu.Lock()
	terminal := s.state == StateJoining || s.state == StateJoined
	if terminal {
		s.state = StateDisconnected
		s.participants = nil
	}
	s.mu.Unlock()

	if terminal && s.TerminalError != nil {
		s.TerminalError(err)
	}
}

// diffParticipants returns the members present in next but not in prev,
// keyed by connection id.
func diffParticipants(prev, next []protocol.Participant) []protocol.Participant {
	known := make(map[string]bool, len(prev))
	for _, p := range prev {
		known[p.SocketID] = true
	}
	var added []protocol.Participant
	for _, p := range next {
		if !known[p.SocketID] {
			added = append(added, p)
		}
	}
	return added
}

func containsParticipant(list []protocol.Participant, socketID string) bool {
	for _, p := range list {
		if p.SocketID == socketID {
			return true
		}
	}
	return false
}
