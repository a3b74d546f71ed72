package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

// ErrClosed is returned by Emit after the channel is closed.
var ErrClosed = errors.New("channel closed")

// EventChannel is the named-event transport the session components are
// built on. Handlers registered with On are invoked one at a time from
// a single dispatch goroutine, so components built on an EventChannel
// need no locking between their handlers. Emit is fire-and-forget.
type EventChannel interface {
	On(event string, handler func(payload json.RawMessage))
	Emit(event string, payload any) error
	OnError(handler func(error))
	Close() error
}

// Channel is the websocket EventChannel. It retries connection
// establishment indefinitely with a fixed per-attempt timeout and
// reports each failed attempt through the error handler while it keeps
// trying; callers decide whether a failure is terminal.
type Channel struct {
	url           string
	dialTimeout   time.Duration
	retryInterval time.Duration

	handlers map[string][]func(json.RawMessage)
	errFns   []func(error)
	hmu      sync.RWMutex

	outgoing chan []byte
	done     chan struct{}
	closed   sync.Once
}

// Option configures a Channel before it starts dialing.
type Option func(*Channel)

// WithDialTimeout sets the per-attempt connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Channel) { c.dialTimeout = d }
}

// WithRetryInterval sets the pause between failed connect attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Channel) { c.retryInterval = d }
}

// Dial starts a channel against a relay websocket URL
// (ws://host:port/ws). It returns immediately; connection establishment
// and reconnection run in the background until Close.
func Dial(url string, opts ...Option) *Channel {
	c := &Channel{
		url:           url,
		dialTimeout:   10 * time.Second,
		retryInterval: 2 * time.Second,
		handlers:      make(map[string][]func(json.RawMessage)),
		outgoing:      make(chan []byte, 256),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.run()
	return c
}

// On registers a handler for a named event. Multiple handlers per
// event are allowed and run in registration order.
func (c *Channel) On(event string, handler func(payload json.RawMessage)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// OnError registers a handler for transport failures: failed connect
// attempts and dropped connections.
func (c *Channel) OnError(handler func(error)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.errFns = append(c.errFns, handler)
}

// Emit sends a named event with a JSON payload. The send is queued and
// flushed by the write loop; there is no delivery acknowledgment.
func (c *Channel) Emit(event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	// Checked alone first: a select with both a closed done and a
	// ready buffered send picks between them at random, and a frame
	// accepted after Close would sit in the queue forever.
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case <-c.done:
		return ErrClosed
	case c.outgoing <- data:
		return nil
	}
}

// Close shuts the channel down. Safe to call any number of times.
func (c *Channel) Close() error {
	c.closed.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Channel) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, err := c.connect()
		if err != nil {
			c.reportError(err)
			select {
			case <-c.done:
				return
			case <-time.After(c.retryInterval):
			}
			continue
		}

		c.serve(conn)
	}
}

func (c *Channel) connect() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return conn, nil
}

// serve runs one connection until it drops. Incoming frames are
// dispatched inline, which is what serializes all handler execution.
func (c *Channel) serve(conn *websocket.Conn) {
	stop := make(chan struct{})
	writeDone := make(chan struct{})
	go c.writeLoop(conn, stop, writeDone)

	defer func() {
		close(stop)
		conn.Close()
		<-writeDone
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.reportError(err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			// Whatever arrives gets tolerated; a bad frame only
			// costs itself.
			continue
		}
		c.dispatch(env.Event, env.Payload)
	}
}

func (c *Channel) writeLoop(conn *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case <-stop:
			return

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Channel) dispatch(event string, payload json.RawMessage) {
	c.hmu.RLock()
	handlers := append([]func(json.RawMessage){}, c.handlers[event]...)
	c.hmu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (c *Channel) reportError(err error) {
	c.hmu.RLock()
	fns := append([]func(error){}, c.errFns...)
	c.hmu.RUnlock()

	for _, fn := range fns {
		fn(err)
	}
}
