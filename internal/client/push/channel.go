// Package push maintains the persistent duplex channel to the backend: a
// websocket connection that reconnects automatically, delivers
// server-originated events to subscribers, and buffers client emissions made
// while disconnected so they flush in submission order after reconnect.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/logging"
)

// Options tunes the reconnect backoff.
type Options struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

func (o *Options) withDefaults() Options {
	out := Options{MinDelay: time.Second, MaxDelay: 30 * time.Second}
	if o == nil {
		return out
	}
	if o.MinDelay > 0 {
		out.MinDelay = o.MinDelay
	}
	if o.MaxDelay > 0 {
		out.MaxDelay = o.MaxDelay
	}
	return out
}

// Channel is the process-wide push connection. Construct once at application
// start, Run in a background goroutine, Close on shutdown.
type Channel struct {
	wsURL    string
	provider auth.Provider
	dialer   *websocket.Dialer
	logger   logging.Logger
	opts     Options

	mu            sync.Mutex
	conn          *websocket.Conn
	connected     bool
	pending       [][]byte
	handlers      map[string]map[int]func(Envelope)
	stateHandlers map[int]func(State)
	nextID        int
}

// NewChannel derives the websocket URL from the backend base URL
// (http -> ws, https -> wss, path /ws).
func NewChannel(backendBaseURL string, provider auth.Provider, logger logging.Logger, opts *Options) *Channel {
	wsURL := strings.TrimRight(backendBaseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return &Channel{
		wsURL:         wsURL + "/ws",
		provider:      provider,
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:        logger,
		opts:          opts.withDefaults(),
		handlers:      make(map[string]map[int]func(Envelope)),
		stateHandlers: make(map[int]func(State)),
	}
}

// Subscribe registers a handler for one event name and returns an id for
// Unsubscribe. Handlers run on the reader goroutine and must not block.
func (c *Channel) Subscribe(event string, h func(Envelope)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]func(Envelope))
	}
	c.handlers[event][id] = h
	return id
}

// Unsubscribe removes a previously registered event handler.
func (c *Channel) Unsubscribe(event string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers[event], id)
}

// OnState registers a connection-state observer.
func (c *Channel) OnState(h func(State)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.stateHandlers[id] = h
	return id
}

// OffState removes a state observer.
func (c *Channel) OffState(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stateHandlers, id)
}

// Emit sends a client-originated event. While disconnected the frame is
// appended to an ordered buffer and flushed FIFO on the next connect, so the
// caller never has to care about the connection state.
func (c *Channel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		c.pending = append(c.pending, frame)
		return nil
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		// Connection is going away; the read loop will notice and
		// reconnect. Keep the frame so it is not lost.
		c.pending = append(c.pending, frame)
		c.connected = false
		return nil
	}
	return nil
}

// Run connects and keeps the channel alive until ctx is cancelled. Each
// successful connect resets the backoff.
func (c *Channel) Run(ctx context.Context) {
	for {
		conn, err := c.connectWithBackoff(ctx)
		if err != nil {
			// Only context cancellation escapes the backoff loop.
			return
		}

		c.attach(ctx, conn)
		c.readLoop(ctx, conn)
		c.detach(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Close tears the current connection down. Run's read loop observes the
// closed connection and exits; callers cancel Run's context alongside.
func (c *Channel) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (c *Channel) connectWithBackoff(ctx context.Context) (*websocket.Conn, error) {
	backoff := retry.WithCappedDuration(c.opts.MaxDelay, retry.NewExponential(c.opts.MinDelay))

	var conn *websocket.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		cred, err := c.provider.Token(ctx)
		if err != nil {
			c.logger.Warn(ctx, "push dial: token acquisition failed", "error", err)
			return retry.RetryableError(err)
		}

		header := http.Header{"Authorization": {"Bearer " + cred.Value}}
		dialed, resp, err := c.dialer.DialContext(ctx, c.wsURL, header)
		if err != nil {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			c.logger.Warn(ctx, "push dial failed", "url", c.wsURL, "status", status, "error", err)
			c.notify(StateError)
			return retry.RetryableError(err)
		}
		conn = dialed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// attach publishes the new connection and flushes the offline buffer in
// submission order before any new emission can interleave.
func (c *Channel) attach(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	pending := c.pending
	c.pending = nil

	flushed := 0
	for _, frame := range pending {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			// Keep everything not yet written, still in order.
			c.pending = pending[flushed:]
			c.connected = false
			break
		}
		flushed++
	}
	c.mu.Unlock()

	c.logger.Info(ctx, "push channel connected", "url", c.wsURL, "flushed", flushed)
	c.notify(StateConnected)
}

func (c *Channel) detach(ctx context.Context) {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.logger.Warn(ctx, "push channel disconnected")
	c.notify(StateDisconnected)
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn(ctx, "push read error", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn(ctx, "dropping malformed push frame", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Channel) dispatch(env Envelope) {
	c.mu.Lock()
	hs := make([]func(Envelope), 0, len(c.handlers[env.Event]))
	for _, h := range c.handlers[env.Event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(env)
	}
}

func (c *Channel) notify(s State) {
	c.mu.Lock()
	hs := make([]func(State), 0, len(c.stateHandlers))
	for _, h := range c.stateHandlers {
		hs = append(hs, h)
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(s)
	}
}
