// Package transport maintains the long-lived WebSocket connection to the
// messaging service. It speaks the service's socket events: outbound
// joinChannel and sendMessage, inbound newMessage broadcasts.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agrilink/agrichat/internal/chat"
)

// ErrNotConnected is returned when join or send is attempted before
// Connect (or after the connection is gone and reconnect is off). The
// wire layer rejects explicitly instead of dropping silently.
var ErrNotConnected = errors.New("transport not connected")

const (
	eventJoinChannel = "joinChannel"
	eventSendMessage = "sendMessage"
	eventNewMessage  = "newMessage"

	handshakeTimeout = 10 * time.Second
	initialBackoff   = time.Second
)

// envelope is the frame format on the socket: an event name plus its
// JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundMessage is the sendMessage payload.
type OutboundMessage struct {
	ChannelID string `json:"chatId"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Content   string `json:"content"`
	HasMedia  bool   `json:"hasMedia"`
	ClientTag string `json:"clientTag,omitempty"`
}

// Handler is invoked once per inbound broadcast, in arrival order. The
// wire layer does not deduplicate; the session layer owns that.
type Handler func(chat.Message)

// Options configures a Client.
type Options struct {
	// Reconnect enables automatic redial with capped exponential backoff
	// after a dropped connection. Off by default: the service's historical
	// behavior is to stay silently dead until a fresh connect, and some
	// deployments want exactly that.
	Reconnect        bool
	ReconnectMaxWait time.Duration
	Logger           *slog.Logger
}

// Client is the bidirectional channel transport. One Client serves the
// whole messaging UI lifetime; sessions come and go on top of it.
type Client struct {
	url  string
	opts Options

	mu      sync.Mutex // guards conn writes and reconnect/teardown
	conn    *websocket.Conn
	joined  map[string]struct{}
	handler Handler

	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
}

// New creates a transport client for the given WebSocket URL.
func New(url string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReconnectMaxWait <= 0 {
		opts.ReconnectMaxWait = 30 * time.Second
	}
	return &Client{
		url:    url,
		opts:   opts,
		joined: make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

// OnMessage registers the inbound broadcast handler. Call before Connect;
// there is exactly one handler, dispatched from a single read loop so
// delivery order matches arrival order.
func (c *Client) OnMessage(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect establishes the connection and starts the read loop. It is
// idempotent: connecting an already-connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if c.connected.Load() {
		return nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return conn, nil
}

// Join asks the service to route the channel's messages to this client.
// Fire-and-forget: no acknowledgement is awaited.
func (c *Client) Join(channelID string) error {
	data, _ := json.Marshal(channelID)
	if err := c.write(envelope{Event: eventJoinChannel, Data: data}); err != nil {
		return err
	}

	c.mu.Lock()
	c.joined[channelID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Send emits an outbound chat event. Fire-and-forget: delivery
// confirmation, if any, arrives later as the sender's own broadcast echo.
// HasMedia is always false; attachments are not part of this client.
func (c *Client) Send(msg chat.Message) error {
	out := OutboundMessage{
		ChannelID: msg.ChannelID,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Content:   msg.Content,
		HasMedia:  false,
		ClientTag: msg.ClientTag,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.write(envelope{Event: eventSendMessage, Data: data})
}

func (c *Client) write(env envelope) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Event, err)
	}
	return nil
}

// Close releases the connection. Safe to call exactly once from every
// teardown path; later joins and sends fail with ErrNotConnected.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.connected.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// readLoop dispatches inbound frames until the connection drops or the
// client closes. On a drop it either hands off to the reconnect loop or
// marks the transport dead.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if c.closed.Load() {
				return
			}
			c.connected.Store(false)
			c.opts.Logger.Warn("transport connection lost", "error", err)
			if c.opts.Reconnect {
				go c.reconnectLoop()
			}
			return
		}

		switch env.Event {
		case eventNewMessage:
			var msg chat.Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				c.opts.Logger.Warn("drop malformed broadcast", "error", err)
				continue
			}
			c.dispatch(msg)
		default:
			// Unknown events are ignored; the service is free to grow.
		}
	}
}

func (c *Client) dispatch(msg chat.Message) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

// reconnectLoop redials with capped exponential backoff until it succeeds
// or the client closes, then rejoins every channel joined so far.
func (c *Client) reconnectLoop() {
	backoff := initialBackoff
	for {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.opts.Logger.Debug("reconnect attempt failed", "error", err, "backoff", backoff)
			backoff *= 2
			if backoff > c.opts.ReconnectMaxWait {
				backoff = c.opts.ReconnectMaxWait
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		rejoin := make([]string, 0, len(c.joined))
		for id := range c.joined {
			rejoin = append(rejoin, id)
		}
		c.mu.Unlock()
		c.connected.Store(true)

		for _, id := range rejoin {
			if err := c.Join(id); err != nil {
				c.opts.Logger.Warn("rejoin after reconnect failed", "channel", id, "error", err)
			}
		}

		c.opts.Logger.Info("transport reconnected", "channels", len(rejoin))
		go c.readLoop(conn)
		return
	}
}
