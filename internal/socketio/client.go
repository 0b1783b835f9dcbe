package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// State is the connection state of the live channel
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ReplyHandler receives inbound ai-response events
type ReplyHandler func(sessionID, text string)

// Options configures a Client
type Options struct {
	URL              string
	Jar              http.CookieJar
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client is a single long-lived channel connection.
// Reconnection is left to the caller.
type Client struct {
	opts   Options
	dialer *websocket.Dialer

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	sid     string
	handler ReplyHandler
	closing bool

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewClient creates a disconnected client
func NewClient(opts Options) *Client {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			Jar:              opts.Jar,
		},
	}
}

// SetReplyHandler installs the callback for inbound replies.
// It runs on the read loop goroutine.
func (c *Client) SetReplyHandler(h ReplyHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SID returns the Engine.IO session id of the current connection
func (c *Client) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Connect dials the endpoint and completes the Engine.IO and namespace handshakes
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return &domain.ChannelError{Op: "dial", Err: errors.New("already connected")}
	}
	c.state = StateConnecting
	c.closing = false
	c.mu.Unlock()

	conn, open, err := c.handshake(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	if c.closing {
		// Close ran during the handshake and had no conn to shut down
		c.state = StateDisconnected
		c.mu.Unlock()
		conn.Close()
		return &domain.ChannelError{Op: "handshake", Err: errors.New("closed during connect")}
	}
	c.conn = conn
	c.sid = open.SID
	c.state = StateConnected
	// added under the lock so a concurrent Close waits for the read loop
	c.wg.Add(1)
	c.mu.Unlock()

	log.Info().Str("sid", open.SID).Msg("Live channel connected")

	liveness := time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	go c.readLoop(conn, liveness)

	return nil
}

func (c *Client) handshake(ctx context.Context) (*websocket.Conn, OpenPayload, error) {
	var open OpenPayload

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, open, &domain.ChannelError{Op: "dial", Err: err}
	}

	fail := func(err error) (*websocket.Conn, OpenPayload, error) {
		conn.Close()
		return nil, open, &domain.ChannelError{Op: "handshake", Err: err}
	}

	deadline := time.Now().Add(c.opts.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	p, err := readPacket(conn)
	if err != nil {
		return fail(err)
	}
	if p.Engine != EngineOpen {
		return fail(fmt.Errorf("expected open packet, got %q", byte(p.Engine)))
	}
	if err := json.Unmarshal(p.Data, &open); err != nil {
		return fail(fmt.Errorf("invalid open packet: %w", err))
	}

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, EncodeConnect("")); err != nil {
		return fail(err)
	}

	for {
		p, err := readPacket(conn)
		if err != nil {
			return fail(err)
		}

		switch {
		case p.Engine == EnginePing:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, FramePong); err != nil {
				return fail(err)
			}
		case p.Engine == EngineClose:
			return fail(errors.New("closed by server"))
		case p.Engine == EngineMessage && p.Socket == SocketConnect:
			conn.SetReadDeadline(time.Time{})
			return conn, open, nil
		case p.Engine == EngineMessage && p.Socket == SocketConnectError:
			var reason struct {
				Message string `json:"message"`
			}
			json.Unmarshal(p.Data, &reason)
			if reason.Message == "" {
				reason.Message = "connection refused"
			}
			return fail(fmt.Errorf("namespace rejected: %s", reason.Message))
		}
	}
}

// Send emits a user turn. It does not wait for any acknowledgement.
func (c *Client) Send(text, sessionID string) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		return &domain.ChannelError{Op: "send", Err: errors.New("not connected")}
	}

	frame, err := EncodeEvent(EventAIMessage, ChatEvent{Content: text, Chat: sessionID})
	if err != nil {
		return &domain.ChannelError{Op: "send", Err: err}
	}

	if err := c.write(conn, frame); err != nil {
		return &domain.ChannelError{Op: "send", Err: err}
	}
	return nil
}

// Close sends a namespace disconnect, closes the socket and waits for the read loop
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.closing = true
	c.mu.Unlock()

	if conn != nil {
		c.write(conn, FrameDisconnect)
		c.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		conn.Close()
	}

	c.wg.Wait()
	return nil
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) readLoop(conn *websocket.Conn, liveness time.Duration) {
	defer c.wg.Done()
	defer c.teardown(conn)

	for {
		if liveness > 0 {
			conn.SetReadDeadline(time.Now().Add(liveness))
		}

		p, err := readPacket(conn)
		if err != nil {
			if errors.Is(err, ErrMalformedPacket) {
				log.Warn().Err(err).Msg("Dropping malformed channel packet")
				continue
			}
			if !c.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(&domain.ChannelError{Op: "read", Err: err}).Msg("Live channel lost")
			}
			return
		}

		switch p.Engine {
		case EnginePing:
			if err := c.write(conn, FramePong); err != nil {
				log.Warn().Err(&domain.ChannelError{Op: "send", Err: err}).Msg("Failed to answer ping")
				return
			}
		case EngineClose:
			log.Info().Msg("Live channel closed by server")
			return
		case EngineMessage:
			switch p.Socket {
			case SocketDisconnect:
				log.Info().Msg("Live channel disconnected by server")
				return
			case SocketEvent:
				c.dispatch(p)
			}
		}
	}
}

func (c *Client) dispatch(p Packet) {
	if p.Event != EventAIResponse {
		log.Debug().Str("event", p.Event).Msg("Ignoring channel event")
		return
	}

	var payload struct {
		Content domain.FlexString `json:"content"`
		Chat    domain.FlexString `json:"chat"`
	}
	if err := json.Unmarshal(p.Data, &payload); err != nil {
		log.Warn().Err(err).Msg("Invalid ai-response payload")
		return
	}
	if payload.Chat == "" {
		log.Warn().Msg("Dropping ai-response without chat id")
		return
	}

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		handler(payload.Chat.String(), payload.Content.String())
	}
}

func (c *Client) teardown(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.sid = ""
		c.state = StateDisconnected
	}
	c.mu.Unlock()
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func readPacket(conn *websocket.Conn) (Packet, error) {
	kind, data, err := conn.ReadMessage()
	if err != nil {
		return Packet{}, err
	}
	if kind != websocket.TextMessage {
		return Packet{}, fmt.Errorf("%w: binary frame", ErrMalformedPacket)
	}
	return Decode(data)
}
