package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/apex-chat/internal/api/middleware"
	"github.com/Rrens/apex-chat/internal/api/response"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/service"
	"github.com/Rrens/apex-chat/internal/socketio"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	socketWriteTimeout = 10 * time.Second
	turnQueueSize      = 64
	turnFailedReply    = "Sorry, your message could not be processed. Please try again."
)

// SocketHandler serves the live chat channel over Engine.IO v4 websockets
type SocketHandler struct {
	chatService  *service.ChatService
	auth         *middleware.AuthMiddleware
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pingTimeout  time.Duration

	mu     sync.Mutex
	conns  map[string]*socketConn
	closed bool
	wg     sync.WaitGroup
}

// NewSocketHandler creates a new socket handler
func NewSocketHandler(
	chatService *service.ChatService,
	auth *middleware.AuthMiddleware,
	pingInterval, pingTimeout time.Duration,
	allowedOrigins []string,
) *SocketHandler {
	return &SocketHandler{
		chatService:  chatService,
		auth:         auth,
		pingInterval: pingInterval,
		pingTimeout:  pingTimeout,
		conns:        make(map[string]*socketConn),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// Serve upgrades the request and runs the connection until either side closes it
func (h *SocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" || q.Get("transport") != "websocket" {
		response.BadRequest(w, "only EIO=4 websocket transport is supported")
		return
	}

	// an anonymous connection may open but is refused at namespace connect
	account, _, err := h.auth.Resolve(r)
	if err != nil {
		account = nil
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sc := &socketConn{
		handler: h,
		sid:     uuid.NewString(),
		conn:    conn,
		account: account,
		turns:   make(chan turn, turnQueueSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conns[sc.sid] = sc
	h.wg.Add(1)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, sc.sid)
		h.mu.Unlock()
		h.wg.Done()
	}()

	sc.run()
}

// Shutdown closes every open connection and waits for their handlers
func (h *SocketHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*socketConn, 0, len(h.conns))
	for _, sc := range h.conns {
		conns = append(conns, sc)
	}
	h.mu.Unlock()

	for _, sc := range conns {
		sc.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connections returns the number of open connections
func (h *SocketHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

type turn struct {
	chat    string
	content string
}

type socketConn struct {
	handler *SocketHandler
	sid     string
	conn    *websocket.Conn
	account *domain.Account
	turns   chan turn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (sc *socketConn) run() {
	ctx, cancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	defer func() {
		cancel()
		close(sc.turns)
		workers.Wait()
		sc.conn.Close()
	}()

	h := sc.handler
	open, err := socketio.EncodeOpen(socketio.OpenPayload{
		SID:          sc.sid,
		Upgrades:     []string{},
		PingInterval: int(h.pingInterval / time.Millisecond),
		PingTimeout:  int(h.pingTimeout / time.Millisecond),
		MaxPayload:   1000000,
	})
	if err != nil || sc.write(open) != nil {
		return
	}

	workers.Add(2)
	go func() {
		defer workers.Done()
		sc.pingLoop(ctx)
	}()
	go func() {
		defer workers.Done()
		sc.turnLoop(ctx)
	}()

	connected := false
	for {
		sc.conn.SetReadDeadline(time.Now().Add(h.pingInterval + h.pingTimeout))

		_, frame, err := sc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("sid", sc.sid).Msg("Socket read ended")
			}
			return
		}

		p, err := socketio.Decode(frame)
		if err != nil {
			log.Warn().Err(err).Str("sid", sc.sid).Msg("Dropping malformed packet")
			continue
		}

		switch p.Engine {
		case socketio.EnginePing:
			sc.write(socketio.FramePong)
		case socketio.EngineClose:
			return
		case socketio.EngineMessage:
			switch p.Socket {
			case socketio.SocketConnect:
				if sc.account == nil {
					sc.write(socketio.EncodeConnectError("unauthorized"))
					return
				}
				connected = true
				sc.write(socketio.EncodeConnect(sc.sid))
				log.Info().Str("sid", sc.sid).Str("user_id", sc.account.ID.String()).Msg("Socket connected")
			case socketio.SocketDisconnect:
				return
			case socketio.SocketEvent:
				if connected {
					sc.dispatch(p)
				}
			}
		}
	}
}

func (sc *socketConn) dispatch(p socketio.Packet) {
	if p.Event != socketio.EventAIMessage {
		log.Debug().Str("sid", sc.sid).Str("event", p.Event).Msg("Ignoring socket event")
		return
	}

	var payload struct {
		Content domain.FlexString `json:"content"`
		Chat    domain.FlexString `json:"chat"`
	}
	if err := json.Unmarshal(p.Data, &payload); err != nil {
		log.Warn().Err(err).Str("sid", sc.sid).Msg("Invalid ai-message payload")
		return
	}

	t := turn{chat: payload.Chat.String(), content: payload.Content.String()}
	select {
	case sc.turns <- t:
	default:
		sc.emit(t.chat, service.RateLimitedReply)
	}
}

func (sc *socketConn) turnLoop(ctx context.Context) {
	for t := range sc.turns {
		if ctx.Err() != nil {
			continue
		}
		sc.handleTurn(ctx, t)
	}
}

func (sc *socketConn) handleTurn(ctx context.Context, t turn) {
	logger := log.With().Str("sid", sc.sid).Str("chat_id", t.chat).Logger()

	chatID, err := uuid.Parse(t.chat)
	if err != nil {
		logger.Warn().Msg("ai-message for invalid chat id")
		sc.emit(t.chat, turnFailedReply)
		return
	}

	reply, err := sc.handler.chatService.HandleUserMessage(ctx, sc.account.ID, chatID, t.content)
	switch {
	case err == nil:
		sc.emit(t.chat, reply)
	case errors.Is(err, service.ErrRateLimited):
		sc.emit(t.chat, reply)
	case errors.Is(err, service.ErrEmptyContent):
		logger.Debug().Msg("Ignoring empty ai-message")
	case errors.Is(err, context.Canceled):
	default:
		logger.Error().Err(err).Msg("Failed to handle ai-message")
		sc.emit(t.chat, turnFailedReply)
	}
}

func (sc *socketConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(sc.handler.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sc.write(socketio.FramePing); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (sc *socketConn) emit(chat, content string) {
	frame, err := socketio.EncodeEvent(socketio.EventAIResponse, socketio.ChatEvent{Content: content, Chat: chat})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode ai-response")
		return
	}
	if err := sc.write(frame); err != nil {
		log.Warn().Err(err).Str("sid", sc.sid).Msg("Failed to emit ai-response")
	}
}

func (sc *socketConn) write(frame []byte) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	sc.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	return sc.conn.WriteMessage(websocket.TextMessage, frame)
}

func (sc *socketConn) close() {
	sc.closeOnce.Do(func() {
		sc.write(socketio.FrameClose)
		sc.writeMu.Lock()
		sc.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		sc.writeMu.Unlock()
		sc.conn.Close()
	})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
