package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"trivia-live/internal/app"
	"trivia-live/internal/auth"
	"trivia-live/internal/domain"
)

const sendBufferSize = 64

// client adapts one websocket connection to app.ClientConn. A dedicated
// writer goroutine drains the send channel; Send never blocks and drops when
// the buffer is full rather than stalling the engine.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *client {
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
	go c.writePump()
	return c
}

func (c *client) Send(event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping event", "type", event.Type)
	}
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return c.conn.Close()
}

func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// WSHandler upgrades HTTP requests to websockets and routes the command set
// into the game engine.
type WSHandler struct {
	service  *app.GameService
	verifier *auth.Verifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, verifier *auth.Verifier, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// connState tracks what this connection is bound to after a successful
// create/join/reconnect, for command authorization and disconnect cleanup.
type connState struct {
	identity  auth.Identity
	sessionID string
	playerID  string
}

// ServeWS upgrades the request and runs the read loop. A connection starts
// as whatever its token proves (host, player, or anonymous) and may upgrade
// by joining.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := h.verifier.Verify(r.URL.Query().Get("token"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("ws upgrade failed", "error", err)
		return
	}

	c := newClient(conn, h.logger)
	state := &connState{identity: identity}

	defer func() {
		if state.playerID != "" && state.sessionID != "" {
			h.service.Disconnect(state.sessionID, state.playerID)
		}
		_ = c.Close()
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(r, c, state, inbound)
	}
}

// dispatch runs one command, converting domain errors into error events and
// catching panics so an internal fault never kills the session.
func (h *WSHandler) dispatch(r *http.Request, c *client, state *connState, msg inboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("command handler panicked", "type", msg.Type, "panic", rec)
			h.sendError(c, state.sessionID, domain.CodeInternal, "internal error")
		}
	}()

	if err := h.handle(r, c, state, msg); err != nil {
		h.sendError(c, state.sessionID, domain.ErrorCode(err), err.Error())
	}
}

func (h *WSHandler) handle(r *http.Request, c *client, state *connState, msg inboundMessage) error {
	switch msg.Type {
	case cmdCreateSession:
		return h.handleCreate(r, c, state, msg.Payload)
	case cmdJoin:
		return h.handleJoin(r, c, state, msg.Payload)
	case cmdReconnect:
		return h.handleReconnect(r, c, state, msg.Payload)
	case cmdAnswer:
		return h.handleAnswer(c, state, msg.Payload)
	case cmdStart:
		return h.hostCommand(state, h.service.Start)
	case cmdAdvance:
		return h.hostCommand(state, h.service.AdvanceQuestion)
	case cmdShowAnswers:
		return h.hostCommand(state, h.service.ShowAnswers)
	case cmdShowResult:
		return h.hostCommand(state, h.service.ShowResult)
	case cmdShowLeaderboard:
		return h.hostCommand(state, h.service.ShowLeaderboard)
	case cmdEndSession:
		return h.hostCommand(state, h.service.End)
	case cmdKickPlayer:
		return h.handleKick(state, msg.Payload)
	default:
		return domain.ErrInvalidSubmission
	}
}

func (h *WSHandler) handleCreate(r *http.Request, c *client, state *connState, raw json.RawMessage) error {
	if state.identity.Role != auth.RoleHost {
		return domain.ErrNotHost
	}
	var payload createSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.QuizID == "" {
		return domain.ErrInvalidSubmission
	}

	g, err := h.service.CreateSession(r.Context(), state.identity.ID, payload.QuizID)
	if err != nil {
		return err
	}
	if _, err := h.service.AttachHost(g.ID(), state.identity.ID, c); err != nil {
		return err
	}
	state.sessionID = g.ID()

	return c.Send(domain.NewEvent(domain.EventSessionCreated, g.ID(), &sessionCreatedPayload{
		SessionID: g.ID(),
		PIN:       g.PIN(),
		QuizID:    g.Snapshot().QuizID,
	}))
}

func (h *WSHandler) handleJoin(r *http.Request, c *client, state *connState, raw json.RawMessage) error {
	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.PIN == "" {
		return domain.ErrInvalidSubmission
	}

	player, g, err := h.service.Join(r.Context(), payload.PIN, payload.Nickname)
	if err != nil {
		return err
	}
	if _, err := h.service.AttachPlayer(g.ID(), player.ID, c); err != nil {
		return err
	}

	token, err := h.verifier.Issue(auth.RolePlayer, player.ID, g.ID())
	if err != nil {
		return err
	}

	state.identity = auth.Identity{Role: auth.RolePlayer, ID: player.ID, SessionID: g.ID()}
	state.sessionID = g.ID()
	state.playerID = player.ID

	return c.Send(domain.NewEvent(domain.EventFullState, g.ID(), &joinedPayload{
		SessionID: g.ID(),
		PlayerID:  player.ID,
		Nickname:  player.Nickname,
		Token:     token,
	}))
}

func (h *WSHandler) handleReconnect(r *http.Request, c *client, state *connState, raw json.RawMessage) error {
	var payload reconnectPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == "" {
		return domain.ErrInvalidSubmission
	}

	switch state.identity.Role {
	case auth.RoleHost:
		g, err := h.service.ReconnectHost(r.Context(), payload.SessionID, state.identity.ID, c)
		if err != nil {
			return err
		}
		state.sessionID = g.ID()
		return nil
	case auth.RolePlayer:
		playerID := state.identity.ID
		if payload.PlayerID != "" && payload.PlayerID != playerID {
			return domain.ErrNotSessionPlayer
		}
		g, err := h.service.ReconnectPlayer(r.Context(), payload.SessionID, playerID, c)
		if err != nil {
			return err
		}
		state.sessionID = g.ID()
		state.playerID = playerID
		return nil
	default:
		return domain.ErrNotSessionPlayer
	}
}

func (h *WSHandler) handleAnswer(c *client, state *connState, raw json.RawMessage) error {
	if state.playerID == "" || state.sessionID == "" {
		return domain.ErrNotSessionPlayer
	}
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.ErrInvalidSubmission
	}

	_, err := h.service.SubmitAnswer(state.sessionID, state.playerID, domain.Submission{
		OptionID:  payload.OptionID,
		OptionIDs: payload.OptionIDs,
		Ordering:  payload.Ordering,
		Value:     payload.Value,
	})
	return err
}

func (h *WSHandler) handleKick(state *connState, raw json.RawMessage) error {
	if state.identity.Role != auth.RoleHost || state.sessionID == "" {
		return domain.ErrNotHost
	}
	var payload kickPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.PlayerID == "" {
		return domain.ErrInvalidSubmission
	}
	return h.service.Kick(state.sessionID, state.identity.ID, payload.PlayerID)
}

func (h *WSHandler) hostCommand(state *connState, fn func(sessionID, hostID string) error) error {
	if state.identity.Role != auth.RoleHost || state.sessionID == "" {
		return domain.ErrNotHost
	}
	return fn(state.sessionID, state.identity.ID)
}

func (h *WSHandler) sendError(c *client, sessionID, code, message string) {
	_ = c.Send(domain.NewEvent(domain.EventError, sessionID, &domain.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
