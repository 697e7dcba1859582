package app

import "trivia-live/internal/domain"

// ClientConn is one attached connection. Send must not block: transports are
// expected to buffer and drop rather than stall the engine.
type ClientConn interface {
	Send(event *domain.Event) error
	Close() error
}

// attachHost registers the host connection, replacing any previous one.
func (g *GameSession) attachHost(conn ClientConn) {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()
	g.hostConn = conn
}

// attachPlayer registers a player's private connection.
func (g *GameSession) attachPlayer(playerID string, conn ClientConn) {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()
	g.playerConns[playerID] = conn
}

// detachPlayer removes a player's connection without closing it.
func (g *GameSession) detachPlayer(playerID string) {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()
	delete(g.playerConns, playerID)
}

// SendHost delivers an event to the host channel.
func (g *GameSession) SendHost(event *domain.Event) {
	g.clientsMu.RLock()
	conn := g.hostConn
	g.clientsMu.RUnlock()
	if conn != nil {
		_ = conn.Send(event)
	}
}

// SendPlayers delivers an event to every attached player connection.
func (g *GameSession) SendPlayers(event *domain.Event) {
	g.clientsMu.RLock()
	defer g.clientsMu.RUnlock()
	for _, conn := range g.playerConns {
		_ = conn.Send(event)
	}
}

// SendPlayer delivers an event to one player's private channel.
func (g *GameSession) SendPlayer(playerID string, event *domain.Event) {
	g.clientsMu.RLock()
	conn, ok := g.playerConns[playerID]
	g.clientsMu.RUnlock()
	if ok {
		_ = conn.Send(event)
	}
}

// SendAll delivers an event to the host and every player.
func (g *GameSession) SendAll(event *domain.Event) {
	g.SendHost(event)
	g.SendPlayers(event)
}

// closeConns closes every attached connection. Used on eviction.
func (g *GameSession) closeConns() {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()
	if g.hostConn != nil {
		_ = g.hostConn.Close()
		g.hostConn = nil
	}
	for id, conn := range g.playerConns {
		_ = conn.Close()
		delete(g.playerConns, id)
	}
}
