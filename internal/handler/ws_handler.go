package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/model"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// MatchViewer checks that a player may watch a match.
type MatchViewer interface {
	GetMatch(ctx context.Context, matchID, userID string) (*model.Match, error)
}

// WSHandler upgrades clients to WebSocket and routes their subscriptions.
type WSHandler struct {
	hub     *Hub
	jwtMgr  *auth.JWTManager
	matches MatchViewer
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, matches MatchViewer) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, matches: matches}
}

// ServeWS handles GET /api/v1/ws. The access token comes in the ?token=
// query parameter since browsers cannot set headers on the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "missing token parameter")
		return
	}
	claims, err := h.jwtMgr.ValidateToken(tokenStr, auth.AccessToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		playerID: claims.PlayerID,
		send:     make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	welcome, _ := json.Marshal(WSEvent{Type: EventConnected, Data: map[string]string{"player_id": claims.PlayerID}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("playerId", claims.PlayerID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// handleClientMessage applies one subscribe or unsubscribe request. Matches
// the player may not view are ignored.
func (h *WSHandler) handleClientMessage(ctx context.Context, c *WSConn, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.MatchID == "" {
		return
	}
	switch msg.Action {
	case "subscribe":
		if _, err := h.matches.GetMatch(ctx, msg.MatchID, c.playerID); err != nil {
			log.Debug().Err(err).Str("playerId", c.playerID).Str("matchId", msg.MatchID).Msg("Subscription refused")
			return
		}
		h.hub.Subscribe(c, msg.MatchID)
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.MatchID)
	}
}

// readPump reads client messages until the connection drops.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("playerId", c.playerID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("playerId", c.playerID).Msg("WebSocket unexpected close")
			}
			return
		}
		h.handleClientMessage(context.Background(), c, message)
	}
}

// writePump sends queued events and keepalive pings.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
