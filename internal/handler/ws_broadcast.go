package handler

// BroadcastMatchEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastMatchEvent(matchID, eventType string, data any) {
	h.BroadcastToMatch(matchID, WSEvent{Type: eventType, MatchID: matchID, Data: data})
}

// BroadcastUserEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastUserEvent(playerID, eventType string, data any) {
	h.BroadcastToPlayer(playerID, WSEvent{Type: eventType, Data: data})
}
