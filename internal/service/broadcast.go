package service

import "context"

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastMatchEvent(matchID string, eventType string, data any)
	BroadcastUserEvent(userID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any) {}
func (NoopBroadcaster) BroadcastUserEvent(string, string, any)  {}

// Notifier delivers a message to one player. Delivery is fire and forget:
// implementations log failures and never report them to the caller.
type Notifier interface {
	Notify(ctx context.Context, playerID, text, reference string)
}

// NoopNotifier drops every notification.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, string, string) {}
