package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/service"
)

func newTestConn(playerID string) *WSConn {
	return &WSConn{playerID: playerID, send: make(chan []byte, 256)}
}

// received drains c without blocking.
func received(c *WSConn) []WSEvent {
	var out []WSEvent
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			var ev WSEvent
			json.Unmarshal(msg, &ev)
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	c := newTestConn("alice")
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Subscribe(c, "match-1")
	if hub.MatchSubscriberCount("match-1") != 1 {
		t.Errorf("expected 1 subscriber, got %d", hub.MatchSubscriberCount("match-1"))
	}
	hub.Unsubscribe(c, "match-1")
	if hub.MatchSubscriberCount("match-1") != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.MatchSubscriberCount("match-1"))
	}
}

func TestHubBroadcastMatchEvent(t *testing.T) {
	hub := NewHub()
	alice, bob, carol := newTestConn("alice"), newTestConn("bob"), newTestConn("carol")
	for _, c := range []*WSConn{alice, bob, carol} {
		hub.Register(c)
		defer hub.Unregister(c)
	}
	hub.Subscribe(alice, "match-1")
	hub.Subscribe(bob, "match-1")

	hub.BroadcastMatchEvent("match-1", EventTurnResolved, map[string]int{"turn": 1})

	for _, c := range []*WSConn{alice, bob} {
		got := received(c)
		if len(got) != 1 || got[0].Type != EventTurnResolved || got[0].MatchID != "match-1" {
			t.Errorf("%s: unexpected events %+v", c.playerID, got)
		}
	}
	if got := received(carol); len(got) != 0 {
		t.Errorf("carol is not subscribed, got %+v", got)
	}
}

func TestHubBroadcastUserEvent(t *testing.T) {
	hub := NewHub()
	phone, laptop, other := newTestConn("alice"), newTestConn("alice"), newTestConn("bob")
	for _, c := range []*WSConn{phone, laptop, other} {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	hub.BroadcastUserEvent("alice", EventNotification, map[string]string{"text": "Test has started"})

	for _, c := range []*WSConn{phone, laptop} {
		if got := received(c); len(got) != 1 || got[0].Type != EventNotification || got[0].MatchID != "" {
			t.Errorf("unexpected events %+v", got)
		}
	}
	if got := received(other); len(got) != 0 {
		t.Errorf("bob should not get alice's notification, got %+v", got)
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := &WSConn{playerID: "alice", send: make(chan []byte, 1)}
	hub.Register(c)
	defer hub.Unregister(c)
	hub.Subscribe(c, "match-1")

	hub.BroadcastMatchEvent("match-1", EventPlayerReady, nil)
	hub.BroadcastMatchEvent("match-1", EventPlayerReady, nil)
	if got := received(c); len(got) != 1 {
		t.Errorf("expected the second event to be dropped, got %d", len(got))
	}
}

func TestHubUnregisterCleansUp(t *testing.T) {
	hub := NewHub()
	c := newTestConn("alice")
	hub.Register(c)
	hub.Subscribe(c, "match-1")
	hub.Subscribe(c, "match-2")

	hub.Unregister(c)
	hub.Unregister(c) // second call is a no-op

	if hub.MatchSubscriberCount("match-1")+hub.MatchSubscriberCount("match-2") != 0 {
		t.Error("subscriptions should be gone")
	}
	if _, ok := <-c.send; ok {
		t.Error("send buffer should be closed")
	}
	hub.Subscribe(c, "match-1")
	if hub.MatchSubscriberCount("match-1") != 0 {
		t.Error("an unregistered connection cannot subscribe")
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestConn("player")
			hub.Register(c)
			hub.Subscribe(c, "match-1")
			hub.BroadcastMatchEvent("match-1", EventPlayerReady, nil)
			hub.Unsubscribe(c, "match-1")
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

type fakeViewer map[string][]string // matchID -> players allowed

func (f fakeViewer) GetMatch(_ context.Context, matchID, userID string) (*model.Match, error) {
	for _, p := range f[matchID] {
		if p == userID {
			return &model.Match{ID: matchID}, nil
		}
	}
	return nil, service.ErrMatchNotFound
}

func TestHandleClientMessage(t *testing.T) {
	hub := NewHub()
	h := NewWSHandler(hub, nil, fakeViewer{"match-1": {"alice"}})
	c := newTestConn("alice")
	hub.Register(c)
	defer hub.Unregister(c)
	ctx := context.Background()

	h.handleClientMessage(ctx, c, []byte(`{"action":"subscribe","match_id":"match-1"}`))
	h.handleClientMessage(ctx, c, []byte(`{"action":"subscribe","match_id":"match-2"}`))
	h.handleClientMessage(ctx, c, []byte(`garbage`))

	if hub.MatchSubscriberCount("match-1") != 1 {
		t.Error("alice should be subscribed to match-1")
	}
	if hub.MatchSubscriberCount("match-2") != 0 {
		t.Error("a hidden match must not be subscribable")
	}

	h.handleClientMessage(ctx, c, []byte(`{"action":"unsubscribe","match_id":"match-1"}`))
	if hub.MatchSubscriberCount("match-1") != 0 {
		t.Error("unsubscribe should remove the subscription")
	}
}
