package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
)

type mockMatchRepo struct {
	mu      sync.Mutex
	matches map[string]*model.Match
	saves   int
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{matches: make(map[string]*model.Match)}
}

func copyMatch(m *model.Match) *model.Match {
	cp := *m
	cp.Players = slices.Clone(m.Players)
	cp.Winners = slices.Clone(m.Winners)
	return &cp
}

func (r *mockMatchRepo) Create(_ context.Context, name, ownerID, mapID string, capacity int) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("match-%d", len(r.matches)+1)
	now := time.Now()
	m := &model.Match{
		ID:        id,
		Name:      name,
		OwnerID:   ownerID,
		MapID:     mapID,
		Capacity:  capacity,
		Status:    "setup",
		CreatedAt: now,
		Players:   []model.MatchPlayer{{MatchID: id, UserID: ownerID, Seat: 0, JoinedAt: now}},
	}
	r.matches[id] = m
	return copyMatch(m), nil
}

func (r *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, nil
	}
	return copyMatch(m), nil
}

func (r *mockMatchRepo) ListVisible(_ context.Context, userID string) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Match
	for _, m := range r.matches {
		seated := slices.ContainsFunc(m.Players, func(p model.MatchPlayer) bool { return p.UserID == userID })
		if m.Public || seated {
			out = append(out, *copyMatch(m))
		}
	}
	return out, nil
}

func (r *mockMatchRepo) ListByStatus(_ context.Context, statuses ...string) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Match
	for _, m := range r.matches {
		if slices.Contains(statuses, m.Status) {
			out = append(out, *copyMatch(m))
		}
	}
	return out, nil
}

func (r *mockMatchRepo) Save(_ context.Context, m *model.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[m.ID]; !ok {
		return fmt.Errorf("match %s not found", m.ID)
	}
	r.matches[m.ID] = copyMatch(m)
	r.saves++
	return nil
}

// setStatus forces a status, bypassing the rules.
func (r *mockMatchRepo) setStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[id].Status = status
}

type mockTurnRepo struct {
	mu         sync.Mutex
	turns      map[string][]*model.Turn // by match, ascending number
	commands   map[string][]model.Command
	battles    map[string][]model.Battle
	resolveErr error
}

func newMockTurnRepo() *mockTurnRepo {
	return &mockTurnRepo{
		turns:    make(map[string][]*model.Turn),
		commands: make(map[string][]model.Command),
		battles:  make(map[string][]model.Battle),
	}
}

func (r *mockTurnRepo) createLocked(matchID string, number int, state json.RawMessage) *model.Turn {
	t := &model.Turn{
		ID:          fmt.Sprintf("%s-turn-%d", matchID, number),
		MatchID:     matchID,
		Number:      number,
		StateBefore: state,
		CreatedAt:   time.Now(),
	}
	r.turns[matchID] = append(r.turns[matchID], t)
	return t
}

func (r *mockTurnRepo) CreateTurn(_ context.Context, matchID string, number int, state json.RawMessage) (*model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turns[matchID] {
		if t.Number == number {
			return nil, fmt.Errorf("turn %d already exists", number)
		}
	}
	cp := *r.createLocked(matchID, number, state)
	return &cp, nil
}

func (r *mockTurnRepo) CurrentTurn(_ context.Context, matchID string) (*model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.turns[matchID]
	if len(ts) == 0 {
		return nil, nil
	}
	cp := *ts[len(ts)-1]
	return &cp, nil
}

func (r *mockTurnRepo) FindTurn(_ context.Context, matchID string, number int) (*model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turns[matchID] {
		if t.Number == number {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *mockTurnRepo) ListTurns(_ context.Context, matchID string) ([]model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Turn
	for _, t := range r.turns[matchID] {
		out = append(out, *t)
	}
	return out, nil
}

func (r *mockTurnRepo) find(turnID string) *model.Turn {
	for _, ts := range r.turns {
		for _, t := range ts {
			if t.ID == turnID {
				return t
			}
		}
	}
	return nil
}

func (r *mockTurnRepo) UpdateState(_ context.Context, turnID string, state json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.find(turnID)
	if t == nil || t.ResolvedAt != nil {
		return fmt.Errorf("turn %s not open", turnID)
	}
	t.StateBefore = state
	return nil
}

func (r *mockTurnRepo) ResolveTurn(_ context.Context, res repository.TurnResolution) (*model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	t := r.find(res.TurnID)
	if t == nil || t.ResolvedAt != nil {
		return nil, fmt.Errorf("turn %s not open", res.TurnID)
	}
	now := time.Now()
	t.StateAfter = res.StateAfter
	t.Report = res.Report
	t.ResolvedAt = &now
	r.commands[t.ID] = slices.Clone(res.Commands)
	r.battles[t.ID] = slices.Clone(res.Battles)
	cp := *r.createLocked(res.MatchID, res.NextNumber, res.StateAfter)
	return &cp, nil
}

func (r *mockTurnRepo) CommandsByTurn(_ context.Context, turnID string) ([]model.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.commands[turnID]), nil
}

func (r *mockTurnRepo) BattlesByTurn(_ context.Context, turnID string) ([]model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.battles[turnID]), nil
}

type mockCache struct {
	mu        sync.Mutex
	states    map[string]json.RawMessage
	queues    map[string][]json.RawMessage // matchID:playerID
	ready     map[string]map[string]bool
	locks     map[string]string
	published []repository.ReadyEvent
}

func newMockCache() *mockCache {
	return &mockCache{
		states: make(map[string]json.RawMessage),
		queues: make(map[string][]json.RawMessage),
		ready:  make(map[string]map[string]bool),
		locks:  make(map[string]string),
	}
}

func queueKey(matchID, playerID string) string { return matchID + ":" + playerID }

func (c *mockCache) SetTurnState(_ context.Context, matchID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[matchID] = state
	return nil
}

func (c *mockCache) GetTurnState(_ context.Context, matchID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[matchID], nil
}

func (c *mockCache) PushCommand(_ context.Context, matchID, playerID string, cmd json.RawMessage) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := queueKey(matchID, playerID)
	c.queues[k] = append(c.queues[k], cmd)
	return int64(len(c.queues[k])), nil
}

func (c *mockCache) RemoveCommand(_ context.Context, matchID, playerID string, cmd json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := queueKey(matchID, playerID)
	q := c.queues[k]
	for i := len(q) - 1; i >= 0; i-- {
		if string(q[i]) == string(cmd) {
			c.queues[k] = slices.Delete(q, i, i+1)
			return nil
		}
	}
	return nil
}

func (c *mockCache) RemoveCommandAt(_ context.Context, matchID, playerID string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := queueKey(matchID, playerID)
	if index < 0 || index >= len(c.queues[k]) {
		return errors.New("index out of range")
	}
	c.queues[k] = slices.Delete(c.queues[k], index, index+1)
	return nil
}

func (c *mockCache) Commands(_ context.Context, matchID, playerID string) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.queues[queueKey(matchID, playerID)]), nil
}

func (c *mockCache) AllCommands(_ context.Context, matchID string, players []string) (map[string][]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]json.RawMessage)
	for _, p := range players {
		if q := c.queues[queueKey(matchID, p)]; len(q) > 0 {
			out[p] = slices.Clone(q)
		}
	}
	return out, nil
}

func (c *mockCache) MarkReady(_ context.Context, matchID, playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready[matchID] == nil {
		c.ready[matchID] = make(map[string]bool)
	}
	c.ready[matchID][playerID] = true
	return nil
}

func (c *mockCache) ReadyPlayers(_ context.Context, matchID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for p := range c.ready[matchID] {
		out = append(out, p)
	}
	slices.Sort(out)
	return out, nil
}

func (c *mockCache) PublishReady(_ context.Context, matchID, playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, repository.ReadyEvent{MatchID: matchID, PlayerID: playerID})
	return nil
}

func (c *mockCache) AcquireResolveLock(_ context.Context, matchID, owner string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.locks[matchID]; held {
		return false, nil
	}
	c.locks[matchID] = owner
	return true, nil
}

func (c *mockCache) ReleaseResolveLock(_ context.Context, matchID, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[matchID] == owner {
		delete(c.locks, matchID)
	}
	return nil
}

func (c *mockCache) ClearTurnData(_ context.Context, matchID string, players []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ready, matchID)
	for _, p := range players {
		delete(c.queues, queueKey(matchID, p))
	}
	return nil
}

func (c *mockCache) DeleteMatchData(_ context.Context, matchID string, players []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, matchID)
	delete(c.ready, matchID)
	delete(c.locks, matchID)
	for _, p := range players {
		delete(c.queues, queueKey(matchID, p))
	}
	return nil
}

type mockNotificationRepo struct {
	mu    sync.Mutex
	items []model.Notification
	err   error
}

func (r *mockNotificationRepo) Create(_ context.Context, userID, text, reference string) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	n := model.Notification{
		ID:        fmt.Sprintf("n-%d", len(r.items)+1),
		UserID:    userID,
		Text:      text,
		Reference: reference,
		CreatedAt: time.Now(),
	}
	r.items = append(r.items, n)
	return &n, nil
}

func (r *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.items {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.items {
		if r.items[i].UserID == userID && !r.items[i].Read {
			r.items[i].Read = true
			n++
		}
	}
	return n, nil
}

type sentEvent struct {
	target string
	kind   string
	data   any
}

type recordingBroadcaster struct {
	mu          sync.Mutex
	matchEvents []sentEvent
	userEvents  []sentEvent
}

func (b *recordingBroadcaster) BroadcastMatchEvent(matchID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matchEvents = append(b.matchEvents, sentEvent{matchID, eventType, data})
}

func (b *recordingBroadcaster) BroadcastUserEvent(userID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userEvents = append(b.userEvents, sentEvent{userID, eventType, data})
}

func (b *recordingBroadcaster) has(kind string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.ContainsFunc(b.matchEvents, func(e sentEvent) bool { return e.kind == kind })
}

type notice struct {
	player, text, reference string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notice
}

func (n *recordingNotifier) Notify(_ context.Context, playerID, text, reference string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notice{playerID, text, reference})
}

func (n *recordingNotifier) to(player string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.player == player {
			out = append(out, s.text)
		}
	}
	return out
}
