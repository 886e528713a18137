package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/pkg/repower"
)

type fixture struct {
	matches  *mockMatchRepo
	turnRepo *mockTurnRepo
	cache    *mockCache
	bc       *recordingBroadcaster
	notes    *recordingNotifier
	turns    *TurnService
	svc      *MatchService
	commands *CommandService
}

func newFixture(rules config.Rules) *fixture {
	f := &fixture{
		matches:  newMockMatchRepo(),
		turnRepo: newMockTurnRepo(),
		cache:    newMockCache(),
		bc:       &recordingBroadcaster{},
		notes:    &recordingNotifier{},
	}
	f.turns = NewTurnService(f.matches, f.turnRepo, f.cache, TurnOptions{Rules: rules}, f.bc, f.notes)
	f.svc = NewMatchService(f.matches, f.turnRepo, f.cache, f.turns)
	f.commands = NewCommandService(f.turns, f.cache)
	return f
}

// startedMatch creates an Alpha match owned by alice with bob seated and
// both ready. alice plays North, bob plays South.
func (f *fixture) startedMatch(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	m, err := f.svc.CreateMatch(ctx, "Test", "alice", "")
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if _, err := f.svc.JoinMatch(ctx, m.ID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, p := range []string{"alice", "bob"} {
		if err := f.svc.Ready(ctx, m.ID, p); err != nil {
			t.Fatalf("setup ready %s: %v", p, err)
		}
	}
	return m.ID
}

// state decodes the cached board of a match.
func (f *fixture) state(t *testing.T, matchID string) *repower.TurnState {
	t.Helper()
	raw, _ := f.cache.GetTurnState(context.Background(), matchID)
	if raw == nil {
		t.Fatal("no cached state")
	}
	ts, err := decodeState(raw)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func (f *fixture) currentTurn(t *testing.T, matchID string) int {
	t.Helper()
	turn, _ := f.turnRepo.CurrentTurn(context.Background(), matchID)
	if turn == nil {
		t.Fatal("no current turn")
	}
	return turn.Number
}

func TestCreateMatch(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()

	m, err := f.svc.CreateMatch(ctx, "  Opening  ", "alice", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Name != "Opening" || m.MapID != "alpha" || m.Capacity != 2 || m.Status != "setup" {
		t.Errorf("unexpected match %+v", m)
	}
	if len(m.Players) != 1 || m.Players[0].UserID != "alice" {
		t.Errorf("owner should be seated, got %+v", m.Players)
	}

	if _, err := f.svc.CreateMatch(ctx, " ", "alice", ""); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
	if _, err := f.svc.CreateMatch(ctx, "Elsewhere", "alice", "omega"); !errors.Is(err, ErrUnknownMap) {
		t.Errorf("expected ErrUnknownMap, got %v", err)
	}
}

func TestJoinMatch(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	m, _ := f.svc.CreateMatch(ctx, "Test", "alice", "")

	if _, err := f.svc.JoinMatch(ctx, m.ID, "alice"); !errors.Is(err, repower.ErrAlreadyJoined) {
		t.Errorf("expected ErrAlreadyJoined, got %v", err)
	}
	joined, err := f.svc.JoinMatch(ctx, m.ID, "bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Players) != 2 || joined.Players[1].UserID != "bob" || joined.Players[1].Seat != 1 {
		t.Errorf("bob should take seat 1, got %+v", joined.Players)
	}
	if _, err := f.svc.JoinMatch(ctx, m.ID, "carol"); !errors.Is(err, repower.ErrMatchFull) {
		t.Errorf("expected ErrMatchFull, got %v", err)
	}
	if _, err := f.svc.JoinMatch(ctx, "missing", "carol"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
	if !f.bc.has("player_joined") {
		t.Error("expected a player_joined broadcast")
	}
}

func TestMatchStartsWhenAllSeatsReady(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	m, _ := f.svc.CreateMatch(ctx, "Test", "alice", "")
	f.svc.JoinMatch(ctx, m.ID, "bob")

	if err := f.svc.Ready(ctx, m.ID, "alice"); err != nil {
		t.Fatalf("ready alice: %v", err)
	}
	got, _ := f.matches.FindByID(ctx, m.ID)
	if got.Status != "setup" || !got.Players[0].SetupReady {
		t.Fatalf("match should wait for bob, got %+v", got)
	}
	if err := f.svc.Ready(ctx, m.ID, "alice"); !errors.Is(err, repower.ErrAlreadyReady) {
		t.Errorf("expected ErrAlreadyReady, got %v", err)
	}

	if err := f.svc.Ready(ctx, m.ID, "bob"); err != nil {
		t.Fatalf("ready bob: %v", err)
	}
	got, _ = f.matches.FindByID(ctx, m.ID)
	if got.Status != "playing" || got.StartedAt == nil {
		t.Fatalf("match should be playing, got %+v", got)
	}
	if got.Players[0].Country != int(repower.North) || got.Players[1].Country != int(repower.South) {
		t.Errorf("countries follow seat order, got %+v", got.Players)
	}
	if f.currentTurn(t, m.ID) != 1 {
		t.Error("expected turn 1")
	}

	ts := f.state(t, m.ID)
	if len(ts.TokensAt(repower.NorthReserve)) != 8 || len(ts.TokensAt(repower.SouthReserve)) != 8 {
		t.Errorf("each reserve should hold the starting loadout, got %d and %d",
			len(ts.TokensAt(repower.NorthReserve)), len(ts.TokensAt(repower.SouthReserve)))
	}
	for _, p := range []string{"alice", "bob"} {
		if !slices.Contains(f.notes.to(p), "Test has started") {
			t.Errorf("%s should be told the match started, got %v", p, f.notes.to(p))
		}
	}
	if !f.bc.has("match_started") {
		t.Error("expected a match_started broadcast")
	}
}

func TestKickPlayer(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	m, _ := f.svc.CreateMatch(ctx, "Test", "alice", "")
	f.svc.JoinMatch(ctx, m.ID, "bob")

	if err := f.svc.KickPlayer(ctx, m.ID, "bob", "alice"); !errors.Is(err, repower.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := f.svc.KickPlayer(ctx, m.ID, "alice", "alice"); !errors.Is(err, repower.ErrCannotKickOwner) {
		t.Errorf("expected ErrCannotKickOwner, got %v", err)
	}
	if err := f.svc.KickPlayer(ctx, m.ID, "alice", "bob"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	got, _ := f.matches.FindByID(ctx, m.ID)
	if len(got.Players) != 1 {
		t.Errorf("bob should be gone, got %+v", got.Players)
	}
	if len(f.notes.to("bob")) != 1 {
		t.Errorf("bob should be told, got %v", f.notes.to("bob"))
	}
	if err := f.svc.KickPlayer(ctx, m.ID, "alice", "bob"); !errors.Is(err, repower.ErrNotInMatch) {
		t.Errorf("expected ErrNotInMatch, got %v", err)
	}
}

func TestLeaveDuringSetup(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	m, _ := f.svc.CreateMatch(ctx, "Test", "alice", "")
	f.svc.JoinMatch(ctx, m.ID, "bob")

	if err := f.svc.LeaveMatch(ctx, m.ID, "bob"); err != nil {
		t.Fatalf("bob leaves: %v", err)
	}
	got, _ := f.matches.FindByID(ctx, m.ID)
	if got.Status != "setup" || len(got.Players) != 1 {
		t.Fatalf("bob's seat should be freed, got %+v", got)
	}

	f.svc.JoinMatch(ctx, m.ID, "carol")
	if err := f.svc.LeaveMatch(ctx, m.ID, "alice"); err != nil {
		t.Fatalf("owner leaves: %v", err)
	}
	got, _ = f.matches.FindByID(ctx, m.ID)
	if got.Status != "setup_aborted" {
		t.Errorf("owner leaving aborts setup, got %s", got.Status)
	}
	if len(f.notes.to("carol")) != 1 || len(f.notes.to("alice")) != 0 {
		t.Errorf("only carol should be told: %+v", f.notes.sent)
	}
	if _, err := f.svc.JoinMatch(ctx, m.ID, "dave"); !errors.Is(err, repower.ErrMatchWrongStatus) {
		t.Errorf("an aborted match takes no players, got %v", err)
	}
}

func TestLeaveInProgressEndsTwoPlayerMatch(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	id := f.startedMatch(t)

	if err := f.svc.LeaveMatch(ctx, id, "bob"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, _ := f.matches.FindByID(ctx, id)
	if got.Status != "finished" || !slices.Equal(got.Winners, []string{"alice"}) || got.FinishedAt == nil {
		t.Fatalf("alice should win by forfeit, got %+v", got)
	}
	if !got.Players[1].LeftMatch {
		t.Error("bob's seat should be marked as left")
	}
	if raw, _ := f.cache.GetTurnState(ctx, id); raw != nil {
		t.Error("cached data should be dropped when the match ends")
	}
	turn, _ := f.turnRepo.CurrentTurn(ctx, id)
	ts, _ := decodeState(turn.StateBefore)
	if len(ts.TokensOf("bob")) != 0 || !ts.Player("bob").LeftMatch {
		t.Error("the stored board should no longer hold bob's tokens")
	}
	if !slices.Contains(f.notes.to("alice"), "You won Test") {
		t.Errorf("alice should be told about the win, got %v", f.notes.to("alice"))
	}
	if err := f.svc.LeaveMatch(ctx, id, "alice"); !errors.Is(err, repower.ErrMatchWrongStatus) {
		t.Errorf("expected ErrMatchWrongStatus after the end, got %v", err)
	}
}

func TestPauseHoldsResolutionUntilResume(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	id := f.startedMatch(t)

	if err := f.svc.PauseMatch(ctx, id, "bob"); !errors.Is(err, repower.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := f.svc.PauseMatch(ctx, id, "alice"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	for _, p := range []string{"alice", "bob"} {
		if err := f.svc.Ready(ctx, id, p); err != nil {
			t.Fatalf("ready %s while paused: %v", p, err)
		}
	}
	if f.currentTurn(t, id) != 1 {
		t.Fatal("a paused match must not advance")
	}

	if err := f.svc.ResumeMatch(ctx, id, "alice"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.currentTurn(t, id) != 2 {
		t.Error("resuming with everyone ready should resolve the turn")
	}
	if err := f.svc.ResumeMatch(ctx, id, "alice"); !errors.Is(err, repower.ErrMatchWrongStatus) {
		t.Errorf("expected ErrMatchWrongStatus, got %v", err)
	}
}

func TestAbortMatch(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	id := f.startedMatch(t)

	if err := f.svc.AbortMatch(ctx, id, "bob"); !errors.Is(err, repower.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := f.svc.AbortMatch(ctx, id, "alice"); err != nil {
		t.Fatalf("abort: %v", err)
	}
	got, _ := f.matches.FindByID(ctx, id)
	if got.Status != "aborted" || got.FinishedAt == nil || len(got.Winners) != 0 {
		t.Errorf("unexpected aborted match %+v", got)
	}
	if raw, _ := f.cache.GetTurnState(ctx, id); raw != nil {
		t.Error("cached data should be dropped")
	}
	if err := f.svc.AbortMatch(ctx, id, "alice"); !errors.Is(err, repower.ErrMatchWrongStatus) {
		t.Errorf("expected ErrMatchWrongStatus, got %v", err)
	}
	if err := f.svc.Ready(ctx, id, "bob"); !errors.Is(err, repower.ErrMatchWrongStatus) {
		t.Errorf("ready after abort should fail, got %v", err)
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	m, _ := f.svc.CreateMatch(ctx, "Test", "alice", "")

	if _, err := f.svc.GetMatch(ctx, m.ID, "carol"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("a private match should be hidden, got %v", err)
	}
	if _, err := f.svc.SetPublic(ctx, m.ID, "carol", true); !errors.Is(err, repower.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := f.svc.SetPublic(ctx, m.ID, "alice", true); err != nil {
		t.Fatalf("set public: %v", err)
	}
	got, err := f.svc.GetMatch(ctx, m.ID, "carol")
	if err != nil || !got.Public {
		t.Fatalf("carol should see the public match: %v", err)
	}
	list, _ := f.svc.ListMatches(ctx, "carol")
	if len(list) != 1 {
		t.Errorf("expected 1 visible match, got %d", len(list))
	}
}

func TestPauseNotifiesPlayers(t *testing.T) {
	f := newFixture(config.Rules{})
	ctx := context.Background()
	id := f.startedMatch(t)
	f.svc.PauseMatch(ctx, id, "alice")

	for _, p := range []string{"alice", "bob"} {
		found := false
		for _, text := range f.notes.to(p) {
			if strings.Contains(text, "is paused") {
				found = true
			}
		}
		if !found {
			t.Errorf("%s should be told about the pause", p)
		}
	}
}

func TestNotifyActiveSkipsGoneAndDefeated(t *testing.T) {
	f := newFixture(config.Rules{})
	mm := &model.Match{ID: "m1", Name: "Test", Players: []model.MatchPlayer{
		{UserID: "alice"},
		{UserID: "bob", LeftMatch: true},
		{UserID: "carol", Defeated: true},
		{UserID: "dave"},
	}}
	f.turns.notifyActive(context.Background(), mm, "bob left Test")

	for p, want := range map[string]int{"alice": 1, "bob": 0, "carol": 0, "dave": 1} {
		if got := len(f.notes.to(p)); got != want {
			t.Errorf("%s: expected %d notifications, got %d", p, want, got)
		}
	}
}
