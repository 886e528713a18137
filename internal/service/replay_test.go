package service

import (
	"context"
	"errors"
	"testing"

	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/pkg/repower"
)

// playTwoTurns resolves two turns with a deploy and a purchase in the first.
func playTwoTurns(t *testing.T, f *fixture) string {
	t.Helper()
	ctx := context.Background()
	id := f.startedMatch(t)
	f.commands.SubmitCommand(ctx, id, "alice", deploy(repower.Infantry, repower.NorthReserve, repower.NorthHQ))
	f.commands.SubmitCommand(ctx, id, "bob", CommandSpec{Type: "purchase", TokenType: int(repower.Infantry)})
	for turn := 0; turn < 2; turn++ {
		f.turns.SetReady(ctx, id, "alice")
		if err := f.turns.SetReady(ctx, id, "bob"); err != nil {
			t.Fatalf("turn %d: %v", turn+1, err)
		}
	}
	if f.currentTurn(t, id) != 3 {
		t.Fatal("expected two resolved turns")
	}
	return id
}

func TestReplayMatchReproduces(t *testing.T) {
	f := newFixture(config.Rules{})
	id := playTwoTurns(t, f)

	got, err := NewReplayer(f.matches, f.turnRepo, config.Rules{}).ReplayMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected a clean replay, got %+v", got)
	}
}

func TestReplayMatchReportsTampering(t *testing.T) {
	f := newFixture(config.Rules{})
	id := playTwoTurns(t, f)

	first := f.turnRepo.turns[id][0]
	after, err := decodeState(first.StateAfter)
	if err != nil {
		t.Fatal(err)
	}
	after.AddToken(repower.Tank, "bob", repower.SouthHQ, true)
	first.StateAfter, _ = encodeState(after)

	cmds := f.turnRepo.commands[first.ID]
	cmds[0].Valid = "invalid"

	got, err := NewReplayer(f.matches, f.turnRepo, config.Rules{}).ReplayMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two divergences, got %+v", got)
	}
	for _, d := range got {
		if d.Turn != 1 {
			t.Errorf("only turn 1 was tampered with, got %+v", d)
		}
	}
	if got[1].Reason != "board differs" {
		t.Errorf("expected the board check last, got %q", got[1].Reason)
	}
}

func TestReplayMatchReportsRevertedFlag(t *testing.T) {
	f := newFixture(config.Rules{})
	id := playTwoTurns(t, f)

	first := f.turnRepo.turns[id][0]
	cmds := f.turnRepo.commands[first.ID]
	cmds[0].RevertedInDraw = true

	got, err := NewReplayer(f.matches, f.turnRepo, config.Rules{}).ReplayMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 1 || got[0].Turn != 1 {
		t.Fatalf("expected one divergence on turn 1, got %+v", got)
	}
	want := "command " + cmds[0].ID + ": stored reverted true, replayed false"
	if got[0].Reason != want {
		t.Errorf("expected %q, got %q", want, got[0].Reason)
	}
}

func TestReplayMatchUnknown(t *testing.T) {
	f := newFixture(config.Rules{})
	_, err := NewReplayer(f.matches, f.turnRepo, config.Rules{}).ReplayMatch(context.Background(), "nope")
	if !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}
