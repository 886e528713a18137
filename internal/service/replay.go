package service

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
	"github.com/freeeve/repower/pkg/repower"
)

// Divergence is a resolved turn whose stored outcome does not match a fresh
// resolution of its stored board and commands.
type Divergence struct {
	Turn   int    `json:"turn"`
	Reason string `json:"reason"`
}

// Replayer audits match history. Resolution must be deterministic, so
// re-running a stored turn has to reproduce the stored result exactly.
type Replayer struct {
	matchRepo repository.MatchRepository
	turnRepo  repository.TurnRepository
	catalog   *repower.Catalog
	rules     config.Rules
}

// NewReplayer creates a Replayer resolving with the given rule limits.
func NewReplayer(matchRepo repository.MatchRepository, turnRepo repository.TurnRepository, rules config.Rules) *Replayer {
	if rules.MaxBattleIterations <= 0 {
		rules.MaxBattleIterations = repower.DefaultMaxBattleIterations
	}
	return &Replayer{
		matchRepo: matchRepo,
		turnRepo:  turnRepo,
		catalog:   repower.StandardCatalog(),
		rules:     rules,
	}
}

// ReplayMatch re-resolves every resolved turn of matchID and returns the
// turns that diverge. Open turns are skipped.
func (r *Replayer) ReplayMatch(ctx context.Context, matchID string) ([]Divergence, error) {
	mm, err := r.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	if mm == nil {
		return nil, ErrMatchNotFound
	}
	m, ok := repower.MapByID(repower.MapID(mm.MapID))
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMap, mm.MapID)
	}
	turns, err := r.turnRepo.ListTurns(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	var out []Divergence
	for _, t := range turns {
		if t.ResolvedAt == nil {
			continue
		}
		reasons, err := r.replayTurn(ctx, t, m)
		if err != nil {
			return nil, err
		}
		for _, reason := range reasons {
			out = append(out, Divergence{Turn: t.Number, Reason: reason})
		}
	}
	log.Info().Str("matchId", matchID).Int("turns", len(turns)).Int("divergences", len(out)).Msg("Replay finished")
	return out, nil
}

// replayTurn returns why turn t does not reproduce, if it does not.
func (r *Replayer) replayTurn(ctx context.Context, t model.Turn, m *repower.Map) ([]string, error) {
	stored, err := r.turnRepo.CommandsByTurn(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("commands of turn %d: %w", t.Number, err)
	}
	before, err := decodeState(t.StateBefore)
	if err != nil {
		return nil, fmt.Errorf("turn %d: %w", t.Number, err)
	}

	queued := make(map[repower.PlayerID][]repower.Command)
	slices.SortStableFunc(stored, func(a, b model.Command) int { return a.Order - b.Order })
	for _, c := range stored {
		p := repower.PlayerID(c.PlayerID)
		queued[p] = append(queued[p], toEngineCommand(c, c.Order))
	}

	res, err := repower.ProcessTurn(before, queued, m, r.catalog, repower.TurnConfig{
		MaxBattleIterations: r.rules.MaxBattleIterations,
	})
	if err != nil {
		return []string{"resolution failed: " + err.Error()}, nil
	}

	var reasons []string
	replayed := make(map[string]repower.Command, len(res.Commands))
	for _, c := range res.Commands {
		replayed[c.ID] = c
	}
	for _, c := range stored {
		got, ok := replayed[c.ID]
		switch {
		case !ok:
			reasons = append(reasons, fmt.Sprintf("command %s was not processed", c.ID))
		case string(got.Valid) != c.Valid:
			reasons = append(reasons, fmt.Sprintf("command %s: stored %s, replayed %s", c.ID, c.Valid, got.Valid))
		case got.RevertedInDraw != c.RevertedInDraw:
			reasons = append(reasons, fmt.Sprintf("command %s: stored reverted %t, replayed %t", c.ID, c.RevertedInDraw, got.RevertedInDraw))
		}
	}

	battles, err := r.turnRepo.BattlesByTurn(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("battles of turn %d: %w", t.Number, err)
	}
	if len(battles) != len(res.Battles) {
		reasons = append(reasons, fmt.Sprintf("stored %d battles, replayed %d", len(battles), len(res.Battles)))
	}

	// Compare canonical encodings so field order in storage does not matter.
	after, err := decodeState(t.StateAfter)
	if err != nil {
		return nil, fmt.Errorf("turn %d: %w", t.Number, err)
	}
	want, err := encodeState(after)
	if err != nil {
		return nil, err
	}
	got, err := encodeState(res.State)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want, got) {
		reasons = append(reasons, "board differs")
	}
	return reasons, nil
}
