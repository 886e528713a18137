package repower

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrBattleNotConverged is returned when battle resolution is still
// retreating tokens after the configured number of passes.
var ErrBattleNotConverged = errors.New("battle resolution did not converge")

// ResolutionError reports a turn whose battles could not be settled.
type ResolutionError struct {
	Turn       int
	Iterations int
	Regions    []RegionID // regions still contested at the last pass
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("turn %d: %v after %d passes (contested regions %v)", e.Turn, ErrBattleNotConverged, e.Iterations, e.Regions)
}

func (e *ResolutionError) Unwrap() error { return ErrBattleNotConverged }

// Battle records one contested region in one pass. It is kept for the turn
// report only.
type Battle struct {
	Region   RegionID
	Step     int
	Winner   PlayerID // empty on a draw
	Winning  []TokenID
	Captured []TokenID
}

// DefaultMaxBattleIterations bounds the resolution loop when no limit is configured.
const DefaultMaxBattleIterations = 32

// unbounded is the combat strength of a fired destroys-all missile.
const unbounded = math.MaxInt

// ContestedRegions returns the regions holding tokens of two or more owners.
func (ts *TurnState) ContestedRegions(m *Map) []RegionID {
	var out []RegionID
	for _, r := range m.regionIDs {
		if len(ts.ownersAt(r)) > 1 {
			out = append(out, r)
		}
	}
	return out
}

// ownersAt returns the owners present at r in first-seen token order.
func (ts *TurnState) ownersAt(r RegionID) []PlayerID {
	var owners []PlayerID
	for _, t := range ts.Tokens {
		if t.Region == r && !slices.Contains(owners, t.Owner) {
			owners = append(owners, t.Owner)
		}
	}
	return owners
}

// combatStrength sums the strength of p's tokens at r. Missiles count only
// when they fired this turn.
func (ts *TurnState) combatStrength(p PlayerID, r RegionID, cat *Catalog) int {
	total := 0
	for _, t := range ts.Tokens {
		if t.Owner != p || t.Region != r {
			continue
		}
		tt := cat.TokenType(t.Type)
		if tt.SpecialMissile && !t.MovedThisTurn {
			continue
		}
		if tt.SpecialDestroysAll {
			return unbounded
		}
		total += tt.Strength
	}
	return total
}

// ResolveBattles settles every contested region until a pass retreats no
// token. commands are all of the turn's resolved commands; draws revert the
// matching moves and flag them RevertedInDraw. A region where no tied owner
// can retreat stays contested. Exceeding maxIterations passes returns a
// *ResolutionError and the state must be discarded.
func ResolveBattles(ts *TurnState, commands []*Command, m *Map, cat *Catalog, maxIterations int) ([]Battle, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxBattleIterations
	}
	var battles []Battle
	for step := 1; step <= maxIterations; step++ {
		retreated := false
		for _, r := range m.regionIDs {
			b, moved, ok := ts.resolveRegion(r, step, commands, m, cat)
			if !ok {
				continue
			}
			battles = append(battles, b)
			retreated = retreated || moved
		}
		if !retreated {
			return battles, nil
		}
	}
	return battles, &ResolutionError{Turn: ts.Number, Iterations: maxIterations, Regions: ts.ContestedRegions(m)}
}

// resolveRegion fights the battle at r, if any. It reports whether a token
// retreated.
func (ts *TurnState) resolveRegion(r RegionID, step int, commands []*Command, m *Map, cat *Catalog) (Battle, bool, bool) {
	owners := ts.ownersAt(r)
	if len(owners) < 2 {
		return Battle{}, false, false
	}

	best := -1
	var winners []PlayerID
	for _, p := range owners {
		s := ts.combatStrength(p, r, cat)
		switch {
		case s > best:
			best = s
			winners = []PlayerID{p}
		case s == best:
			winners = append(winners, p)
		}
	}

	b := Battle{Region: r, Step: step}
	present := ts.TokensAt(r)

	if len(winners) == 1 {
		winner := ts.Player(winners[0])
		reserve := m.Country(winner.Country).Reserve
		b.Winner = winner.Player
		for _, id := range present {
			t := ts.Token(id)
			if t.Owner == winner.Player {
				b.Winning = append(b.Winning, id)
				continue
			}
			t.Owner = winner.Player
			t.Region = reserve
			b.Captured = append(b.Captured, id)
		}
		return b, false, true
	}

	retreated := false
	for _, id := range present {
		t := ts.Token(id)
		if !slices.Contains(winners, t.Owner) {
			continue
		}
		b.Winning = append(b.Winning, id)
		if t.RetreatedThisDraw {
			continue
		}
		cmd := revertibleMove(commands, t)
		if cmd == nil {
			continue
		}
		cmd.RevertedInDraw = true
		t.Region = cmd.Source
		t.RetreatedThisDraw = true
		retreated = true
	}
	return b, retreated, true
}

// revertibleMove finds the first valid, unreverted move by t's owner that
// brought a token of t's type into t's region.
func revertibleMove(commands []*Command, t *Token) *Command {
	for _, c := range commands {
		if c.Type == CommandMove && c.Valid == Valid && !c.RevertedInDraw &&
			c.Player == t.Owner && c.Destination == t.Region && c.TokenType == t.Type {
			return c
		}
	}
	return nil
}

// MissileStrike records a fired missile removed after battle.
type MissileStrike struct {
	Token   TokenID
	Owner   PlayerID
	Region  RegionID
	Drained PlayerID // victim of a destroys-all strike on a reserve
	Points  int
}

// RemoveFiredMissiles deletes every missile that fired this turn. A
// destroys-all missile resting on a country's reserve moves that country's
// power points to the missile's owner.
func (ts *TurnState) RemoveFiredMissiles(m *Map, cat *Catalog) []MissileStrike {
	var strikes []MissileStrike
	for _, t := range slices.Clone(ts.Tokens) {
		tt := cat.TokenType(t.Type)
		if !tt.SpecialMissile || !t.MovedThisTurn {
			continue
		}
		s := MissileStrike{Token: t.ID, Owner: t.Owner, Region: t.Region}
		if c, ok := m.ReserveOf(t.Region); ok && tt.SpecialDestroysAll {
			victim := ts.PlayerByCountry(c)
			owner := ts.Player(t.Owner)
			if victim != nil && owner != nil && victim.Player != owner.Player {
				s.Drained = victim.Player
				s.Points = victim.PowerPoints
				owner.PowerPoints += victim.PowerPoints
				victim.PowerPoints = 0
			}
		}
		ts.RemoveToken(t.ID)
		strikes = append(strikes, s)
	}
	return strikes
}
