package repower

import (
	"fmt"
	"sort"
	"strings"
)

// TurnConfig holds the tunable rule limits used during resolution.
type TurnConfig struct {
	MaxBattleIterations int
}

// EventKind classifies something players should hear about after a turn.
type EventKind string

const (
	EventFlagCaptured  EventKind = "flag_captured"
	EventDefeated      EventKind = "defeated"
	EventMissileStrike EventKind = "missile_strike"
	EventMatchFinished EventKind = "match_finished"
)

// Event is a notable outcome of a turn. By is the capturing or striking
// player where one exists.
type Event struct {
	Kind        EventKind
	Player      PlayerID
	By          PlayerID
	PowerPoints int
}

// TurnResult is the outcome of resolving one turn.
type TurnResult struct {
	State    *TurnState
	Commands []Command // every processed command with its outcome
	Battles  []Battle
	Strikes  []MissileStrike
	Events   []Event
	Finished bool
	Winners  []PlayerID
}

// ProcessTurn resolves the commands queued during prev and returns the next
// generation. prev is never modified. On error no partial result is returned.
func ProcessTurn(prev *TurnState, queued map[PlayerID][]Command, m *Map, cat *Catalog, cfg TurnConfig) (*TurnResult, error) {
	next := prev.Advance()
	res := &TurnResult{State: next}

	// Stable per-player order, players in seat order.
	var all []*Command
	perPlayer := make(map[PlayerID][]*Command, len(next.Players))
	for _, p := range next.Players {
		cmds := append([]Command(nil), queued[p.Player]...)
		sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Order < cmds[j].Order })
		for i := range cmds {
			cmds[i].Player = p.Player
			cmds[i].Valid = Unresolved
			cmds[i].RevertedInDraw = false
			perPlayer[p.Player] = append(perPlayer[p.Player], &cmds[i])
			all = append(all, &cmds[i])
		}
	}

	for i := range next.Players {
		p := &next.Players[i]
		if !p.Active() {
			for _, c := range perPlayer[p.Player] {
				c.Valid = Invalid
			}
			continue
		}
		if !next.ExecuteCommands(perPlayer[p.Player], m, m.ID, cat) && p.PowerPoints > 0 {
			p.PowerPoints--
		}
	}

	battles, err := ResolveBattles(next, all, m, cat, cfg.MaxBattleIterations)
	if err != nil {
		return nil, err
	}
	res.Battles = battles

	res.Strikes = next.RemoveFiredMissiles(m, cat)
	for _, s := range res.Strikes {
		if s.Drained != "" {
			res.Events = append(res.Events, Event{Kind: EventMissileStrike, Player: s.Drained, By: s.Owner, PowerPoints: s.Points})
		}
	}

	for i := range next.Players {
		if next.Players[i].Active() {
			res.Events = append(res.Events, next.checkDefeat(&next.Players[i], m, cat)...)
		}
	}

	active := next.ActivePlayers()
	if len(active) <= 1 {
		res.Finished = true
		res.Winners = active
		res.Events = append(res.Events, Event{Kind: EventMatchFinished})
	} else {
		next.collectPowerPoints(m)
	}
	next.UpdateStrength(cat)

	for _, c := range all {
		res.Commands = append(res.Commands, *c)
	}
	return res, nil
}

// checkDefeat applies flag capture or elimination to one active player.
func (ts *TurnState) checkDefeat(p *PlayerTurn, m *Map, cat *Catalog) []Event {
	hq := m.Country(p.Country).Headquarters
	for _, t := range ts.Tokens {
		if t.Region != hq || t.Owner == p.Player || !cat.TokenType(t.Type).CanCaptureFlag {
			continue
		}
		captor := ts.Player(t.Owner)
		reserve := m.Country(captor.Country).Reserve
		points := p.PowerPoints
		captor.PowerPoints += points
		p.PowerPoints = 0
		p.Defeated = true
		for i := range ts.Tokens {
			if ts.Tokens[i].Owner == p.Player {
				ts.Tokens[i].Owner = captor.Player
				ts.Tokens[i].Region = reserve
			}
		}
		return []Event{
			{Kind: EventFlagCaptured, Player: p.Player, By: captor.Player, PowerPoints: points},
			{Kind: EventDefeated, Player: p.Player, By: captor.Player},
		}
	}
	if len(ts.TokensOf(p.Player)) == 0 && p.PowerPoints == 0 {
		p.Defeated = true
		return []Event{{Kind: EventDefeated, Player: p.Player}}
	}
	return nil
}

// collectPowerPoints awards each active player one point per foreign
// country hosting at least one of its tokens.
func (ts *TurnState) collectPowerPoints(m *Map) {
	for i := range ts.Players {
		p := &ts.Players[i]
		if !p.Active() {
			continue
		}
		seen := make(map[CountryID]bool)
		for _, t := range ts.Tokens {
			if t.Owner != p.Player {
				continue
			}
			c := m.Region(t.Region).Country
			if c != NoCountry && c != p.Country {
				seen[c] = true
			}
		}
		p.PowerPoints += len(seen)
	}
}

// Report renders a plain-text summary of the turn for the history view.
func (r *TurnResult) Report(m *Map, cat *Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d\n", r.State.Number-1)
	for _, c := range r.Commands {
		status := string(c.Valid)
		if c.RevertedInDraw {
			status += ", reverted"
		}
		fmt.Fprintf(&b, "%s #%d: %s (%s)\n", c.Player, c.Order, c.Describe(m, cat), status)
	}
	for _, bt := range r.Battles {
		name := m.Region(bt.Region).Name
		if bt.Winner != "" {
			fmt.Fprintf(&b, "Battle in %s (pass %d): %s wins, %d captured\n", name, bt.Step, bt.Winner, len(bt.Captured))
		} else {
			fmt.Fprintf(&b, "Battle in %s (pass %d): draw\n", name, bt.Step)
		}
	}
	for _, e := range r.Events {
		switch e.Kind {
		case EventFlagCaptured:
			fmt.Fprintf(&b, "%s captured the flag of %s\n", e.By, e.Player)
		case EventDefeated:
			fmt.Fprintf(&b, "%s was defeated\n", e.Player)
		case EventMissileStrike:
			fmt.Fprintf(&b, "%s drained %d power points from %s\n", e.By, e.PowerPoints, e.Player)
		case EventMatchFinished:
			b.WriteString("Match finished\n")
		}
	}
	return b.String()
}
