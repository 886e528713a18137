package repower

import (
	"errors"
	"fmt"
	"slices"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusSetup        MatchStatus = "setup"
	StatusSetupAborted MatchStatus = "setup_aborted"
	StatusPlaying      MatchStatus = "playing"
	StatusPaused       MatchStatus = "paused"
	StatusFinished     MatchStatus = "finished"
	StatusAborted      MatchStatus = "aborted"
)

var (
	ErrMatchWrongStatus = errors.New("match is not in the right status")
	ErrMatchFull        = errors.New("match is full")
	ErrAlreadyJoined    = errors.New("player already in match")
	ErrAlreadyReady     = errors.New("player already ready")
	ErrCannotKickOwner  = errors.New("the owner cannot be kicked")
	ErrNotInMatch       = errors.New("player not in match")
	ErrNotOwner         = errors.New("only the owner can do this")
	ErrPlayerInactive   = errors.New("player is no longer active")
)

// Seat is a player's membership in a match.
type Seat struct {
	Player     PlayerID
	SetupReady bool
	Country    CountryID
	Defeated   bool
	LeftMatch  bool
}

// Active reports whether the seat is still competing.
func (s *Seat) Active() bool {
	return !s.Defeated && !s.LeftMatch
}

// Match is the coarse lifecycle of one game. Seats are kept in join order,
// which becomes country order at start.
type Match struct {
	ID       string
	Name     string
	Owner    PlayerID
	Map      MapID
	Capacity int
	Status   MatchStatus
	Public   bool
	Seats    []Seat
}

// NewMatch creates a match in setup with the owner seated.
func NewMatch(id, name string, owner PlayerID, m *Map) *Match {
	return &Match{
		ID:       id,
		Name:     name,
		Owner:    owner,
		Map:      m.ID,
		Capacity: m.Seats(),
		Status:   StatusSetup,
		Seats:    []Seat{{Player: owner}},
	}
}

// InProgress reports whether turns are being played (possibly paused).
func (mt *Match) InProgress() bool {
	return mt.Status == StatusPlaying || mt.Status == StatusPaused
}

// HasStarted reports whether the match ever left setup successfully.
func (mt *Match) HasStarted() bool {
	return mt.InProgress() || mt.Status == StatusFinished || mt.Status == StatusAborted
}

// Seat returns p's seat, or nil.
func (mt *Match) Seat(p PlayerID) *Seat {
	for i := range mt.Seats {
		if mt.Seats[i].Player == p {
			return &mt.Seats[i]
		}
	}
	return nil
}

// CanView reports whether p may look at the match.
func (mt *Match) CanView(p PlayerID) bool {
	return mt.Public || mt.Seat(p) != nil
}

// ActivePlayers returns the seated players still competing, in seat order.
func (mt *Match) ActivePlayers() []PlayerID {
	var out []PlayerID
	for i := range mt.Seats {
		if mt.Seats[i].Active() {
			out = append(out, mt.Seats[i].Player)
		}
	}
	return out
}

// Join seats p.
func (mt *Match) Join(p PlayerID) error {
	if mt.Status != StatusSetup {
		return ErrMatchWrongStatus
	}
	if mt.Seat(p) != nil {
		return ErrAlreadyJoined
	}
	if len(mt.Seats) >= mt.Capacity {
		return ErrMatchFull
	}
	mt.Seats = append(mt.Seats, Seat{Player: p})
	return nil
}

// Kick removes p from a match in setup on behalf of the owner.
func (mt *Match) Kick(by, p PlayerID) error {
	if mt.Status != StatusSetup {
		return ErrMatchWrongStatus
	}
	if by != mt.Owner {
		return ErrNotOwner
	}
	if p == mt.Owner {
		return ErrCannotKickOwner
	}
	if mt.Seat(p) == nil {
		return ErrNotInMatch
	}
	mt.removeSeat(p)
	return nil
}

func (mt *Match) removeSeat(p PlayerID) {
	mt.Seats = slices.DeleteFunc(mt.Seats, func(s Seat) bool { return s.Player == p })
}

// SetPublic toggles visibility while in setup.
func (mt *Match) SetPublic(by PlayerID, public bool) error {
	if by != mt.Owner {
		return ErrNotOwner
	}
	if mt.Status != StatusSetup {
		return ErrMatchWrongStatus
	}
	mt.Public = public
	return nil
}

// LeaveOutcome describes what a departure did to the match.
type LeaveOutcome int

const (
	LeftSetup     LeaveOutcome = iota // seat removed during setup
	AbortedSetup                      // owner left, match aborted
	LeftInProgress                    // player forfeited an ongoing match
)

// Leave removes p. During setup the owner leaving aborts the match. In
// progress the player forfeits: current turn marked ready with no power
// points and no tokens. ts is the current turn and may be nil in setup.
// The caller must check Finished and AllReady afterwards.
func (mt *Match) Leave(p PlayerID, ts *TurnState) (LeaveOutcome, error) {
	seat := mt.Seat(p)
	if seat == nil {
		return 0, ErrNotInMatch
	}
	switch {
	case mt.Status == StatusSetup:
		if p == mt.Owner {
			mt.Status = StatusSetupAborted
			return AbortedSetup, nil
		}
		mt.removeSeat(p)
		return LeftSetup, nil
	case mt.InProgress():
		pt := ts.Player(p)
		if !seat.Active() || pt == nil || !pt.Active() {
			return 0, ErrPlayerInactive
		}
		seat.LeftMatch = true
		pt.LeftMatch = true
		pt.Ready = true
		pt.PowerPoints = 0
		ts.RemoveTokensOf(p)
		if len(mt.ActivePlayers()) <= 1 {
			mt.Status = StatusFinished
		}
		return LeftInProgress, nil
	default:
		return 0, ErrMatchWrongStatus
	}
}

// SetupReady marks p ready to start.
func (mt *Match) SetupReady(p PlayerID) error {
	if mt.Status != StatusSetup {
		return ErrMatchWrongStatus
	}
	seat := mt.Seat(p)
	if seat == nil {
		return ErrNotInMatch
	}
	if seat.SetupReady {
		return ErrAlreadyReady
	}
	seat.SetupReady = true
	return nil
}

// ReadyToStart reports whether every seat is filled and ready.
func (mt *Match) ReadyToStart() bool {
	if mt.Status != StatusSetup || len(mt.Seats) != mt.Capacity {
		return false
	}
	for _, s := range mt.Seats {
		if !s.SetupReady {
			return false
		}
	}
	return true
}

// Start moves the match to Playing. Countries are assigned in seat order and
// every player receives the loadout in their reserve. Returns turn 1.
func (mt *Match) Start(m *Map, cat *Catalog, loadout []LoadoutEntry) (*TurnState, error) {
	if !mt.ReadyToStart() {
		return nil, ErrMatchWrongStatus
	}
	if m.ID != mt.Map {
		return nil, fmt.Errorf("match %s is played on map %s, not %s", mt.ID, mt.Map, m.ID)
	}
	countries := m.Countries()
	if len(countries) < len(mt.Seats) {
		return nil, fmt.Errorf("map %s has %d countries for %d seats", m.ID, len(countries), len(mt.Seats))
	}
	for _, e := range loadout {
		if cat.TokenType(e.Type) == nil {
			return nil, fmt.Errorf("loadout references unknown token type %d", e.Type)
		}
	}

	ts := &TurnState{Number: 1, NextTokenID: 1}
	for i := range mt.Seats {
		c := countries[i]
		mt.Seats[i].Country = c.ID
		ts.Players = append(ts.Players, PlayerTurn{Player: mt.Seats[i].Player, Country: c.ID})
		for _, e := range loadout {
			for n := 0; n < e.Count; n++ {
				ts.AddToken(e.Type, mt.Seats[i].Player, c.Reserve, true)
			}
		}
	}
	ts.UpdateStrength(cat)
	mt.Status = StatusPlaying
	return ts, nil
}

// SetReady marks p's current turn as ready.
func (mt *Match) SetReady(p PlayerID, ts *TurnState) error {
	if !mt.InProgress() {
		return ErrMatchWrongStatus
	}
	seat := mt.Seat(p)
	pt := ts.Player(p)
	if seat == nil || pt == nil {
		return ErrNotInMatch
	}
	if !seat.Active() || !pt.Active() {
		return ErrPlayerInactive
	}
	if pt.Ready {
		return ErrAlreadyReady
	}
	pt.Ready = true
	return nil
}

// AllReady reports whether the current turn should be resolved: the match is
// Playing and every active player is ready. A paused match never advances.
func (mt *Match) AllReady(ts *TurnState) bool {
	if mt.Status != StatusPlaying || ts == nil {
		return false
	}
	for i := range mt.Seats {
		if !mt.Seats[i].Active() {
			continue
		}
		pt := ts.Player(mt.Seats[i].Player)
		if pt == nil || !pt.Ready {
			return false
		}
	}
	return true
}

// CanAcceptCommands checks that p may queue another command on turn ts.
// queued is the number already queued and limit the per-turn quota.
func (mt *Match) CanAcceptCommands(p PlayerID, ts *TurnState, queued, limit int) error {
	if !mt.InProgress() {
		return &CommandError{CommandWrongPhase, "match is not in progress"}
	}
	seat := mt.Seat(p)
	pt := ts.Player(p)
	if seat == nil || pt == nil || !seat.Active() || !pt.Active() {
		return &CommandError{CommandWrongPhase, "player is not active in this match"}
	}
	if pt.Ready {
		return &CommandError{CommandWrongPhase, "player already ended the turn"}
	}
	if queued >= limit {
		return &CommandError{CommandQuotaExceeded, fmt.Sprintf("at most %d commands per turn", limit)}
	}
	return nil
}

// Pause halts turn resolution.
func (mt *Match) Pause(by PlayerID) error {
	if by != mt.Owner {
		return ErrNotOwner
	}
	if mt.Status != StatusPlaying {
		return ErrMatchWrongStatus
	}
	mt.Status = StatusPaused
	return nil
}

// Resume restarts a paused match. The caller should recheck AllReady.
func (mt *Match) Resume(by PlayerID) error {
	if by != mt.Owner {
		return ErrNotOwner
	}
	if mt.Status != StatusPaused {
		return ErrMatchWrongStatus
	}
	mt.Status = StatusPlaying
	return nil
}

// Abort ends a match in progress without a winner.
func (mt *Match) Abort(by PlayerID) error {
	if by != mt.Owner {
		return ErrNotOwner
	}
	if !mt.InProgress() {
		return ErrMatchWrongStatus
	}
	mt.Status = StatusAborted
	return nil
}

// ApplyTurn copies defeats from a resolved turn into the seats and finishes
// the match when resolution says so.
func (mt *Match) ApplyTurn(res *TurnResult) {
	for i := range mt.Seats {
		if pt := res.State.Player(mt.Seats[i].Player); pt != nil && pt.Defeated {
			mt.Seats[i].Defeated = true
		}
	}
	if res.Finished {
		mt.Status = StatusFinished
	}
}
