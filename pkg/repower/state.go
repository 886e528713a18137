package repower

import (
	"slices"
	"sort"
)

// PlayerID identifies a player across turns.
type PlayerID string

// TokenID is the handle of a token within one turn generation.
type TokenID int

// Token is a unit on the board (or in a reserve) during one turn.
type Token struct {
	ID                TokenID
	Type              TokenTypeID
	Owner             PlayerID
	Region            RegionID
	MovedThisTurn     bool
	CanMoveThisTurn   bool
	RetreatedThisDraw bool
}

// PlayerTurn is a player's per-turn record.
type PlayerTurn struct {
	Player        PlayerID
	Country       CountryID
	PowerPoints   int
	TotalStrength int
	Ready         bool
	Defeated      bool
	LeftMatch     bool
}

// Active reports whether the player is still competing.
func (p *PlayerTurn) Active() bool {
	return !p.Defeated && !p.LeftMatch
}

// TurnState is one generation of the board: the players in seat order and
// their tokens in ascending id order. A finalized TurnState is never mutated;
// Advance copies it into the next generation.
type TurnState struct {
	Number      int
	Players     []PlayerTurn
	Tokens      []Token
	NextTokenID TokenID
}

// Clone returns a deep copy of the state.
func (ts *TurnState) Clone() *TurnState {
	return &TurnState{
		Number:      ts.Number,
		Players:     slices.Clone(ts.Players),
		Tokens:      slices.Clone(ts.Tokens),
		NextTokenID: ts.NextTokenID,
	}
}

// Advance returns the next generation: ready flags cleared and every token's
// per-turn flags reset.
func (ts *TurnState) Advance() *TurnState {
	next := ts.Clone()
	next.Number++
	for i := range next.Players {
		next.Players[i].Ready = false
	}
	for i := range next.Tokens {
		t := &next.Tokens[i]
		t.MovedThisTurn = false
		t.CanMoveThisTurn = true
		t.RetreatedThisDraw = false
	}
	return next
}

// Player returns the record for id, or nil.
func (ts *TurnState) Player(id PlayerID) *PlayerTurn {
	for i := range ts.Players {
		if ts.Players[i].Player == id {
			return &ts.Players[i]
		}
	}
	return nil
}

// PlayerByCountry returns the player playing country c, or nil.
func (ts *TurnState) PlayerByCountry(c CountryID) *PlayerTurn {
	for i := range ts.Players {
		if ts.Players[i].Country == c {
			return &ts.Players[i]
		}
	}
	return nil
}

// ActivePlayers returns the ids of players neither defeated nor gone.
func (ts *TurnState) ActivePlayers() []PlayerID {
	var out []PlayerID
	for i := range ts.Players {
		if ts.Players[i].Active() {
			out = append(out, ts.Players[i].Player)
		}
	}
	return out
}

// Token returns the token with the given id, or nil.
func (ts *TurnState) Token(id TokenID) *Token {
	i := sort.Search(len(ts.Tokens), func(i int) bool { return ts.Tokens[i].ID >= id })
	if i < len(ts.Tokens) && ts.Tokens[i].ID == id {
		return &ts.Tokens[i]
	}
	return nil
}

// TokensAt returns the ids of all tokens in region r, ascending.
func (ts *TurnState) TokensAt(r RegionID) []TokenID {
	var out []TokenID
	for i := range ts.Tokens {
		if ts.Tokens[i].Region == r {
			out = append(out, ts.Tokens[i].ID)
		}
	}
	return out
}

// TokensOf returns the ids of all tokens owned by p, ascending.
func (ts *TurnState) TokensOf(p PlayerID) []TokenID {
	var out []TokenID
	for i := range ts.Tokens {
		if ts.Tokens[i].Owner == p {
			out = append(out, ts.Tokens[i].ID)
		}
	}
	return out
}

// AddToken creates a token and returns its id.
func (ts *TurnState) AddToken(typ TokenTypeID, owner PlayerID, region RegionID, canMove bool) TokenID {
	if ts.NextTokenID <= 0 {
		ts.NextTokenID = 1
	}
	id := ts.NextTokenID
	ts.NextTokenID++
	ts.Tokens = append(ts.Tokens, Token{
		ID:              id,
		Type:            typ,
		Owner:           owner,
		Region:          region,
		CanMoveThisTurn: canMove,
	})
	return id
}

// RemoveToken deletes a token. Unknown ids are ignored.
func (ts *TurnState) RemoveToken(id TokenID) {
	ts.Tokens = slices.DeleteFunc(ts.Tokens, func(t Token) bool { return t.ID == id })
}

// RemoveTokensOf deletes every token owned by p.
func (ts *TurnState) RemoveTokensOf(p PlayerID) {
	ts.Tokens = slices.DeleteFunc(ts.Tokens, func(t Token) bool { return t.Owner == p })
}

// UpdateStrength recomputes every player's TotalStrength.
func (ts *TurnState) UpdateStrength(cat *Catalog) {
	for i := range ts.Players {
		ts.Players[i].TotalStrength = 0
	}
	for _, t := range ts.Tokens {
		p := ts.Player(t.Owner)
		tt := cat.TokenType(t.Type)
		if p != nil && tt != nil {
			p.TotalStrength += tt.Strength
		}
	}
}
