package repower

// movableToken returns the lowest-id token of player p and type typ at
// region r that may still move this turn.
func (ts *TurnState) movableToken(p PlayerID, typ TokenTypeID, r RegionID) *Token {
	for i := range ts.Tokens {
		t := &ts.Tokens[i]
		if t.Owner == p && t.Type == typ && t.Region == r && t.CanMoveThisTurn {
			return t
		}
	}
	return nil
}

// conversionVictims picks n tokens of player p and type typ at region r to
// consume. Spent tokens go first, then mobile ones, each in ascending id.
// Returns nil when fewer than n are available.
func (ts *TurnState) conversionVictims(p PlayerID, typ TokenTypeID, r RegionID, n int) []TokenID {
	var spent, mobile []TokenID
	for _, t := range ts.Tokens {
		if t.Owner != p || t.Type != typ || t.Region != r {
			continue
		}
		if t.CanMoveThisTurn {
			mobile = append(mobile, t.ID)
		} else {
			spent = append(spent, t.ID)
		}
	}
	if len(spent)+len(mobile) < n {
		return nil
	}
	return append(spent, mobile...)[:n]
}

// CommandValid reports whether cmd can be executed against the current state.
// It does not modify the state.
func (ts *TurnState) CommandValid(cmd *Command, m *Map, matchMap MapID, cat *Catalog) bool {
	player := ts.Player(cmd.Player)
	if player == nil || !player.Active() || m.Country(player.Country) == nil {
		return false
	}
	switch cmd.Type {
	case CommandMove:
		tt := cat.TokenType(cmd.TokenType)
		if tt == nil || ts.movableToken(cmd.Player, cmd.TokenType, cmd.Source) == nil {
			return false
		}
		return m.CanReach(tt, matchMap, cmd.Source, cmd.Destination)
	case CommandPurchase:
		tt := cat.TokenType(cmd.TokenType)
		return tt != nil && tt.Purchasable && tt.Strength <= player.PowerPoints
	case CommandConvert:
		cv := cat.Conversion(cmd.Conversion)
		if cv == nil {
			return false
		}
		return ts.conversionVictims(cmd.Player, cv.Needs, cmd.Source, cv.NeedsQuantity) != nil
	default:
		return false
	}
}

// ApplyCommand executes a command previously judged valid.
func (ts *TurnState) ApplyCommand(cmd *Command, m *Map, cat *Catalog) {
	player := ts.Player(cmd.Player)
	country := m.Country(player.Country)

	switch cmd.Type {
	case CommandMove:
		t := ts.movableToken(cmd.Player, cmd.TokenType, cmd.Source)
		t.Region = cmd.Destination
		t.MovedThisTurn = true
		// Deploying from the reserve does not spend the token's move.
		t.CanMoveThisTurn = cmd.Source == country.Reserve && cmd.Destination == country.Headquarters
	case CommandPurchase:
		tt := cat.TokenType(cmd.TokenType)
		player.PowerPoints -= tt.Strength
		ts.AddToken(tt.ID, cmd.Player, country.Reserve, true)
	case CommandConvert:
		cv := cat.Conversion(cmd.Conversion)
		for _, id := range ts.conversionVictims(cmd.Player, cv.Needs, cmd.Source, cv.NeedsQuantity) {
			ts.RemoveToken(id)
		}
		for i := 0; i < cv.ProducesQuantity; i++ {
			ts.AddToken(cv.Produces, cmd.Player, cmd.Source, cmd.Source == country.Reserve)
		}
	}
}

// ExecuteCommands replays one player's commands in ascending order, recording
// each outcome in Valid. Commands are expected sorted by Order. It returns
// whether any command was valid.
func (ts *TurnState) ExecuteCommands(cmds []*Command, m *Map, matchMap MapID, cat *Catalog) bool {
	anyValid := false
	for _, cmd := range cmds {
		if ts.CommandValid(cmd, m, matchMap, cat) {
			cmd.Valid = Valid
			anyValid = true
			ts.ApplyCommand(cmd, m, cat)
		} else {
			cmd.Valid = Invalid
		}
	}
	return anyValid
}
