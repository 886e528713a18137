package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/pkg/repower"
)

// toEngineMatch builds the rules view of a stored match.
func toEngineMatch(mm *model.Match) *repower.Match {
	mt := &repower.Match{
		ID:       mm.ID,
		Name:     mm.Name,
		Owner:    repower.PlayerID(mm.OwnerID),
		Map:      repower.MapID(mm.MapID),
		Capacity: mm.Capacity,
		Status:   repower.MatchStatus(mm.Status),
		Public:   mm.Public,
	}
	for _, p := range mm.Players {
		mt.Seats = append(mt.Seats, repower.Seat{
			Player:     repower.PlayerID(p.UserID),
			SetupReady: p.SetupReady,
			Country:    repower.CountryID(p.Country),
			Defeated:   p.Defeated,
			LeftMatch:  p.LeftMatch,
		})
	}
	return mt
}

// applyEngineMatch copies status, visibility and seats back onto the stored
// match. Join times of existing seats are preserved.
func applyEngineMatch(mm *model.Match, mt *repower.Match) {
	joined := make(map[string]time.Time, len(mm.Players))
	for _, p := range mm.Players {
		joined[p.UserID] = p.JoinedAt
	}
	mm.Status = string(mt.Status)
	mm.Public = mt.Public
	mm.Players = mm.Players[:0]
	for i, s := range mt.Seats {
		at, ok := joined[string(s.Player)]
		if !ok {
			at = time.Now().UTC()
		}
		mm.Players = append(mm.Players, model.MatchPlayer{
			MatchID:    mm.ID,
			UserID:     string(s.Player),
			Seat:       i,
			Country:    int(s.Country),
			SetupReady: s.SetupReady,
			Defeated:   s.Defeated,
			LeftMatch:  s.LeftMatch,
			JoinedAt:   at,
		})
	}
}

func seatedPlayers(mm *model.Match) []string {
	out := make([]string, len(mm.Players))
	for i, p := range mm.Players {
		out[i] = p.UserID
	}
	return out
}

func playerStrings(ids []repower.PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func decodeState(raw json.RawMessage) (*repower.TurnState, error) {
	var ts repower.TurnState
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, fmt.Errorf("unmarshal turn state: %w", err)
	}
	return &ts, nil
}

func encodeState(ts *repower.TurnState) (json.RawMessage, error) {
	data, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("marshal turn state: %w", err)
	}
	return data, nil
}

// toEngineCommand converts a queued command. The queue position is the order.
func toEngineCommand(c model.Command, order int) repower.Command {
	return repower.Command{
		ID:              c.ID,
		Player:          repower.PlayerID(c.PlayerID),
		Order:           order,
		Type:            repower.CommandType(c.Type),
		Source:          repower.RegionID(c.Source),
		Destination:     repower.RegionID(c.Destination),
		TokenType:       repower.TokenTypeID(c.TokenType),
		Conversion:      repower.ConversionID(c.Conversion),
		ValueConversion: c.ValueConversion,
		Valid:           repower.Unresolved,
	}
}

// decodeQueues turns the raw per-player queues into engine commands.
func decodeQueues(raw map[string][]json.RawMessage) (map[repower.PlayerID][]repower.Command, error) {
	out := make(map[repower.PlayerID][]repower.Command, len(raw))
	for player, items := range raw {
		for i, item := range items {
			var c model.Command
			if err := json.Unmarshal(item, &c); err != nil {
				return nil, fmt.Errorf("unmarshal command %d of %s: %w", i, player, err)
			}
			c.PlayerID = player
			out[repower.PlayerID(player)] = append(out[repower.PlayerID(player)], toEngineCommand(c, i))
		}
	}
	return out, nil
}

func commandToModel(turnID string, c repower.Command, m *repower.Map, cat *repower.Catalog) model.Command {
	return model.Command{
		ID:              c.ID,
		TurnID:          turnID,
		PlayerID:        string(c.Player),
		Order:           c.Order,
		Type:            string(c.Type),
		Source:          int(c.Source),
		Destination:     int(c.Destination),
		TokenType:       int(c.TokenType),
		Conversion:      int(c.Conversion),
		ValueConversion: c.ValueConversion,
		Valid:           string(c.Valid),
		RevertedInDraw:  c.RevertedInDraw,
		Description:     c.Describe(m, cat),
	}
}

func battleToModel(turnID string, b repower.Battle) model.Battle {
	mb := model.Battle{
		TurnID: turnID,
		Region: int(b.Region),
		Step:   b.Step,
		Winner: string(b.Winner),
	}
	for _, id := range b.Winning {
		mb.Winning = append(mb.Winning, int(id))
	}
	for _, id := range b.Captured {
		mb.Captured = append(mb.Captured, int(id))
	}
	return mb
}

func regionInts(ids []repower.RegionID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
