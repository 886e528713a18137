package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
	"github.com/freeeve/repower/pkg/repower"
)

var (
	ErrInvalidCommand  = errors.New("invalid command")
	ErrCommandNotFound = errors.New("command not found")
)

// CommandSpec is a command as submitted by a player. Which fields matter
// depends on Type.
type CommandSpec struct {
	Type            string `json:"type"`
	Source          int    `json:"source"`
	Destination     int    `json:"destination"`
	TokenType       int    `json:"token_type"`
	Conversion      int    `json:"conversion"`
	ValueConversion int    `json:"value_conversion"`
}

// CommandService queues and withdraws commands for the turn being played.
type CommandService struct {
	turns *TurnService
	cache repository.MatchCache
}

// NewCommandService creates a CommandService sharing the match locks of turns.
func NewCommandService(turns *TurnService, cache repository.MatchCache) *CommandService {
	return &CommandService{turns: turns, cache: cache}
}

// rejectCommand marks an engine rejection as ErrInvalidCommand while keeping
// the *repower.CommandError reachable through errors.As.
func rejectCommand(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
}

// SubmitCommand validates spec and appends it to playerID's queue for the
// current turn.
func (s *CommandService) SubmitCommand(ctx context.Context, matchID, playerID string, spec CommandSpec) (*model.Command, error) {
	mu := s.turns.locks.Get(matchID)
	mu.RLock()
	defer mu.RUnlock()

	_, mt, m, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	limit := s.turns.opts.Rules.CommandsPerTurn
	if !mt.InProgress() {
		return nil, rejectCommand(mt.CanAcceptCommands(repower.PlayerID(playerID), nil, 0, limit))
	}
	turn, ts, err := s.turns.loadTurn(ctx, matchID)
	if err != nil {
		return nil, err
	}
	queued, err := s.cache.Commands(ctx, matchID, playerID)
	if err != nil {
		return nil, err
	}
	if err := mt.CanAcceptCommands(repower.PlayerID(playerID), ts, len(queued), limit); err != nil {
		return nil, rejectCommand(err)
	}

	cmd := repower.Command{
		Player:          repower.PlayerID(playerID),
		Type:            repower.CommandType(spec.Type),
		Source:          repower.RegionID(spec.Source),
		Destination:     repower.RegionID(spec.Destination),
		TokenType:       repower.TokenTypeID(spec.TokenType),
		Conversion:      repower.ConversionID(spec.Conversion),
		ValueConversion: spec.ValueConversion,
	}
	if err := repower.CheckCommand(cmd, m, mt.Map, s.turns.catalog, len(queued), limit); err != nil {
		return nil, rejectCommand(err)
	}

	mc := model.Command{
		ID:              uuid.NewString(),
		TurnID:          turn.ID,
		PlayerID:        playerID,
		Order:           len(queued),
		Type:            spec.Type,
		Source:          spec.Source,
		Destination:     spec.Destination,
		TokenType:       spec.TokenType,
		Conversion:      spec.Conversion,
		ValueConversion: spec.ValueConversion,
		Valid:           string(repower.Unresolved),
		Description:     cmd.Describe(m, s.turns.catalog),
		CreatedAt:       time.Now().UTC(),
	}
	payload, err := json.Marshal(mc)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	n, err := s.cache.PushCommand(ctx, matchID, playerID, payload)
	if err != nil {
		return nil, err
	}
	// A concurrent submission by the same player may have filled the quota
	// between the count and the push.
	if int(n) > limit {
		if err := s.cache.RemoveCommand(ctx, matchID, playerID, payload); err != nil {
			log.Error().Err(err).Str("matchId", matchID).Str("playerId", playerID).Msg("Failed to drop command over quota")
		}
		return nil, rejectCommand(&repower.CommandError{
			Kind:    repower.CommandQuotaExceeded,
			Message: fmt.Sprintf("at most %d commands per turn", limit),
		})
	}
	mc.Order = int(n) - 1

	log.Debug().Str("matchId", matchID).Str("playerId", playerID).
		Int("order", mc.Order).Str("command", mc.Description).Msg("Command queued")
	return &mc, nil
}

// WithdrawCommand removes the command at order from playerID's queue. Later
// commands move up one place.
func (s *CommandService) WithdrawCommand(ctx context.Context, matchID, playerID string, order int) error {
	mu := s.turns.locks.Get(matchID)
	mu.RLock()
	defer mu.RUnlock()

	_, mt, _, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !mt.InProgress() {
		return rejectCommand(mt.CanAcceptCommands(repower.PlayerID(playerID), nil, 0, 1))
	}
	_, ts, err := s.turns.loadTurn(ctx, matchID)
	if err != nil {
		return err
	}
	// A player who ended the turn can no longer change it.
	if err := mt.CanAcceptCommands(repower.PlayerID(playerID), ts, 0, 1); err != nil {
		return rejectCommand(err)
	}

	queued, err := s.cache.Commands(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if order < 0 || order >= len(queued) {
		return ErrCommandNotFound
	}
	return s.cache.RemoveCommandAt(ctx, matchID, playerID, order)
}

// ListCommands returns playerID's queued commands for the current turn in
// execution order.
func (s *CommandService) ListCommands(ctx context.Context, matchID, playerID string) ([]model.Command, error) {
	mu := s.turns.locks.Get(matchID)
	mu.RLock()
	defer mu.RUnlock()

	queued, err := s.cache.Commands(ctx, matchID, playerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Command, 0, len(queued))
	for i, raw := range queued {
		var c model.Command
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("unmarshal command %d: %w", i, err)
		}
		c.Order = i
		out = append(out, c)
	}
	return out, nil
}
