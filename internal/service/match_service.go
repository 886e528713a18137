package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
	"github.com/freeeve/repower/pkg/repower"
)

var ErrNameRequired = errors.New("match name is required")

// MatchService handles the match lifecycle: setup, start, departures and
// the owner's controls.
type MatchService struct {
	matchRepo repository.MatchRepository
	turnRepo  repository.TurnRepository
	cache     repository.MatchCache
	turns     *TurnService
	loadout   []repower.LoadoutEntry
}

// NewMatchService creates a MatchService. It shares the locks, notifier
// and broadcaster of turns.
func NewMatchService(
	matchRepo repository.MatchRepository,
	turnRepo repository.TurnRepository,
	cache repository.MatchCache,
	turns *TurnService,
) *MatchService {
	return &MatchService{
		matchRepo: matchRepo,
		turnRepo:  turnRepo,
		cache:     cache,
		turns:     turns,
		loadout:   repower.DefaultLoadout(),
	}
}

// CreateMatch creates a match in setup on mapID with the owner seated.
// An empty mapID picks the Alpha board.
func (s *MatchService) CreateMatch(ctx context.Context, name, ownerID, mapID string) (*model.Match, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if mapID == "" {
		mapID = string(repower.AlphaMapID)
	}
	m, ok := repower.MapByID(repower.MapID(mapID))
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMap, mapID)
	}
	mm, err := s.matchRepo.Create(ctx, name, ownerID, string(m.ID), m.Seats())
	if err != nil {
		return nil, err
	}
	log.Info().Str("matchId", mm.ID).Str("ownerId", ownerID).Str("map", mapID).Msg("Match created")
	return mm, nil
}

// GetMatch returns a match userID may look at.
func (s *MatchService) GetMatch(ctx context.Context, matchID, userID string) (*model.Match, error) {
	return s.turns.visibleMatch(ctx, matchID, userID)
}

// ListMatches returns public matches and the matches userID sits in.
func (s *MatchService) ListMatches(ctx context.Context, userID string) ([]model.Match, error) {
	return s.matchRepo.ListVisible(ctx, userID)
}

// update loads a match under its write lock, applies fn to the rules view
// and saves the result.
func (s *MatchService) update(ctx context.Context, matchID string, fn func(*repower.Match) error) (*model.Match, error) {
	mu := s.turns.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()

	mm, mt, _, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := fn(mt); err != nil {
		return nil, err
	}
	applyEngineMatch(mm, mt)
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return nil, fmt.Errorf("save match: %w", err)
	}
	return mm, nil
}

// JoinMatch seats userID in a match in setup.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, userID string) (*model.Match, error) {
	mm, err := s.update(ctx, matchID, func(mt *repower.Match) error {
		return mt.Join(repower.PlayerID(userID))
	})
	if err != nil {
		return nil, err
	}
	s.turns.broadcaster.BroadcastMatchEvent(matchID, "player_joined", map[string]any{"player_id": userID})
	return mm, nil
}

// KickPlayer removes playerID from a match in setup on behalf of the owner.
func (s *MatchService) KickPlayer(ctx context.Context, matchID, by, playerID string) error {
	mm, err := s.update(ctx, matchID, func(mt *repower.Match) error {
		return mt.Kick(repower.PlayerID(by), repower.PlayerID(playerID))
	})
	if err != nil {
		return err
	}
	s.turns.notifier.Notify(ctx, playerID, fmt.Sprintf("You were removed from %s", mm.Name), mm.ID)
	s.turns.broadcaster.BroadcastMatchEvent(matchID, "player_left", map[string]any{"player_id": playerID, "kicked": true})
	return nil
}

// SetPublic changes the visibility of a match in setup.
func (s *MatchService) SetPublic(ctx context.Context, matchID, by string, public bool) (*model.Match, error) {
	return s.update(ctx, matchID, func(mt *repower.Match) error {
		return mt.SetPublic(repower.PlayerID(by), public)
	})
}

// Ready marks userID ready. In setup it is the start vote and the match
// starts once every seat is filled and ready. In progress it ends the
// player's turn.
func (s *MatchService) Ready(ctx context.Context, matchID, userID string) error {
	mm, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("find match: %w", err)
	}
	if mm == nil {
		return ErrMatchNotFound
	}
	if mm.Status != string(repower.StatusSetup) {
		return s.turns.SetReady(ctx, matchID, userID)
	}
	return s.setupReady(ctx, matchID, userID)
}

func (s *MatchService) setupReady(ctx context.Context, matchID, userID string) error {
	mu := s.turns.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()

	mm, mt, m, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if err := mt.SetupReady(repower.PlayerID(userID)); err != nil {
		return err
	}
	if !mt.ReadyToStart() {
		applyEngineMatch(mm, mt)
		if err := s.matchRepo.Save(ctx, mm); err != nil {
			return fmt.Errorf("save match: %w", err)
		}
		s.turns.broadcaster.BroadcastMatchEvent(matchID, "player_ready", map[string]any{"player_id": userID})
		return nil
	}
	return s.start(ctx, mm, mt, m)
}

// start moves a fully ready match to Playing and opens turn 1.
func (s *MatchService) start(ctx context.Context, mm *model.Match, mt *repower.Match, m *repower.Map) error {
	ts, err := mt.Start(m, s.turns.catalog, s.loadout)
	if err != nil {
		return fmt.Errorf("start match: %w", err)
	}
	state, err := encodeState(ts)
	if err != nil {
		return err
	}

	applyEngineMatch(mm, mt)
	now := time.Now().UTC()
	mm.StartedAt = &now
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	if _, err := s.turnRepo.CreateTurn(ctx, mm.ID, ts.Number, state); err != nil {
		return fmt.Errorf("create first turn: %w", err)
	}
	if err := s.cache.SetTurnState(ctx, mm.ID, state); err != nil {
		return err
	}

	log.Info().Str("matchId", mm.ID).Int("players", len(mm.Players)).Msg("Match started")
	for _, p := range mm.Players {
		s.turns.notifier.Notify(ctx, p.UserID, fmt.Sprintf("%s has started", mm.Name), mm.ID)
	}
	s.turns.broadcaster.BroadcastMatchEvent(mm.ID, "match_started", map[string]any{"turn": ts.Number})
	return nil
}

// LeaveMatch removes userID. In setup the owner leaving aborts the match;
// in progress the player forfeits and the turn may resolve or the match
// may end as a result.
func (s *MatchService) LeaveMatch(ctx context.Context, matchID, userID string) error {
	mu := s.turns.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()

	mm, mt, _, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !mt.InProgress() {
		return s.leaveSetup(ctx, mm, mt, userID)
	}

	turn, ts, err := s.turns.loadTurn(ctx, matchID)
	if err != nil {
		return err
	}
	if _, err := mt.Leave(repower.PlayerID(userID), ts); err != nil {
		return err
	}
	ts.UpdateStrength(s.turns.catalog)
	state, err := encodeState(ts)
	if err != nil {
		return err
	}
	if err := s.turnRepo.UpdateState(ctx, turn.ID, state); err != nil {
		return fmt.Errorf("update turn state: %w", err)
	}
	if err := s.cache.SetTurnState(ctx, matchID, state); err != nil {
		return err
	}
	if err := s.cache.MarkReady(ctx, matchID, userID); err != nil {
		return err
	}

	applyEngineMatch(mm, mt)
	finished := mt.Status == repower.StatusFinished
	if finished {
		now := time.Now().UTC()
		mm.Winners = playerStrings(mt.ActivePlayers())
		mm.FinishedAt = &now
	}
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	log.Info().Str("matchId", matchID).Str("playerId", userID).Bool("finished", finished).Msg("Player left match")
	s.turns.broadcaster.BroadcastMatchEvent(matchID, "player_left", map[string]any{"player_id": userID})

	if finished {
		if err := s.cache.DeleteMatchData(ctx, matchID, seatedPlayers(mm)); err != nil {
			return err
		}
		s.turns.notifyFinished(ctx, mm)
		s.turns.broadcaster.BroadcastMatchEvent(matchID, "match_finished", map[string]any{"winners": mm.Winners})
		return nil
	}
	s.turns.notifyActive(ctx, mm, fmt.Sprintf("%s left %s", userID, mm.Name))
	return s.turns.advanceLocked(ctx, matchID)
}

func (s *MatchService) leaveSetup(ctx context.Context, mm *model.Match, mt *repower.Match, userID string) error {
	players := seatedPlayers(mm)
	outcome, err := mt.Leave(repower.PlayerID(userID), nil)
	if err != nil {
		return err
	}
	applyEngineMatch(mm, mt)
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	if outcome == repower.AbortedSetup {
		log.Info().Str("matchId", mm.ID).Msg("Owner left, match aborted during setup")
		for _, p := range players {
			if p != userID {
				s.turns.notifier.Notify(ctx, p, fmt.Sprintf("%s was cancelled by its owner", mm.Name), mm.ID)
			}
		}
		s.turns.broadcaster.BroadcastMatchEvent(mm.ID, "match_aborted", nil)
		return nil
	}
	s.turns.broadcaster.BroadcastMatchEvent(mm.ID, "player_left", map[string]any{"player_id": userID})
	return nil
}

// PauseMatch halts turn resolution on behalf of the owner.
func (s *MatchService) PauseMatch(ctx context.Context, matchID, by string) error {
	mm, err := s.update(ctx, matchID, func(mt *repower.Match) error {
		return mt.Pause(repower.PlayerID(by))
	})
	if err != nil {
		return err
	}
	s.turns.notifyActive(ctx, mm, fmt.Sprintf("%s is paused", mm.Name))
	s.turns.broadcaster.BroadcastMatchEvent(matchID, "match_paused", nil)
	return nil
}

// ResumeMatch restarts a paused match. Turns whose players all became ready
// during the pause resolve immediately.
func (s *MatchService) ResumeMatch(ctx context.Context, matchID, by string) error {
	mu := s.turns.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()

	mm, mt, _, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if err := mt.Resume(repower.PlayerID(by)); err != nil {
		return err
	}
	applyEngineMatch(mm, mt)
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	s.turns.notifyActive(ctx, mm, fmt.Sprintf("%s has resumed", mm.Name))
	s.turns.broadcaster.BroadcastMatchEvent(matchID, "match_resumed", nil)
	return s.turns.advanceLocked(ctx, matchID)
}

// AbortMatch ends a match in progress without a winner.
func (s *MatchService) AbortMatch(ctx context.Context, matchID, by string) error {
	mu := s.turns.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()

	mm, mt, _, err := s.turns.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if err := mt.Abort(repower.PlayerID(by)); err != nil {
		return err
	}
	applyEngineMatch(mm, mt)
	now := time.Now().UTC()
	mm.FinishedAt = &now
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	if err := s.cache.DeleteMatchData(ctx, matchID, seatedPlayers(mm)); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to clear cached match data")
	}
	log.Info().Str("matchId", matchID).Str("by", by).Msg("Match aborted")
	s.turns.notifyActive(ctx, mm, fmt.Sprintf("%s was aborted", mm.Name))
	s.turns.broadcaster.BroadcastMatchEvent(matchID, "match_aborted", nil)
	return nil
}

