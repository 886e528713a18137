package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/internal/logger"
	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
	"github.com/freeeve/repower/pkg/repower"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrTurnNotFound  = errors.New("turn not found")
	ErrUnknownMap    = errors.New("unknown map")
)

// TurnOptions tune turn resolution.
type TurnOptions struct {
	Rules config.Rules
	// ResolveLockTTL bounds how long another instance waits on a crashed
	// resolver before it may take over.
	ResolveLockTTL time.Duration
}

// TurnService owns the live turn of every match: readiness, resolution and
// the history queries.
type TurnService struct {
	matchRepo   repository.MatchRepository
	turnRepo    repository.TurnRepository
	cache       repository.MatchCache
	broadcaster Broadcaster
	notifier    Notifier
	catalog     *repower.Catalog
	opts        TurnOptions

	locks MatchLocks
}

// NewTurnService creates a TurnService. A nil broadcaster or notifier
// disables that channel.
func NewTurnService(
	matchRepo repository.MatchRepository,
	turnRepo repository.TurnRepository,
	cache repository.MatchCache,
	opts TurnOptions,
	broadcaster Broadcaster,
	notifier Notifier,
) *TurnService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if opts.Rules.CommandsPerTurn <= 0 {
		opts.Rules.CommandsPerTurn = 5
	}
	if opts.Rules.MaxBattleIterations <= 0 {
		opts.Rules.MaxBattleIterations = repower.DefaultMaxBattleIterations
	}
	if opts.ResolveLockTTL <= 0 {
		opts.ResolveLockTTL = 30 * time.Second
	}
	return &TurnService{
		matchRepo:   matchRepo,
		turnRepo:    turnRepo,
		cache:       cache,
		broadcaster: broadcaster,
		notifier:    notifier,
		catalog:     repower.StandardCatalog(),
		opts:        opts,
	}
}

// TurnView is the current turn as seen by a player.
type TurnView struct {
	model.Turn
	State json.RawMessage `json:"state"`
	Ready []string        `json:"ready"`
}

// loadMatch returns the stored match, its rules view and its map.
func (s *TurnService) loadMatch(ctx context.Context, matchID string) (*model.Match, *repower.Match, *repower.Map, error) {
	mm, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find match: %w", err)
	}
	if mm == nil {
		return nil, nil, nil, ErrMatchNotFound
	}
	m, ok := repower.MapByID(repower.MapID(mm.MapID))
	if !ok {
		return nil, nil, nil, fmt.Errorf("match %s: %w %q", mm.ID, ErrUnknownMap, mm.MapID)
	}
	return mm, toEngineMatch(mm), m, nil
}

// loadTurn returns the current turn and its live state with the ready set
// applied. The cached board wins unless it belongs to another turn.
func (s *TurnService) loadTurn(ctx context.Context, matchID string) (*model.Turn, *repower.TurnState, error) {
	turn, err := s.turnRepo.CurrentTurn(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("current turn: %w", err)
	}
	if turn == nil {
		return nil, nil, ErrTurnNotFound
	}

	raw, err := s.cache.GetTurnState(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	var ts *repower.TurnState
	if raw != nil {
		if ts, err = decodeState(raw); err != nil {
			return nil, nil, err
		}
	}
	if ts == nil || ts.Number != turn.Number {
		if ts, err = decodeState(turn.StateBefore); err != nil {
			return nil, nil, err
		}
	}

	ready, err := s.cache.ReadyPlayers(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range ready {
		if pt := ts.Player(repower.PlayerID(p)); pt != nil {
			pt.Ready = true
		}
	}
	return turn, ts, nil
}

// SetReady ends playerID's current turn. When every active player is
// ready the turn is resolved before SetReady returns.
func (s *TurnService) SetReady(ctx context.Context, matchID, playerID string) error {
	mu := s.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()

	_, mt, _, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !mt.InProgress() {
		return repower.ErrMatchWrongStatus
	}
	_, ts, err := s.loadTurn(ctx, matchID)
	if err != nil {
		return err
	}
	if err := mt.SetReady(repower.PlayerID(playerID), ts); err != nil {
		return err
	}
	if err := s.cache.MarkReady(ctx, matchID, playerID); err != nil {
		return err
	}
	// Other instances learn about the ready player (and relay it to their
	// websocket clients) through the ready channel.
	if err := s.cache.PublishReady(ctx, matchID, playerID); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to publish ready event")
	}

	return s.advanceLocked(ctx, matchID)
}

// AdvanceIfReady resolves the current turn of matchID if every active
// player is ready. It is a no-op otherwise.
func (s *TurnService) AdvanceIfReady(ctx context.Context, matchID string) error {
	mu := s.locks.Get(matchID)
	mu.Lock()
	defer mu.Unlock()
	return s.advanceLocked(ctx, matchID)
}

// advanceLocked runs a turn under the cross-instance resolve lock. The
// caller holds the match write lock.
func (s *TurnService) advanceLocked(ctx context.Context, matchID string) error {
	owner := uuid.NewString()
	ok, err := s.cache.AcquireResolveLock(ctx, matchID, owner, s.opts.ResolveLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Str("matchId", matchID).Msg("Turn resolution already running elsewhere")
		return nil
	}
	defer func() {
		if err := s.cache.ReleaseResolveLock(context.WithoutCancel(ctx), matchID, owner); err != nil {
			log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to release resolve lock")
		}
	}()

	mm, mt, m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if mt.Status != repower.StatusPlaying {
		return nil
	}
	turn, ts, err := s.loadTurn(ctx, matchID)
	if err != nil {
		return err
	}
	if !mt.AllReady(ts) {
		return nil
	}
	return s.resolve(ctx, mm, mt, m, turn, ts)
}

// resolve processes the frozen commands of turn, persists the outcome and
// opens the next turn. Nothing is written when processing fails.
func (s *TurnService) resolve(ctx context.Context, mm *model.Match, mt *repower.Match, m *repower.Map, turn *model.Turn, ts *repower.TurnState) error {
	l := logger.ForMatch(ctx, mm.ID)
	l.Info().Int("turn", turn.Number).Msg("Resolving turn")

	raw, err := s.cache.AllCommands(ctx, mm.ID, seatedPlayers(mm))
	if err != nil {
		return err
	}
	queued, err := decodeQueues(raw)
	if err != nil {
		return err
	}

	res, err := repower.ProcessTurn(ts, queued, m, s.catalog, repower.TurnConfig{
		MaxBattleIterations: s.opts.Rules.MaxBattleIterations,
	})
	if err != nil {
		var rerr *repower.ResolutionError
		if errors.As(err, &rerr) {
			l.Error().Err(err).Int("turn", turn.Number).Int("iterations", rerr.Iterations).
				Ints("regions", regionInts(rerr.Regions)).Msg("Battle resolution did not converge")
		}
		return fmt.Errorf("process turn %d: %w", turn.Number, err)
	}
	mt.ApplyTurn(res)

	stateAfter, err := encodeState(res.State)
	if err != nil {
		return err
	}
	resolution := repository.TurnResolution{
		TurnID:     turn.ID,
		MatchID:    mm.ID,
		StateAfter: stateAfter,
		Report:     res.Report(m, s.catalog),
		NextNumber: res.State.Number,
	}
	for _, c := range res.Commands {
		resolution.Commands = append(resolution.Commands, commandToModel(turn.ID, c, m, s.catalog))
	}
	for _, b := range res.Battles {
		resolution.Battles = append(resolution.Battles, battleToModel(turn.ID, b))
	}
	next, err := s.turnRepo.ResolveTurn(ctx, resolution)
	if err != nil {
		return fmt.Errorf("resolve turn: %w", err)
	}

	applyEngineMatch(mm, mt)
	if res.Finished {
		now := time.Now().UTC()
		mm.Winners = playerStrings(res.Winners)
		mm.FinishedAt = &now
	}
	if err := s.matchRepo.Save(ctx, mm); err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	players := seatedPlayers(mm)
	if res.Finished {
		if err := s.cache.DeleteMatchData(ctx, mm.ID, players); err != nil {
			return err
		}
	} else {
		if err := s.cache.ClearTurnData(ctx, mm.ID, players); err != nil {
			return err
		}
		if err := s.cache.SetTurnState(ctx, mm.ID, next.StateBefore); err != nil {
			return err
		}
	}

	l.Info().Int("turn", turn.Number).Int("commands", len(res.Commands)).
		Int("battles", len(res.Battles)).Bool("finished", res.Finished).
		Msg("Turn resolved")

	s.notifyEvents(ctx, mm, res.Events)
	if !res.Finished {
		s.notifyActive(ctx, mm, fmt.Sprintf("New turn %d in %s", next.Number, mm.Name))
	}
	s.broadcaster.BroadcastMatchEvent(mm.ID, "turn_resolved", map[string]any{
		"turn":      turn.Number,
		"next_turn": next.Number,
	})
	if res.Finished {
		s.broadcaster.BroadcastMatchEvent(mm.ID, "match_finished", map[string]any{
			"winners": mm.Winners,
		})
	}
	return nil
}

// notifyEvents tells the players involved about captures, defeats, missile
// strikes and the end of the match.
func (s *TurnService) notifyEvents(ctx context.Context, mm *model.Match, events []repower.Event) {
	for _, e := range events {
		switch e.Kind {
		case repower.EventFlagCaptured:
			s.notifier.Notify(ctx, string(e.Player), fmt.Sprintf("Your flag was captured in %s", mm.Name), mm.ID)
			s.notifier.Notify(ctx, string(e.By), fmt.Sprintf("You captured a flag in %s and took %d power points", mm.Name, e.PowerPoints), mm.ID)
		case repower.EventDefeated:
			s.notifier.Notify(ctx, string(e.Player), fmt.Sprintf("You were defeated in %s", mm.Name), mm.ID)
		case repower.EventMissileStrike:
			s.notifier.Notify(ctx, string(e.Player), fmt.Sprintf("A missile drained %d power points from you in %s", e.PowerPoints, mm.Name), mm.ID)
			s.notifier.Notify(ctx, string(e.By), fmt.Sprintf("Your missile drained %d power points in %s", e.PowerPoints, mm.Name), mm.ID)
		case repower.EventMatchFinished:
			s.notifyFinished(ctx, mm)
		}
	}
}

// notifyActive sends text to every player of mm neither defeated nor gone.
func (s *TurnService) notifyActive(ctx context.Context, mm *model.Match, text string) {
	for _, p := range mm.Players {
		if !p.Defeated && !p.LeftMatch {
			s.notifier.Notify(ctx, p.UserID, text, mm.ID)
		}
	}
}

func (s *TurnService) notifyFinished(ctx context.Context, mm *model.Match) {
	won := make(map[string]bool, len(mm.Winners))
	for _, w := range mm.Winners {
		won[w] = true
	}
	for _, p := range mm.Players {
		text := fmt.Sprintf("%s has finished", mm.Name)
		if won[p.UserID] {
			text = fmt.Sprintf("You won %s", mm.Name)
		}
		s.notifier.Notify(ctx, p.UserID, text, mm.ID)
	}
}

// RecoverMatches rehydrates the live board of every match in progress and
// resolves turns whose players were all ready when the server stopped.
func (s *TurnService) RecoverMatches(ctx context.Context) error {
	matches, err := s.matchRepo.ListByStatus(ctx, string(repower.StatusPlaying), string(repower.StatusPaused))
	if err != nil {
		return fmt.Errorf("list matches in progress: %w", err)
	}
	if len(matches) == 0 {
		log.Info().Msg("No matches to recover")
		return nil
	}
	log.Info().Int("count", len(matches)).Msg("Recovering matches after restart")

	for _, mm := range matches {
		turn, err := s.turnRepo.CurrentTurn(ctx, mm.ID)
		if err != nil {
			log.Error().Err(err).Str("matchId", mm.ID).Msg("Failed to get current turn during recovery")
			continue
		}
		if turn == nil {
			log.Warn().Str("matchId", mm.ID).Msg("Match in progress has no current turn, skipping")
			continue
		}
		if err := s.restoreState(ctx, mm.ID, turn); err != nil {
			log.Error().Err(err).Str("matchId", mm.ID).Msg("Failed to restore turn state")
			continue
		}
		if err := s.AdvanceIfReady(ctx, mm.ID); err != nil {
			log.Error().Err(err).Str("matchId", mm.ID).Msg("Failed to advance recovered match")
			continue
		}
		log.Info().Str("matchId", mm.ID).Int("turn", turn.Number).Msg("Recovered match state")
	}
	return nil
}

// restoreState caches the board of turn unless a board for it is cached.
func (s *TurnService) restoreState(ctx context.Context, matchID string, turn *model.Turn) error {
	raw, err := s.cache.GetTurnState(ctx, matchID)
	if err != nil {
		return err
	}
	if raw != nil {
		if ts, err := decodeState(raw); err == nil && ts.Number == turn.Number {
			return nil
		}
	}
	return s.cache.SetTurnState(ctx, matchID, turn.StateBefore)
}

// visibleMatch loads a match userID may look at. Hidden matches are
// reported as missing.
func (s *TurnService) visibleMatch(ctx context.Context, matchID, userID string) (*model.Match, error) {
	mm, mt, _, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !mt.CanView(repower.PlayerID(userID)) {
		return nil, ErrMatchNotFound
	}
	return mm, nil
}

// CurrentTurn returns the live turn of a match with its ready players.
func (s *TurnService) CurrentTurn(ctx context.Context, matchID, userID string) (*TurnView, error) {
	if _, err := s.visibleMatch(ctx, matchID, userID); err != nil {
		return nil, err
	}
	mu := s.locks.Get(matchID)
	mu.RLock()
	defer mu.RUnlock()

	turn, ts, err := s.loadTurn(ctx, matchID)
	if err != nil {
		return nil, err
	}
	state, err := encodeState(ts)
	if err != nil {
		return nil, err
	}
	view := &TurnView{Turn: *turn, State: state, Ready: []string{}}
	for _, p := range ts.Players {
		if p.Ready {
			view.Ready = append(view.Ready, string(p.Player))
		}
	}
	return view, nil
}

// ListTurns returns the turn history of a match, oldest first.
func (s *TurnService) ListTurns(ctx context.Context, matchID, userID string) ([]model.Turn, error) {
	if _, err := s.visibleMatch(ctx, matchID, userID); err != nil {
		return nil, err
	}
	return s.turnRepo.ListTurns(ctx, matchID)
}

// TurnCommands returns the commands of a resolved turn with their outcomes.
func (s *TurnService) TurnCommands(ctx context.Context, matchID, userID string, number int) ([]model.Command, error) {
	turn, err := s.resolvedTurn(ctx, matchID, userID, number)
	if err != nil {
		return nil, err
	}
	return s.turnRepo.CommandsByTurn(ctx, turn.ID)
}

// TurnBattles returns the battle log of a resolved turn.
func (s *TurnService) TurnBattles(ctx context.Context, matchID, userID string, number int) ([]model.Battle, error) {
	turn, err := s.resolvedTurn(ctx, matchID, userID, number)
	if err != nil {
		return nil, err
	}
	return s.turnRepo.BattlesByTurn(ctx, turn.ID)
}

// resolvedTurn finds turn number of a visible match. Commands of the turn
// being played stay private until it resolves.
func (s *TurnService) resolvedTurn(ctx context.Context, matchID, userID string, number int) (*model.Turn, error) {
	if _, err := s.visibleMatch(ctx, matchID, userID); err != nil {
		return nil, err
	}
	turn, err := s.turnRepo.FindTurn(ctx, matchID, number)
	if err != nil {
		return nil, fmt.Errorf("find turn: %w", err)
	}
	if turn == nil || turn.ResolvedAt == nil {
		return nil, ErrTurnNotFound
	}
	return turn, nil
}
