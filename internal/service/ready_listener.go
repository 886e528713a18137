package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/repository"
	"github.com/freeeve/repower/pkg/repower"
)

// ReadyListener relays ready events published by any server instance to
// local websocket clients and resolves turns whose players are all ready.
// A polling sweep catches matches whose resolution was interrupted.
type ReadyListener struct {
	rdb         *redis.Client
	turns       *TurnService
	matchRepo   repository.MatchRepository
	broadcaster Broadcaster
	interval    time.Duration
}

// NewReadyListener creates a ReadyListener.
func NewReadyListener(rdb *redis.Client, turns *TurnService, matchRepo repository.MatchRepository, broadcaster Broadcaster, interval time.Duration) *ReadyListener {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ReadyListener{rdb: rdb, turns: turns, matchRepo: matchRepo, broadcaster: broadcaster, interval: interval}
}

// Start subscribes to ready events and runs the sweep until ctx is done.
func (l *ReadyListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.poll(ctx)
}

func (l *ReadyListener) listen(ctx context.Context) {
	pubsub := l.rdb.Subscribe(ctx, repository.ReadyChannel)
	defer pubsub.Close()

	log.Info().Str("channel", repository.ReadyChannel).Msg("Ready listener started")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.handleMessage(ctx, msg.Payload)
		}
	}
}

// handleMessage processes one ready event payload.
func (l *ReadyListener) handleMessage(ctx context.Context, payload string) {
	var ev repository.ReadyEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.MatchID == "" {
		log.Warn().Err(err).Str("payload", payload).Msg("Ignoring malformed ready event")
		return
	}
	l.broadcaster.BroadcastMatchEvent(ev.MatchID, "player_ready", map[string]any{"player_id": ev.PlayerID})
	if err := l.turns.AdvanceIfReady(ctx, ev.MatchID); err != nil {
		log.Error().Err(err).Str("matchId", ev.MatchID).Msg("Turn resolution failed after ready event")
	}
}

func (l *ReadyListener) poll(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", l.interval).Msg("Ready poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Ready poller stopped")
			return
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

// sweep tries to advance every playing match.
func (l *ReadyListener) sweep(ctx context.Context) {
	matches, err := l.matchRepo.ListByStatus(ctx, string(repower.StatusPlaying))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list playing matches")
		return
	}
	for _, mm := range matches {
		if err := l.turns.AdvanceIfReady(ctx, mm.ID); err != nil {
			log.Error().Err(err).Str("matchId", mm.ID).Msg("Turn resolution failed from poller")
		}
	}
}
