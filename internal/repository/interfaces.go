package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/repower/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// MatchRepository defines match and seat data operations.
type MatchRepository interface {
	// Create inserts a match in setup with the owner in seat 0.
	Create(ctx context.Context, name, ownerID, mapID string, capacity int) (*model.Match, error)
	FindByID(ctx context.Context, id string) (*model.Match, error)
	// ListVisible returns public matches and matches userID sits in.
	ListVisible(ctx context.Context, userID string) ([]model.Match, error)
	ListByStatus(ctx context.Context, statuses ...string) ([]model.Match, error)
	// Save writes the match row and replaces its seats with m.Players.
	Save(ctx context.Context, m *model.Match) error
}

// TurnRepository defines turn history operations.
type TurnRepository interface {
	CreateTurn(ctx context.Context, matchID string, number int, state json.RawMessage) (*model.Turn, error)
	CurrentTurn(ctx context.Context, matchID string) (*model.Turn, error)
	FindTurn(ctx context.Context, matchID string, number int) (*model.Turn, error)
	ListTurns(ctx context.Context, matchID string) ([]model.Turn, error)
	// UpdateState rewrites the board of an unresolved turn (player departures).
	UpdateState(ctx context.Context, turnID string, state json.RawMessage) error
	// ResolveTurn closes turnID with its outcome and opens the next turn in
	// one transaction.
	ResolveTurn(ctx context.Context, res TurnResolution) (*model.Turn, error)
	CommandsByTurn(ctx context.Context, turnID string) ([]model.Command, error)
	BattlesByTurn(ctx context.Context, turnID string) ([]model.Battle, error)
}

// TurnResolution is everything written when a turn is resolved.
type TurnResolution struct {
	TurnID     string
	MatchID    string
	StateAfter json.RawMessage
	Report     string
	Commands   []model.Command
	Battles    []model.Battle
	NextNumber int
}

// NotificationRepository defines per-player notification storage.
type NotificationRepository interface {
	Create(ctx context.Context, userID, text, reference string) (*model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// MatchCache defines live turn operations (Redis): the current board, the
// queued commands per player, the ready set and the resolution lock.
type MatchCache interface {
	SetTurnState(ctx context.Context, matchID string, state json.RawMessage) error
	GetTurnState(ctx context.Context, matchID string) (json.RawMessage, error)
	// PushCommand appends to playerID's queue and returns the new length.
	PushCommand(ctx context.Context, matchID, playerID string, cmd json.RawMessage) (int64, error)
	RemoveCommand(ctx context.Context, matchID, playerID string, cmd json.RawMessage) error
	RemoveCommandAt(ctx context.Context, matchID, playerID string, index int) error
	Commands(ctx context.Context, matchID, playerID string) ([]json.RawMessage, error)
	AllCommands(ctx context.Context, matchID string, players []string) (map[string][]json.RawMessage, error)
	MarkReady(ctx context.Context, matchID, playerID string) error
	ReadyPlayers(ctx context.Context, matchID string) ([]string, error)
	PublishReady(ctx context.Context, matchID, playerID string) error
	AcquireResolveLock(ctx context.Context, matchID, owner string, ttl time.Duration) (bool, error)
	ReleaseResolveLock(ctx context.Context, matchID, owner string) error
	ClearTurnData(ctx context.Context, matchID string, players []string) error
	DeleteMatchData(ctx context.Context, matchID string, players []string) error
}

// ReadyChannel is the pub/sub channel carrying ReadyEvent payloads to every
// server instance.
const ReadyChannel = "repower:ready"

// ReadyEvent announces that a player ended their turn.
type ReadyEvent struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}
