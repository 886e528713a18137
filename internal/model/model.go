package model

import (
	"encoding/json"
	"time"
)

// User is a registered player account.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match is a Repower match as stored.
type Match struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	OwnerID    string        `json:"owner_id"`
	MapID      string        `json:"map_id"`
	Capacity   int           `json:"capacity"`
	Status     string        `json:"status"` // setup, setup_aborted, playing, paused, finished, aborted
	Public     bool          `json:"public"`
	Winners    []string      `json:"winners,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Players    []MatchPlayer `json:"players,omitempty"`
}

// MatchPlayer is a player's seat in a match. Seat is the join order.
type MatchPlayer struct {
	MatchID    string    `json:"match_id"`
	UserID     string    `json:"user_id"`
	Seat       int       `json:"seat"`
	Country    int       `json:"country,omitempty"`
	SetupReady bool      `json:"setup_ready"`
	Defeated   bool      `json:"defeated"`
	LeftMatch  bool      `json:"left_match"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Turn is one turn of a match. StateBefore is the board the turn was played
// on; StateAfter and Report are set once it resolves.
type Turn struct {
	ID          string          `json:"id"`
	MatchID     string          `json:"match_id"`
	Number      int             `json:"number"`
	StateBefore json.RawMessage `json:"state_before"`
	StateAfter  json.RawMessage `json:"state_after,omitempty"`
	Report      string          `json:"report,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

// Command is a queued or resolved player command.
type Command struct {
	ID              string    `json:"id"`
	TurnID          string    `json:"turn_id,omitempty"`
	PlayerID        string    `json:"player_id"`
	Order           int       `json:"order"`
	Type            string    `json:"type"` // move, purchase, convert, value_convert
	Source          int       `json:"source,omitempty"`
	Destination     int       `json:"destination,omitempty"`
	TokenType       int       `json:"token_type,omitempty"`
	Conversion      int       `json:"conversion,omitempty"`
	ValueConversion int       `json:"value_conversion,omitempty"`
	Valid           string    `json:"valid"` // unresolved, valid, invalid
	RevertedInDraw  bool      `json:"reverted_in_draw"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Battle is one contested region in one resolution pass of a turn.
type Battle struct {
	ID       string `json:"id"`
	TurnID   string `json:"turn_id"`
	Region   int    `json:"region"`
	Step     int    `json:"step"`
	Winner   string `json:"winner,omitempty"` // empty on a draw
	Winning  []int  `json:"winning,omitempty"`
	Captured []int  `json:"captured,omitempty"`
}

// Notification is a message delivered to one player.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Reference string    `json:"reference,omitempty"` // e.g. the match it concerns
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
