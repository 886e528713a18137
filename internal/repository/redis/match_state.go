package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freeeve/repower/internal/repository"
)

// Key patterns for live match data.
func stateKey(matchID string) string              { return "match:" + matchID + ":state" }
func commandsKey(matchID, playerID string) string { return "match:" + matchID + ":commands:" + playerID }
func readyKey(matchID string) string              { return "match:" + matchID + ":ready" }
func resolvingKey(matchID string) string          { return "match:" + matchID + ":resolving" }

// withdrawnMarker replaces a queue entry before it is removed by value.
const withdrawnMarker = "__withdrawn__"

// releaseLock deletes the resolve lock only if it is still held by the caller.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SetTurnState stores the live board of the current turn.
func (c *Client) SetTurnState(ctx context.Context, matchID string, state json.RawMessage) error {
	if err := c.rdb.Set(ctx, stateKey(matchID), []byte(state), 0).Err(); err != nil {
		return fmt.Errorf("set turn state: %w", err)
	}
	return nil
}

// GetTurnState returns the live board, or nil when nothing is cached.
func (c *Client) GetTurnState(ctx context.Context, matchID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get turn state: %w", err)
	}
	return json.RawMessage(data), nil
}

// PushCommand appends a command to a player's queue and returns the queue length.
func (c *Client) PushCommand(ctx context.Context, matchID, playerID string, cmd json.RawMessage) (int64, error) {
	n, err := c.rdb.RPush(ctx, commandsKey(matchID, playerID), []byte(cmd)).Result()
	if err != nil {
		return 0, fmt.Errorf("push command: %w", err)
	}
	return n, nil
}

// RemoveCommand removes the last queue entry equal to cmd.
func (c *Client) RemoveCommand(ctx context.Context, matchID, playerID string, cmd json.RawMessage) error {
	if err := c.rdb.LRem(ctx, commandsKey(matchID, playerID), -1, []byte(cmd)).Err(); err != nil {
		return fmt.Errorf("remove command: %w", err)
	}
	return nil
}

// RemoveCommandAt removes the queue entry at index; later entries shift down.
func (c *Client) RemoveCommandAt(ctx context.Context, matchID, playerID string, index int) error {
	key := commandsKey(matchID, playerID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LSet(ctx, key, int64(index), withdrawnMarker)
		pipe.LRem(ctx, key, 1, withdrawnMarker)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove command %d: %w", index, err)
	}
	return nil
}

// Commands returns a player's queued commands in order.
func (c *Client) Commands(ctx context.Context, matchID, playerID string) ([]json.RawMessage, error) {
	items, err := c.rdb.LRange(ctx, commandsKey(matchID, playerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get commands: %w", err)
	}
	return toRaw(items), nil
}

// AllCommands returns the queues of the given players in one round trip.
// Players without commands are omitted.
func (c *Client) AllCommands(ctx context.Context, matchID string, players []string) (map[string][]json.RawMessage, error) {
	cmds := make([]*redis.StringSliceCmd, len(players))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range players {
			cmds[i] = pipe.LRange(ctx, commandsKey(matchID, p), 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get all commands: %w", err)
	}

	result := make(map[string][]json.RawMessage)
	for i, p := range players {
		if items := cmds[i].Val(); len(items) > 0 {
			result[p] = toRaw(items)
		}
	}
	return result, nil
}

func toRaw(items []string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

// MarkReady adds a player to the ready set of the current turn.
func (c *Client) MarkReady(ctx context.Context, matchID, playerID string) error {
	if err := c.rdb.SAdd(ctx, readyKey(matchID), playerID).Err(); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

// ReadyPlayers returns the players who ended the current turn.
func (c *Client) ReadyPlayers(ctx context.Context, matchID string) ([]string, error) {
	players, err := c.rdb.SMembers(ctx, readyKey(matchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("ready players: %w", err)
	}
	return players, nil
}

// PublishReady announces a ready player to every instance.
func (c *Client) PublishReady(ctx context.Context, matchID, playerID string) error {
	payload, err := json.Marshal(repository.ReadyEvent{MatchID: matchID, PlayerID: playerID})
	if err != nil {
		return fmt.Errorf("marshal ready event: %w", err)
	}
	if err := c.rdb.Publish(ctx, repository.ReadyChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish ready: %w", err)
	}
	return nil
}

// AcquireResolveLock takes the per-match resolution lock for owner. It
// returns false when another holder has it.
func (c *Client) AcquireResolveLock(ctx context.Context, matchID, owner string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, resolvingKey(matchID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire resolve lock: %w", err)
	}
	return ok, nil
}

// ReleaseResolveLock drops the lock if owner still holds it.
func (c *Client) ReleaseResolveLock(ctx context.Context, matchID, owner string) error {
	if err := releaseLock.Run(ctx, c.rdb, []string{resolvingKey(matchID)}, owner).Err(); err != nil {
		return fmt.Errorf("release resolve lock: %w", err)
	}
	return nil
}

// ClearTurnData removes the command queues and ready set after a turn resolves.
func (c *Client) ClearTurnData(ctx context.Context, matchID string, players []string) error {
	keys := []string{readyKey(matchID)}
	for _, p := range players {
		keys = append(keys, commandsKey(matchID, p))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear turn data: %w", err)
	}
	return nil
}

// DeleteMatchData removes everything cached for a match that has ended.
func (c *Client) DeleteMatchData(ctx context.Context, matchID string, players []string) error {
	keys := []string{stateKey(matchID), readyKey(matchID), resolvingKey(matchID)}
	for _, p := range players {
		keys = append(keys, commandsKey(matchID, p))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete match data: %w", err)
	}
	return nil
}
