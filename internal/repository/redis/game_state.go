package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis game state.
func stateKey(gameID string) string { return "game:" + gameID + ":state" }
func readyKey(gameID string) string { return "game:" + gameID + ":ready" }
func timerKey(gameID string) string { return "game:" + gameID + ":timer" }

// SetGameState stores the live game state JSON.
func (c *Client) SetGameState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(state), 0).Err()
}

// GetGameState retrieves the live game state JSON, nil when absent.
func (c *Client) GetGameState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// MarkReady adds a user to the lobby ready set for the game.
func (c *Client) MarkReady(ctx context.Context, gameID, userID string) error {
	return c.rdb.SAdd(ctx, readyKey(gameID), userID).Err()
}

// UnmarkReady removes a user from the ready set.
func (c *Client) UnmarkReady(ctx context.Context, gameID, userID string) error {
	return c.rdb.SRem(ctx, readyKey(gameID), userID).Err()
}

// ReadyCount returns how many users have marked ready.
func (c *Client) ReadyCount(ctx context.Context, gameID string) (int64, error) {
	return c.rdb.SCard(ctx, readyKey(gameID)).Result()
}

// ReadyUsers returns the set of users that have marked ready.
func (c *Client) ReadyUsers(ctx context.Context, gameID string) ([]string, error) {
	return c.rdb.SMembers(ctx, readyKey(gameID)).Result()
}

// clockGracePeriod is the extra time after the displayed deadline before the
// timeout fires, giving a slow connection a few seconds of leeway.
const clockGracePeriod = 5 * time.Second

// SetTimer creates the turn clock key with a TTL. When the key expires,
// Redis keyspace notifications trigger the timeout path. The TTL includes a
// grace period so the key outlives the displayed deadline slightly.
func (c *Client) SetTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + clockGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), deadline.Unix(), ttl).Err()
}

// GetTimer returns the stored deadline, or the zero time when no clock is
// running (expired or never set).
func (c *Client) GetTimer(ctx context.Context, gameID string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, timerKey(gameID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get turn clock: %w", err)
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse turn clock %q: %w", val, err)
	}
	return time.Unix(unix, 0), nil
}

// ClearTimer removes the turn clock for a game.
func (c *Client) ClearTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}

// DeleteGameData removes all Redis data for a game (on game end).
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, stateKey(gameID), readyKey(gameID), timerKey(gameID)).Err()
}
