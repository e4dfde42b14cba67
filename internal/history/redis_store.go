// Package history keeps the server-side undo/redo stacks of version ids and
// the one-shot claims that make suggestion inserts idempotent.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaxDepth bounds each stack.
const MaxDepth = 50

// ClaimTTL is how long a processed suggestion id stays claimed.
const ClaimTTL = 7 * 24 * time.Hour

// ErrEmpty is returned when there is nothing to move off a stack.
var ErrEmpty = errors.New("history stack is empty")

type Stack string

const (
	Undo Stack = "undo"
	Redo Stack = "redo"
)

// shiftScript pops the top of KEYS[1] and pushes ARGV[1] onto KEYS[2] in one
// step, so concurrent undo and redo calls never see a half-moved pair.
var shiftScript = redis.NewScript(`
local target = redis.call('LPOP', KEYS[1])
if not target then
  return false
end
redis.call('LPUSH', KEYS[2], ARGV[1])
redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[2]) - 1)
return target
`)

// RedisStore implements the stacks as redis lists, newest first.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "drafts:",
	}
}

func (s *RedisStore) stackKey(draftID string, stack Stack) string {
	return s.prefix + draftID + ":" + string(stack)
}

func (s *RedisStore) claimKey(suggestionID string) string {
	return s.prefix + "claim:" + suggestionID
}

// RecordVersion pushes the version being replaced onto the undo stack and
// clears redo. Called for every new commit.
func (s *RedisStore) RecordVersion(ctx context.Context, draftID, replacedVersionID string) error {
	undoKey := s.stackKey(draftID, Undo)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, undoKey, replacedVersionID)
		pipe.LTrim(ctx, undoKey, 0, MaxDepth-1)
		pipe.Del(ctx, s.stackKey(draftID, Redo))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return nil
}

// Shift pops the target version off from and pushes currentVersionID onto
// the opposite stack. It returns ErrEmpty when from has nothing.
func (s *RedisStore) Shift(ctx context.Context, draftID string, from Stack, currentVersionID string) (string, error) {
	to := Redo
	if from == Redo {
		to = Undo
	}
	keys := []string{s.stackKey(draftID, from), s.stackKey(draftID, to)}
	target, err := shiftScript.Run(ctx, s.client, keys, currentVersionID, MaxDepth).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("shift %s stack: %w", from, err)
	}
	return target, nil
}

// Depth reports the size of both stacks.
func (s *RedisStore) Depth(ctx context.Context, draftID string) (undo, redo int64, err error) {
	pipe := s.client.Pipeline()
	undoLen := pipe.LLen(ctx, s.stackKey(draftID, Undo))
	redoLen := pipe.LLen(ctx, s.stackKey(draftID, Redo))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("stack depth: %w", err)
	}
	return undoLen.Val(), redoLen.Val(), nil
}

// Clear drops both stacks, e.g. once a draft is finalized.
func (s *RedisStore) Clear(ctx context.Context, draftID string) error {
	if err := s.client.Del(ctx, s.stackKey(draftID, Undo), s.stackKey(draftID, Redo)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// ClaimSuggestion marks a suggestion as being processed. Only the first
// caller gets true.
func (s *RedisStore) ClaimSuggestion(ctx context.Context, suggestionID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.claimKey(suggestionID), time.Now().UTC().Format(time.RFC3339), ClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim suggestion: %w", err)
	}
	return ok, nil
}

// ReleaseSuggestion gives a claim back after a failed insert so it can be
// retried.
func (s *RedisStore) ReleaseSuggestion(ctx context.Context, suggestionID string) error {
	if err := s.client.Del(ctx, s.claimKey(suggestionID)).Err(); err != nil {
		return fmt.Errorf("release suggestion claim: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
