package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"tripmind/internal/domain/session"
	"tripmind/pkg/errors"
)

const keyPrefix = "tripmind:session:"

// SessionRepository implements session.Repository on Redis.
// History is a list of JSON messages, state a hash of JSON values, and an
// index set tracks live session IDs.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository creates a Redis session repository. A positive ttl
// expires idle sessions; zero keeps them until Clear.
func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		ttl:    ttl,
	}
}

var _ session.Repository = (*SessionRepository)(nil)

func (r *SessionRepository) Append(ctx context.Context, sessionID string, msg session.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal message: session=%s", sessionID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.historyKey(sessionID), data)
		pipe.SAdd(ctx, r.indexKey(), sessionID)
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to append message to redis: session=%s", sessionID)
	}
	return nil
}

func (r *SessionRepository) History(ctx context.Context, sessionID string, max int) ([]session.Message, error) {
	start := int64(0)
	if max > 0 {
		start = int64(-max)
	}

	raw, err := r.client.LRange(ctx, r.historyKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read history from redis: session=%s", sessionID)
	}

	msgs := make([]session.Message, 0, len(raw))
	for _, item := range raw {
		var m session.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal message: session=%s", sessionID)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *SessionRepository) SetState(ctx context.Context, sessionID string, key session.StateKey, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal state %s: session=%s", key, sessionID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.stateKey(sessionID), string(key), data)
		pipe.SAdd(ctx, r.indexKey(), sessionID)
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save state to redis: session=%s key=%s", sessionID, key)
	}
	return nil
}

func (r *SessionRepository) GetState(ctx context.Context, sessionID string, key session.StateKey) (any, bool, error) {
	data, err := r.client.HGet(ctx, r.stateKey(sessionID), string(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to get state from redis: session=%s key=%s", sessionID, key)
	}

	var value any
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return nil, false, errors.Wrapf(err, "failed to unmarshal state: session=%s key=%s", sessionID, key)
	}
	return value, true, nil
}

// Clear deletes history, state and the index entry in one transaction
func (r *SessionRepository) Clear(ctx context.Context, sessionID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.historyKey(sessionID), r.stateKey(sessionID))
		pipe.SRem(ctx, r.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to clear session in redis: session=%s", sessionID)
	}
	return nil
}

// List returns indexed sessions. Entries whose keys already expired are
// pruned from the index as a side effect.
func (r *SessionRepository) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions from redis")
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, r.historyKey(id), r.stateKey(id)).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check session existence: session=%s", id)
		}
		if n == 0 {
			_ = r.client.SRem(ctx, r.indexKey(), id).Err()
			continue
		}
		live = append(live, id)
	}

	sort.Strings(live)
	return live, nil
}

func (r *SessionRepository) touch(ctx context.Context, pipe redis.Pipeliner, sessionID string) {
	if r.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, r.historyKey(sessionID), r.ttl)
	pipe.Expire(ctx, r.stateKey(sessionID), r.ttl)
}

func (r *SessionRepository) historyKey(sessionID string) string {
	return keyPrefix + sessionID + ":history"
}

func (r *SessionRepository) stateKey(sessionID string) string {
	return keyPrefix + sessionID + ":state"
}

func (r *SessionRepository) indexKey() string {
	return "tripmind:sessions"
}
