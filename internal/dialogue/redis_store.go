package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix  = "concierge:call:"
	defaultSessionTTL = 30 * time.Minute
)

// RedisStore is a Redis-backed SessionStore for deployments that run more
// than one webhook instance. Sessions are JSON blobs with an idle TTL
// refreshed on every write, so even sessions that never see a terminal
// transition age out.
type RedisStore struct {
	rdb     *redis.Client
	idleTTL time.Duration
}

// NewRedisStore creates a session store backed by Redis. idleTTL bounds how
// long an untouched session survives; zero or negative applies the default.
func NewRedisStore(rdb *redis.Client, idleTTL time.Duration) *RedisStore {
	if idleTTL <= 0 {
		idleTTL = defaultSessionTTL
	}
	return &RedisStore{rdb: rdb, idleTTL: idleTTL}
}

func sessionKey(callID string) string {
	return sessionKeyPrefix + callID
}

func (s *RedisStore) Create(ctx context.Context, session *CallSession) error {
	return s.Save(ctx, session)
}

func (s *RedisStore) Save(ctx context.Context, session *CallSession) error {
	if session == nil || session.CallID == "" {
		return fmt.Errorf("session store: call_id required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session store: marshal: %w", err)
	}
	return s.rdb.Set(ctx, sessionKey(session.CallID), data, s.idleTTL).Err()
}

func (s *RedisStore) Get(ctx context.Context, callID string) (*CallSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	var session CallSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("session store: unmarshal: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	return s.rdb.Del(ctx, sessionKey(callID)).Err()
}

func (s *RedisStore) Mutate(ctx context.Context, callID string, fn func(*CallSession)) error {
	session, err := s.Get(ctx, callID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	fn(session)
	return s.Save(ctx, session)
}
