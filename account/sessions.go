package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks outstanding refresh tokens so each can be used once.
type SessionStore interface {
	Save(ctx context.Context, jti, accountID string, ttl time.Duration) error
	// Consume removes jti and returns the account it belonged to.
	// ok is false when jti is unknown, expired or already used.
	Consume(ctx context.Context, jti string) (accountID string, ok bool, err error)
}

// RedisSessionStore keeps refresh sessions as expiring Redis keys.
type RedisSessionStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisSessionStore(rdb redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, prefix: "careregistry:refresh:"}
}

func (s *RedisSessionStore) Save(ctx context.Context, jti, accountID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.prefix+jti, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("account: save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Consume(ctx context.Context, jti string) (string, bool, error) {
	accountID, err := s.rdb.GetDel(ctx, s.prefix+jti).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("account: consume session: %w", err)
	}
	return accountID, true, nil
}
