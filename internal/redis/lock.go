package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// releaseLua deletes the lock only while it still holds the caller's token, so an expired
// holder can never release a lock someone else acquired since.
var releaseLua = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held lease on a redis key.
type Lock struct {
	client *Client
	key    string
	token  string
}

// TryLock acquires key for ttl. It returns (nil, nil) when another holder owns the key.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()

	acquired, err := c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to acquire lock %q", key)
	}
	if !acquired {
		return nil, nil
	}

	return &Lock{client: c, key: key, token: token}, nil
}

// Release gives the lock back. Releasing an expired lock is not an error.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseLua.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return apperrors.Wrapf(err, "failed to release lock %q", l.key)
	}
	return nil
}
