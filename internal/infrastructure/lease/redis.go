package lease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the stored token matches. Without
// the token check, a holder whose lease expired could delete a lease acquired
// by someone else.
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// RedisLease implements application.Lease on Redis SET NX EX. The TTL bounds
// how long a crashed holder can block other batch runs.
type RedisLease struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisLease(client *redis.Client, logger *slog.Logger) *RedisLease {
	return &RedisLease{client: client, logger: logger}
}

var _ application.Lease = (*RedisLease)(nil)

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		deleted, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to release lease %q: %w", key, err)
		}
		if deleted == 0 {
			l.logger.Warn("lease expired before release", "key", key)
		}
		return nil
	}

	return release, true, nil
}
