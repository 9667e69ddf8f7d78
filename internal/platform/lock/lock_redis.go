package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ncrtrack/internal/platform/metrics"
	"ncrtrack/pkg/platform/sentinel"
)

const lockKeyPrefix = "lock:table:"

// releaseScript deletes the lock only if this holder still owns it, so a
// lease that expired and was re-acquired by someone else is never released
// out from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager implements Manager with SET NX PX leases. The lease bounds how
// long a crashed holder can wedge the table; live holders are expected to
// finish well inside it.
type RedisManager struct {
	client *redis.Client
	wait   time.Duration
	lease  time.Duration
	// poll interval between acquisition attempts
	retry time.Duration
}

func NewRedisManager(client *redis.Client, wait, lease time.Duration) *RedisManager {
	return &RedisManager{
		client: client,
		wait:   wait,
		lease:  lease,
		retry:  50 * time.Millisecond,
	}
}

func (m *RedisManager) Acquire(ctx context.Context, name string) (func(), error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(m.wait)

	ticker := time.NewTicker(m.retry)
	defer ticker.Stop()

	for {
		ok, err := m.client.SetNX(ctx, key, token, m.lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
			return func() {
				// Release on a fresh context: the caller's may already be done.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, m.client, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			metrics.LockBusyTotal.Inc()
			return nil, sentinel.ErrBusy
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
