package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yoockh/yoointerview/internal/utils"
)

// DefaultLockTTL is how long a session lock survives its holder. A crashed
// process frees its sessions after this much time.
const DefaultLockTTL = 30 * time.Second

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only while it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// SessionLock guarantees a single live connection per interview session.
// Held locks are refreshed every ttl/3 until released.
type SessionLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionLock(rdb *redis.Client, ttl time.Duration) *SessionLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &SessionLock{rdb: rdb, ttl: ttl}
}

func lockKey(sessionID string) string { return "interview:lock:" + sessionID }

// Acquire takes the lock for sessionID. It fails with CodeConflict while
// another connection holds it. The returned release stops the refresher and
// is safe to call once the lock has expired or been taken over.
func (l *SessionLock) Acquire(ctx context.Context, sessionID string) (func(), error) {
	const op = "SessionLock.Acquire"

	key, token := lockKey(sessionID), uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "lock store unavailable", err)
	}
	if !ok {
		return nil, utils.E(utils.CodeConflict, op, "session is locked", utils.ErrConflict)
	}

	refreshCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(refreshCtx, l.ttl/3, func(ctx context.Context) error {
			return refreshScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Err()
		})
	}()

	release := func() {
		stop()
		<-done
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}
	return release, nil
}

// keepAlive calls refresh every interval until ctx is done. A failed refresh
// is retried on the next tick; the lock simply lapses if Redis stays away.
func keepAlive(ctx context.Context, interval time.Duration, refresh func(context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rctx, cancel := context.WithTimeout(ctx, interval)
			_ = refresh(rctx)
			cancel()
		}
	}
}
