package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// locker provides per-thread exclusive access, keeping message_count
// monotonic under concurrent append/close calls (spec §5 "Shared
// resources"). Grounded on the teacher's dual redis/in-memory
// idempotency.Manager split (llm/idempotency/manager.go): a Redis-backed
// implementation for multi-process deployments, an in-process mutex map as
// the default.
type locker interface {
	// lock blocks until the thread's exclusive access is acquired or ctx is
	// done, returning a release function.
	lock(ctx context.Context, threadID string) (release func(), err error)
}

// localLocker is the default, in-process locker: one *sync.Mutex per
// thread id, never evicted (threads are expected to be bounded by active
// session count).
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) lock(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[threadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[threadID] = m
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()
	select {
	case <-done:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() { <-done; m.Unlock() }()
		return nil, ctx.Err()
	}
}

// redisLocker acquires a distributed exclusive lock via SET NX EX, for
// deployments running the session manager across multiple processes
// sharing one Redis instance.
type redisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	releaseLua *redis.Script
}

func newRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *redisLocker {
	if prefix == "" {
		prefix = "cortex:session-lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		releaseLua: redis.NewScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`),
	}
}

func (l *redisLocker) lock(ctx context.Context, threadID string) (func(), error) {
	key := l.prefix + threadID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = l.releaseLua.Run(releaseCtx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}
