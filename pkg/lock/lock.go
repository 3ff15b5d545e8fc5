package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/security"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNotAcquired = errors.New("lock not acquired")

var Module = fx.Module("lock", fx.Provide(ProvideLocker))

var LocalModule = fx.Module("lock.local", fx.Provide(func() Locker { return NewLocalLocker() }))

// Locker serializes work on a key across goroutines or processes.
type Locker interface {
	// Acquire blocks until the key is held or ctx is done. The returned func releases it.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type Params struct {
	fx.In
	Redis  *redis.Client
	Config *config.Config
}

func ProvideLocker(p Params) Locker {
	ttl := p.Config.Lock.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: p.Redis, ttl: ttl, retry: 50 * time.Millisecond}
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds keys with SET NX and a TTL. While a key is held the TTL is pushed
// forward every ttl/3, so a holder that outlives the TTL keeps the key until it releases.
type RedisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, retry: 50 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := security.GenerateBase64Secret(16)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := keepAlive(key, l.ttl/3, func(ctx context.Context) (bool, error) {
		n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
		return n == 1, err
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			if err := releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err(); err != nil {
				zap.L().Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive calls refresh every interval until stop is called or refresh reports the key lost.
func keepAlive(key string, interval time.Duration, refresh func(ctx context.Context) (bool, error)) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			held, err := refresh(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				zap.L().Warn("failed to extend lock", zap.String("key", key), zap.Error(err))
			case !held:
				zap.L().Warn("lock expired before release", zap.String("key", key))
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// LocalLocker is an in-process keyed mutex for single node runs and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
