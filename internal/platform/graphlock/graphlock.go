package graphlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

// Release gives a held lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// GraphLock serializes writers of one graph.
type GraphLock interface {
	Acquire(ctx context.Context, graphID string) (Release, error)
	Close() error
}

type LockConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	// Wait bounds how long Acquire polls before giving up with ErrConflict.
	Wait time.Duration
}

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 5 * time.Second
	lockPollEvery   = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisGraphLock struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewGraphLock returns a redis-backed lock, or an in-process lock when no
// address is configured.
func NewGraphLock(log *logger.Logger, cfg LockConfig) (GraphLock, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl, wait := cfg.TTL, cfg.Wait
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}

	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		log.Warn("REDIS_ADDR not set; using in-process graph lock")
		return NewLocalGraphLock(wait), nil
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "cdg:lock:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisGraphLock{
		log:    log.With("service", "RedisGraphLock"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
	}, nil
}

func (l *redisGraphLock) Acquire(ctx context.Context, graphID string) (Release, error) {
	key := l.prefix + graphID
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", graphID, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: graph %s is locked by another writer", cdgerrors.ErrConflict, graphID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollEvery):
		}
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			err = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
			if errors.Is(err, goredis.Nil) {
				err = nil
			}
			if err != nil {
				l.log.Warn("redis lock release failed", "graph_id", graphID, "error", err)
			}
		})
		return err
	}, nil
}

func (l *redisGraphLock) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

type localGraphLock struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewLocalGraphLock(wait time.Duration) GraphLock {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &localGraphLock{held: map[string]chan struct{}{}, wait: wait}
}

func (l *localGraphLock) Acquire(ctx context.Context, graphID string) (Release, error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	for {
		l.mu.Lock()
		ch, busy := l.held[graphID]
		if !busy {
			done := make(chan struct{})
			l.held[graphID] = done
			l.mu.Unlock()
			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, graphID)
					l.mu.Unlock()
					close(done)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("%w: graph %s is locked by another writer", cdgerrors.ErrConflict, graphID)
		}
	}
}

func (l *localGraphLock) Close() error { return nil }
