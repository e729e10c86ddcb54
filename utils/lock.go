package utils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotObtained = errors.New("document is locked by another request")

// DocumentLocker serialises writers of the same documents across requests.
type DocumentLocker interface {
	// Lock obtains every key (in sorted order) and returns a release func.
	Lock(ctx context.Context, keys ...string) (func(), error)
}

func LockKey(doctype string, id int) string {
	return fmt.Sprintf("lock:%s:%d", doctype, id)
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker locks documents across instances with redislock. Held locks
// are refreshed every half ttl until released, so ttl only bounds how long a
// crashed holder keeps the documents.
func NewRedisLocker(client *redislock.Client, ttl time.Duration) DocumentLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{client: client, ttl: ttl, wait: 10 * time.Second}
}

func (l *redisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	if l.client == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	keys = sortedUnique(keys)
	locks := make([]*redislock.Lock, 0, len(keys))
	releaseAll := func() {
		for i := len(locks) - 1; i >= 0; i-- {
			_ = locks[i].Release(context.Background())
		}
	}

	retries := int(l.wait / (100 * time.Millisecond))
	for _, key := range keys {
		lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), retries),
		})
		if err == redislock.ErrNotObtained {
			releaseAll()
			return nil, fmt.Errorf("%s: %w", key, ErrLockNotObtained)
		} else if err != nil {
			releaseAll()
			return nil, err
		}
		locks = append(locks, lock)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for _, lock := range locks {
					_ = lock.Refresh(context.Background(), l.ttl, nil)
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseAll()
		})
	}, nil
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker locks documents within a single process.
func NewLocalLocker() DocumentLocker {
	return &localLocker{locks: make(map[string]chan struct{})}
}

func (l *localLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Lock waits for every key in turn and gives up with ctx.Err() once ctx is done.
func (l *localLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, key := range keys {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func sortedUnique(keys []string) []string {
	keys = UniqueSlice(keys)
	sort.Strings(keys)
	return keys
}
