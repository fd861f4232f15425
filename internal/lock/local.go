package lock

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
)

type localEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex for single-instance deployments
// and tests. Entries are dropped once nobody holds or waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	wait    time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]*localEntry),
		wait:    wait,
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key, e)
		return nil, apperrors.LockTimeout(key)
	}
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
