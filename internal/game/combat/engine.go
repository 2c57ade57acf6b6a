package combat

import (
	"context"
	"sync"
)

// Key identifies the combat session of one character within one campaign.
type Key struct {
	CampaignID  string
	CharacterID string
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// Engine linearizes work on combat sessions: at most one holder per Key.
// Lock entries are reference counted and removed when unused.
// All methods are safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	locks map[Key]*sessionLock
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{locks: make(map[Key]*sessionLock)}
}

// Lock blocks until key is held by the caller or ctx is done.
//
// Postcondition: On success the returned unlock must be called exactly once.
func (e *Engine) Lock(ctx context.Context, key Key) (unlock func(), err error) {
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		e.locks[key] = l
	}
	l.refs++
	e.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		e.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			e.release(key, l)
		})
	}, nil
}

func (e *Engine) release(key Key, l *sessionLock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, key)
	}
}

// Held returns how many keys currently have holders or waiters.
func (e *Engine) Held() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locks)
}
