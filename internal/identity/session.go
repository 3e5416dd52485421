package identity

import (
	"context"
	"sync"
	"time"
)

// DefaultInitTimeout bounds how long callers wait for the identity
// provider to finish initializing.
const DefaultInitTimeout = 3 * time.Second

// SessionTracker tracks provider initialization and the last known
// session snapshot. Guards wait on it instead of assuming synchronous
// readiness at startup: WaitReady blocks until the provider has
// reported once or the bounded timeout elapses, after which the last
// known value wins and late provider callbacks only update the
// snapshot.
type SessionTracker struct {
	provider Provider
	timeout  time.Duration

	mu   sync.Mutex
	last *Session

	ready     chan struct{}
	readyOnce sync.Once
}

// NewSessionTracker creates a tracker subscribed to provider session
// changes. Call Start to begin initialization.
func NewSessionTracker(provider Provider, timeout time.Duration) *SessionTracker {
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}

	t := &SessionTracker{
		provider: provider,
		timeout:  timeout,
		ready:    make(chan struct{}),
	}

	provider.OnSessionChange(func(s *Session) {
		t.mu.Lock()
		t.last = s
		t.mu.Unlock()
		t.markReady()
	})

	return t
}

// Start queries the provider for the current session in the background.
// Readiness latches when the query answers, a session change fires, or
// the timeout passes, whichever comes first.
func (t *SessionTracker) Start(ctx context.Context) {
	go func() {
		queryCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		if session, err := t.provider.CurrentSession(queryCtx); err == nil {
			t.mu.Lock()
			t.last = session
			t.mu.Unlock()
		}
		// Initialization is treated as complete with the last known
		// value even if the provider answered with an error.
		t.markReady()
	}()
}

// Ready reports whether initialization has completed.
func (t *SessionTracker) Ready() bool {
	select {
	case <-t.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the tracker is ready, the context is done, or
// the bounded timeout elapses. On timeout the tracker latches ready so
// every subsequent caller sees the same state.
func (t *SessionTracker) WaitReady(ctx context.Context) {
	select {
	case <-t.ready:
	case <-ctx.Done():
	case <-time.After(t.timeout):
		t.markReady()
	}
}

// Snapshot returns the last known session, or nil when signed out.
func (t *SessionTracker) Snapshot() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return nil
	}
	s := *t.last
	return &s
}

func (t *SessionTracker) markReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}
