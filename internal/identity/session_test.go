package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements Provider with a controllable CurrentSession.
type mockProvider struct {
	mu             sync.Mutex
	currentSession func(ctx context.Context) (*Session, error)
	listeners      []func(*Session)
}

func (m *mockProvider) CreateAccount(_ context.Context, _, _ string) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockProvider) DeleteAccount(_ context.Context, _ string) error { return nil }

func (m *mockProvider) SignIn(_ context.Context, _, _ string) (*Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProvider) SignOut(_ context.Context, _ string) error { return nil }

func (m *mockProvider) CurrentSession(ctx context.Context) (*Session, error) {
	if m.currentSession != nil {
		return m.currentSession(ctx)
	}
	return nil, nil
}

func (m *mockProvider) OnSessionChange(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *mockProvider) fireSessionChange(s *Session) {
	m.mu.Lock()
	listeners := m.listeners
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func TestSessionTracker_ReadyAfterInitialQuery(t *testing.T) {
	provider := &mockProvider{
		currentSession: func(_ context.Context) (*Session, error) {
			return &Session{UserID: "u1", Email: "u1@example.com"}, nil
		},
	}
	tracker := NewSessionTracker(provider, time.Second)
	tracker.Start(context.Background())

	tracker.WaitReady(context.Background())

	assert.True(t, tracker.Ready())
	snapshot := tracker.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "u1", snapshot.UserID)
}

func TestSessionTracker_TimesOutWhenProviderHangs(t *testing.T) {
	provider := &mockProvider{
		currentSession: func(ctx context.Context) (*Session, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	tracker := NewSessionTracker(provider, 50*time.Millisecond)
	tracker.Start(context.Background())

	start := time.Now()
	tracker.WaitReady(context.Background())

	assert.Less(t, time.Since(start), time.Second, "wait must be bounded")
	assert.True(t, tracker.Ready(), "timeout latches readiness")
	assert.Nil(t, tracker.Snapshot(), "no session known after timeout")
}

func TestSessionTracker_SessionChangeMarksReady(t *testing.T) {
	provider := &mockProvider{
		currentSession: func(ctx context.Context) (*Session, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	tracker := NewSessionTracker(provider, 5*time.Second)

	assert.False(t, tracker.Ready())
	provider.fireSessionChange(&Session{UserID: "u2"})

	tracker.WaitReady(context.Background())
	assert.True(t, tracker.Ready())
	snapshot := tracker.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "u2", snapshot.UserID)
}

func TestSessionTracker_LateCallbackUpdatesSnapshot(t *testing.T) {
	provider := &mockProvider{}
	tracker := NewSessionTracker(provider, 10*time.Millisecond)
	tracker.Start(context.Background())
	tracker.WaitReady(context.Background())

	provider.fireSessionChange(&Session{UserID: "late"})

	snapshot := tracker.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "late", snapshot.UserID)

	provider.fireSessionChange(nil)
	assert.Nil(t, tracker.Snapshot())
}
