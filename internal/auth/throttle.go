package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AttemptStore counts failed logins per key inside a sliding expiry window.
type AttemptStore interface {
	Failures(ctx context.Context, key string) (int, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

type clientAddrKey struct{}

// WithClientAddr tags ctx with the address a login attempt comes from.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddrKey{}, addr)
}

func clientAddr(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddrKey{}).(string)
	return addr
}

// LoginThrottle locks a username out for one client address after max
// failures until window elapses. Attempts without an address share one
// counter per username.
type LoginThrottle struct {
	store  AttemptStore
	max    int
	window time.Duration
}

func NewLoginThrottle(store AttemptStore, max int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{store: store, max: max, window: window}
}

func (t *LoginThrottle) key(ctx context.Context, username string) string {
	return "login_attempts:" + clientAddr(ctx) + ":" + username
}

// Check returns ErrTooManyAttempts once the failure budget is spent.
func (t *LoginThrottle) Check(ctx context.Context, username string) error {
	const op = "auth.LoginThrottle.Check"
	if t == nil || t.max <= 0 {
		return nil
	}
	n, err := t.store.Failures(ctx, t.key(ctx, username))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n >= t.max {
		return ErrTooManyAttempts
	}
	return nil
}

func (t *LoginThrottle) Fail(ctx context.Context, username string) error {
	const op = "auth.LoginThrottle.Fail"
	if t == nil || t.max <= 0 {
		return nil
	}
	if _, err := t.store.RecordFailure(ctx, t.key(ctx, username), t.window); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *LoginThrottle) Succeed(ctx context.Context, username string) error {
	const op = "auth.LoginThrottle.Succeed"
	if t == nil || t.max <= 0 {
		return nil
	}
	if err := t.store.Reset(ctx, t.key(ctx, username)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MemoryAttemptStore is an AttemptStore for single-instance deployments.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]attemptEntry
	now     func() time.Time
}

type attemptEntry struct {
	count   int
	expires time.Time
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{entries: make(map[string]attemptEntry), now: time.Now}
}

func (m *MemoryAttemptStore) Failures(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(key).count, nil
}

func (m *MemoryAttemptStore) RecordFailure(_ context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e.count == 0 {
		e.expires = m.now().Add(window)
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// live returns the entry for key, dropping it if expired. Callers hold mu.
func (m *MemoryAttemptStore) live(key string) attemptEntry {
	e, ok := m.entries[key]
	if !ok {
		return attemptEntry{}
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return attemptEntry{}
	}
	return e
}
