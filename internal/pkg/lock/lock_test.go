package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore 是 Store 的进程内实现，语义与 Redis 版一致（含 TTL 过期）。
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	token    string
	expireAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) SetIfAbsent(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && time.Now().Before(e.expireAt) {
		return false, nil
	}
	s.entries[key] = memoryEntry{token: token, expireAt: time.Now().Add(ttl)}
	return true, nil
}

func (s *memoryStore) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expireAt) || e.token != token {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *memoryStore) CompareAndExtend(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expireAt) || e.token != token {
		return false, nil
	}
	e.expireAt = e.expireAt.Add(ttl)
	s.entries[key] = e
	return true, nil
}

func (s *memoryStore) holds(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && time.Now().Before(e.expireAt)
}

func TestAcquire_MutualExclusion(t *testing.T) {
	m := NewManager(newMemoryStore())
	ctx := context.Background()

	token1, ok1, err := m.Acquire(ctx, "order:assign:42", time.Minute)
	require.NoError(t, err)
	require.True(t, ok1)
	require.NotEmpty(t, token1)

	_, ok2, err := m.Acquire(ctx, "order:assign:42", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok2)

	// 其他资源不受影响
	_, ok3, err := m.Acquire(ctx, "order:assign:43", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok3)
}

func TestAcquire_ConcurrentWinnersExactlyOne(t *testing.T) {
	m := NewManager(newMemoryStore())
	ctx := context.Background()

	const contenders = 16
	var wg sync.WaitGroup
	wins := make(chan string, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, ok, err := m.Acquire(ctx, "order:assign:7", time.Minute); err == nil && ok {
				wins <- token
			}
		}()
	}
	wg.Wait()
	close(wins)

	var tokens []string
	for tok := range wins {
		tokens = append(tokens, tok)
	}
	assert.Len(t, tokens, 1)
}

func TestRelease_TokenOwnership(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	token, ok, err := m.Acquire(ctx, "r1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// 错误的 token 永远删不掉锁
	released, err := m.Release(ctx, "r1", "not-the-token")
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, store.holds("lock:r1"))

	// 正确的 token 恰好删一次
	released, err = m.Release(ctx, "r1", token)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = m.Release(ctx, "r1", token)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestExtend(t *testing.T) {
	m := NewManager(newMemoryStore())
	ctx := context.Background()

	token, ok, err := m.Acquire(ctx, "r2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := m.Extend(ctx, "r2", token, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	extended, err = m.Extend(ctx, "r2", "wrong", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestAcquireWithRetry_EventuallyWins(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	// 先用一个 150ms 后过期的锁占住资源
	_, ok, err := m.Acquire(ctx, "r3", 150*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	policy := RetryPolicy{MaxRetries: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond, Multiplier: 2}
	token, ok, err := m.AcquireWithRetry(ctx, "r3", time.Minute, policy)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
}

func TestAcquireWithRetry_GivesUp(t *testing.T) {
	m := NewManager(newMemoryStore())
	ctx := context.Background()

	_, ok, err := m.Acquire(ctx, "r4", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	_, ok, err = m.AcquireWithRetry(ctx, "r4", time.Minute, policy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	boom := assert.AnError
	err := m.WithLock(ctx, "r5", time.Minute, func(ctx context.Context) error {
		assert.True(t, store.holds("lock:r5"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	// fn 失败也必须归还锁
	assert.False(t, store.holds("lock:r5"))
}

func TestWithLock_Contention(t *testing.T) {
	m := NewManager(newMemoryStore())
	ctx := context.Background()

	_, ok, err := m.Acquire(ctx, "r6", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	err = m.WithLock(ctx, "r6", time.Minute, func(ctx context.Context) error {
		t.Fatal("fn must not run when the lock is held elsewhere")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
}
