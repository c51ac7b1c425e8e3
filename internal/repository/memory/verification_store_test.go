package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

// fakeClock - управляемые часы для тестов TTL и окон
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestVerificationStore_PutGetInvalidate(t *testing.T) {
	store := NewVerificationStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, entity.PurposeImage, "10.0.0.1", "AB3X", time.Minute))

	code, err := store.Get(ctx, entity.PurposeImage, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "AB3X", code)

	// тот же subject, другое назначение - отдельный ключ
	_, err = store.Get(ctx, entity.PurposeEmail, "10.0.0.1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.Invalidate(ctx, entity.PurposeImage, "10.0.0.1"))
	exists, err := store.Exists(ctx, entity.PurposeImage, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVerificationStore_TTL(t *testing.T) {
	clock := newFakeClock()
	store := NewVerificationStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, entity.PurposeEmail, "a@b.com", "123456", 5*time.Minute))

	clock.Advance(5*time.Minute - time.Second)
	exists, err := store.Exists(ctx, entity.PurposeEmail, "a@b.com")
	require.NoError(t, err)
	assert.True(t, exists)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, entity.PurposeEmail, "a@b.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVerificationStore_PutResetsTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewVerificationStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, entity.PurposeEmail, "a@b.com", "111111", 5*time.Minute))
	clock.Advance(4 * time.Minute)
	require.NoError(t, store.Put(ctx, entity.PurposeEmail, "a@b.com", "222222", 5*time.Minute))
	clock.Advance(4 * time.Minute)

	code, err := store.Get(ctx, entity.PurposeEmail, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", code)
}

func TestVerificationStore_CheckAndIncrement_FixedWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewVerificationStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := store.CheckAndIncrement(ctx, entity.ScopeImageIP, "10.0.0.1", 10, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "вызов %d должен пройти", i+1)
		clock.Advance(time.Second)
	}

	ok, err := store.CheckAndIncrement(ctx, entity.ScopeImageIP, "10.0.0.1", 10, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "11-й вызов в окне отклоняется")

	// окно отсчитывается от первого инкремента, а не скользит
	clock.Advance(50 * time.Second)
	ok, err = store.CheckAndIncrement(ctx, entity.ScopeImageIP, "10.0.0.1", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerificationStore_CheckAndIncrement_ScopesIndependent(t *testing.T) {
	store := NewVerificationStore()
	ctx := context.Background()

	ok, err := store.CheckAndIncrement(ctx, entity.ScopeEmailRecipient, "a@b.com", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndIncrement(ctx, entity.ScopeEmailRecipient, "a@b.com", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CheckAndIncrement(ctx, entity.ScopeEmailIP, "a@b.com", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerificationStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	store := NewVerificationStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, entity.PurposeImage, "10.0.0.1", "AB3X", time.Minute))
	require.NoError(t, store.Put(ctx, entity.PurposeEmail, "a@b.com", "123456", 10*time.Minute))
	_, err := store.CheckAndIncrement(ctx, entity.ScopeImageIP, "10.0.0.1", 10, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, "sid", 30*time.Second))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 3, store.Sweep())

	code, err := store.Get(ctx, entity.PurposeEmail, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
}

func TestVerificationStore_Revocation(t *testing.T) {
	clock := newFakeClock()
	store := NewVerificationStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "sid", time.Minute))
	revoked, err := store.IsRevoked(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock.Advance(time.Minute)
	revoked, err = store.IsRevoked(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestVerificationStore_ConcurrentCheckAndIncrement(t *testing.T) {
	store := NewVerificationStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CheckAndIncrement(ctx, entity.ScopeImageIP, "10.0.0.1", 10, time.Minute)
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestVerificationStore_RunSweeper_StopsOnCancel(t *testing.T) {
	store := NewVerificationStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 10*time.Millisecond, nil)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweeper не завершился после отмены контекста")
	}
}
