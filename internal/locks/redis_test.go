package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leaseStore answers the handful of commands RedisLocker issues
type leaseStore struct {
	redis.Cmdable

	mu        sync.Mutex
	holders   map[string]string
	refreshes int
}

func newLeaseStore() *leaseStore {
	return &leaseStore{holders: make(map[string]string)}
}

func (s *leaseStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holders[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.holders[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (s *leaseStore) EvalSha(_ context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders[keys[0]] != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch sha {
	case refreshScript.Hash():
		s.refreshes++
	case releaseScript.Hash():
		delete(s.holders, keys[0])
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (s *leaseStore) refreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *leaseStore) steal(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[keyPrefix+key] = "someone-else"
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	store := newLeaseStore()
	locker := NewRedisLocker(store, 30*time.Millisecond, time.Millisecond)

	release, err := locker.Acquire(context.Background(), "alice")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.refreshCount() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, release(context.Background()))
	afterRelease := store.refreshCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, afterRelease, store.refreshCount())
	assert.Empty(t, store.holders)

	// double release is a no-op
	require.NoError(t, release(context.Background()))
}

func TestRedisLockerStopsRenewingLostLease(t *testing.T) {
	store := newLeaseStore()
	locker := NewRedisLocker(store, 30*time.Millisecond, time.Millisecond)

	release, err := locker.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	store.steal("alice")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.refreshCount())

	require.NoError(t, release(context.Background()))
	assert.Equal(t, "someone-else", store.holders[keyPrefix+"alice"])
}
