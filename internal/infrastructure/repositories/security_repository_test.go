package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
)

func TestSecurityRepositoryImpl_GetMissing(t *testing.T) {
	repo := NewSecurityRepository(setupTestDB(t))

	sec, err := repo.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), sec.UserID)
	assert.False(t, sec.PINSet())
	assert.Nil(t, sec.BlockedUntil)
}

func TestSecurityRepositoryImpl_MutatePersists(t *testing.T) {
	repo := NewSecurityRepository(setupTestDB(t))
	ctx := context.Background()
	blocked := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	err := repo.Mutate(ctx, 1, func(sec *domain.UserSecurity) error {
		sec.PINHash = "digest"
		sec.FailedAttempts = 10
		sec.BlockedUntil = &blocked
		return nil
	})
	require.NoError(t, err)

	sec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "digest", sec.PINHash)
	assert.Equal(t, 10, sec.FailedAttempts)
	require.NotNil(t, sec.BlockedUntil)
	assert.True(t, sec.BlockedUntil.Equal(blocked))

	require.NoError(t, repo.Mutate(ctx, 1, func(sec *domain.UserSecurity) error {
		sec.FailedAttempts = 0
		sec.BlockedUntil = nil
		return nil
	}))
	sec, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, sec.FailedAttempts)
	assert.Nil(t, sec.BlockedUntil)
	assert.Equal(t, "digest", sec.PINHash)
}

func TestSecurityRepositoryImpl_MutateRollsBackOnError(t *testing.T) {
	repo := NewSecurityRepository(setupTestDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, repo.Mutate(ctx, 1, func(sec *domain.UserSecurity) error {
		sec.FailedAttempts = 3
		return nil
	}))

	err := repo.Mutate(ctx, 1, func(sec *domain.UserSecurity) error {
		sec.FailedAttempts = 9
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, sec.FailedAttempts)
}

func TestSecurityRepositoryImpl_ConcurrentMutateSerializes(t *testing.T) {
	repo := NewSecurityRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Mutate(ctx, 5, func(sec *domain.UserSecurity) error {
		sec.FailedAttempts = domain.PINMaxFailedAttempts - 1
		return nil
	}))

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		trips int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Mutate(ctx, 5, func(sec *domain.UserSecurity) error {
				state := sec.Counter()
				tripped := domain.PINCounter.Register(&state, now)
				sec.ApplyCounter(state)
				if tripped {
					mu.Lock()
					trips++
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sec, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.PINMaxFailedAttempts, sec.FailedAttempts)
	assert.Equal(t, 1, trips)
	require.NotNil(t, sec.BlockedUntil)
	assert.True(t, sec.BlockedUntil.Equal(now.Add(domain.PINLockoutDuration)))
}
