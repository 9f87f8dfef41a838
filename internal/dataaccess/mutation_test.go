package dataaccess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMutationRollbackReceivesMutateContext(t *testing.T) {
	type snapshot struct{ previous []string }

	boom := errors.New("boom")
	var given any
	var rolledBack any

	m := NewMutation(NewCache(), MutationConfig[string, int]{
		Mutate: func(context.Context, string) (int, error) { return 0, boom },
		OnMutate: func(vars string) any {
			given = &snapshot{previous: []string{"a", "b", vars}}
			return given
		},
		OnRollback: func(mutateCtx any) { rolledBack = mutateCtx },
	})

	_, err := m.Do(context.Background(), "c")
	require.ErrorIs(t, err, boom)

	// The rollback value is the identical value OnMutate returned.
	require.Same(t, given, rolledBack)
}

func TestMutationSuccessInvalidatesPrefixes(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	cache.Set(JoinKey([]string{"orders", "1"}), "stale", now)
	cache.Set(JoinKey([]string{"riders", "1"}), "keep", now)

	var succeeded int
	m := NewMutation(cache, MutationConfig[int, string]{
		Mutate:         func(_ context.Context, v int) (string, error) { return "ok", nil },
		OnSuccess:      func(string) { succeeded++ },
		InvalidateKeys: [][]string{{"orders"}},
	})

	data, err := m.Do(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "ok", data)
	require.Equal(t, 1, succeeded)

	_, _, hit := cache.Get(JoinKey([]string{"orders", "1"}))
	require.False(t, hit)
	_, _, hit = cache.Get(JoinKey([]string{"riders", "1"}))
	require.True(t, hit)
}

func TestMutationSettledFiresOnBothOutcomes(t *testing.T) {
	settled := 0
	failingThenOK := 0
	m := NewMutation[int, int](NewCache(), MutationConfig[int, int]{
		Mutate: func(context.Context, int) (int, error) {
			failingThenOK++
			if failingThenOK == 1 {
				return 0, errors.New("first call fails")
			}
			return 1, nil
		},
		OnSettled: func() { settled++ },
	})

	_, err := m.Do(context.Background(), 0)
	require.Error(t, err)
	_, err = m.Do(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, settled)
}

func TestMutationResetClearsStateWithoutCancelling(t *testing.T) {
	boom := errors.New("boom")
	m := NewMutation(NewCache(), MutationConfig[int, int]{
		Mutate: func(context.Context, int) (int, error) { return 0, boom },
	})

	_, err := m.Do(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	_, snapErr := m.Snapshot()
	require.ErrorIs(t, snapErr, boom)

	m.Reset()
	data, snapErr := m.Snapshot()
	require.NoError(t, snapErr)
	require.Zero(t, data)
	require.False(t, m.IsLoading())
}
