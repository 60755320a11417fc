package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/unscramble/internal/game"
)

func newEngine(t *testing.T) *game.Engine {
	t.Helper()
	e, err := game.NewEngine([]string{"cat", "dog", "owl"}, game.Config{MaxRounds: 2, ScoreIncrement: 20, MaxAttempts: 100})
	require.NoError(t, err)
	return e
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s := NewSession("abc", newEngine(t), now)

	_, err := st.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Save(ctx, s))
	got, err := st.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	require.NoError(t, st.Delete(ctx, "abc"))
	require.NoError(t, st.Delete(ctx, "abc"))
	_, err = st.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, st.Len())
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	idle := NewSession("idle", newEngine(t), start)
	active := NewSession("active", newEngine(t), start)
	require.NoError(t, st.Save(ctx, idle))
	require.NoError(t, st.Save(ctx, active))

	active.Touch(start.Add(20 * time.Minute))
	assert.Equal(t, start.Add(20*time.Minute), active.LastSeen())

	n := st.Sweep(ctx, start.Add(10*time.Minute))
	assert.Equal(t, 1, n)

	_, err := st.Get(ctx, "idle")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(ctx, "active")
	assert.NoError(t, err)
}

func TestRunReaper(t *testing.T) {
	st := NewMemoryStore()
	old := NewSession("old", newEngine(t), time.Now().Add(-time.Hour))
	require.NoError(t, st.Save(context.Background(), old))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunReaper(ctx, st, 20*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return st.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
