package session

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStartsLoading(t *testing.T) {
	s := NewState()
	assert.True(t, s.IsLoading())
	assert.False(t, s.IsAuthenticated())

	s.SetAuthenticated(true)
	assert.False(t, s.IsLoading())
	assert.True(t, s.IsAuthenticated())
}

func TestStateSubscribeNotifiesOnChange(t *testing.T) {
	s := NewState()
	var calls atomic.Int32
	var last atomic.Bool
	unsubscribe := s.Subscribe(func(v bool) {
		calls.Add(1)
		last.Store(v)
	})

	s.SetAuthenticated(false) // ends loading, counts as a decision
	s.SetAuthenticated(false)
	s.SetAuthenticated(true)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, last.Load())

	unsubscribe()
	s.SetAuthenticated(false)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProcessLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refresh.lock")
	a := NewProcessLock(path, time.Second)
	b := NewProcessLock(path, 50*time.Millisecond)

	unlock, held, err := a.Lock(context.Background())
	require.NoError(t, err)
	require.True(t, held)

	// Fail-open: the second holder times out without an error.
	unlockB, heldB, err := b.Lock(context.Background())
	require.NoError(t, err)
	assert.False(t, heldB)
	unlockB()

	unlock()

	unlockB, heldB, err = b.Lock(context.Background())
	require.NoError(t, err)
	assert.True(t, heldB)
	unlockB()
}

func TestProcessLockHonorsCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refresh.lock")
	unlock, held, err := NewProcessLock(path, time.Second).Lock(context.Background())
	require.NoError(t, err)
	require.True(t, held)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, held, err = NewProcessLock(path, time.Second).Lock(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, held)
}

func TestMarkerRoundTrip(t *testing.T) {
	m := NewMarker(t.TempDir())

	rec, err := m.Read()
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, m.Record(EventLogin, "https://api.example.com"))
	rec, err = m.Read()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, EventLogin, rec.Event)
	assert.Equal(t, "https://api.example.com", rec.Origin)
	assert.False(t, rec.At.IsZero())
}

func TestWatcherAppliesForeignLogout(t *testing.T) {
	dir := t.TempDir()
	m := NewMarker(dir)
	state := NewState()
	state.SetAuthenticated(true)

	w, err := NewWatcher(m, state, "https://api.example.com", nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Own-process records are ignored.
	require.NoError(t, m.Record(EventLogout, "https://api.example.com"))
	// Records for a different origin are ignored.
	require.NoError(t, m.Write(Record{Event: EventLogout, Origin: "https://other.example.com", PID: 1, At: time.Now()}))
	require.NoError(t, m.Write(Record{Event: EventLogout, Origin: "https://api.example.com", PID: 1, At: time.Now()}))

	select {
	case rec := <-w.Events():
		assert.Equal(t, EventLogout, rec.Event)
		assert.Equal(t, 1, rec.PID)
		assert.Equal(t, "https://api.example.com", rec.Origin)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the logout")
	}
	assert.False(t, state.IsAuthenticated())
}
