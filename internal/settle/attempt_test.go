package settle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttempt_SettlesOnce(t *testing.T) {
	a := New[string]()

	assert.True(t, a.Resolve("first"))
	assert.False(t, a.Resolve("second"))
	assert.False(t, a.Reject(errors.New("late")))

	v, err := a.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestAttempt_RejectWins(t *testing.T) {
	a := New[string]()
	boom := errors.New("boom")

	assert.True(t, a.Reject(boom))
	assert.False(t, a.Resolve("token"))

	v, err := a.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, v)
}

func TestAttempt_ConcurrentSettlement(t *testing.T) {
	a := New[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if a.Resolve(i) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestAttempt_TimerExpires(t *testing.T) {
	a := New[string]()
	var expired atomic.Int32

	a.StartTimer(20*time.Millisecond, func() { expired.Add(1) })
	assert.True(t, a.TimerActive())

	_, err := a.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, a.TimerActive())

	assert.False(t, a.Resolve("late"))
	_, err = a.Result()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAttempt_ExpiryCallbackCannotReplaceTimeout(t *testing.T) {
	a := New[string]()
	settledBefore := make(chan bool, 1)

	// onExpire mimics a provider whose cancel synchronously reports a
	// cancellation back into the attempt.
	a.StartTimer(10*time.Millisecond, func() {
		settledBefore <- a.Settled()
		a.Reject(errors.New("cancelled by provider"))
	})

	_, err := a.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, <-settledBefore)

	_, err = a.Result()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAttempt_SettlementClearsTimer(t *testing.T) {
	a := New[string]()
	var expired atomic.Int32

	a.StartTimer(30*time.Millisecond, func() { expired.Add(1) })
	require.True(t, a.Resolve("token"))
	assert.False(t, a.TimerActive())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), expired.Load())

	v, err := a.Result()
	require.NoError(t, err)
	assert.Equal(t, "token", v)
}

func TestAttempt_StartTimerAfterSettle(t *testing.T) {
	a := New[string]()
	a.Resolve("token")
	a.StartTimer(time.Millisecond, func() { t.Error("timer must not run") })
	assert.False(t, a.TimerActive())
	time.Sleep(10 * time.Millisecond)
}

func TestAttempt_WaitContextCancelled(t *testing.T) {
	a := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, a.Settled())
	assert.False(t, a.Resolve("late"))
}
