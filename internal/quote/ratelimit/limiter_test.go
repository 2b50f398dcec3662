package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSlot_BelowCeilingIsImmediate(t *testing.T) {
	l := New(map[string]Budget{
		"finnhub": MinuteBudget(5),
	})

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.AcquireSlot(context.Background(), "finnhub"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireSlot_UnknownProviderIsNotGated(t *testing.T) {
	l := New(map[string]Budget{})
	require.NoError(t, l.AcquireSlot(context.Background(), "anything"))
}

func TestAcquireSlot_WaitsForWindowReset(t *testing.T) {
	l := New(map[string]Budget{
		"coingecko": {Minute: Window{Limit: 1, Span: 60 * time.Millisecond}},
	})

	require.NoError(t, l.AcquireSlot(context.Background(), "coingecko"))

	start := time.Now()
	require.NoError(t, l.AcquireSlot(context.Background(), "coingecko"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"second acquire must wait for the window to roll")
}

func TestAcquireSlot_SlidingWindowBlocksBoundaryBurst(t *testing.T) {
	l := New(map[string]Budget{
		"coingecko": {Minute: Window{Limit: 2, Span: 200 * time.Millisecond}},
	})
	ctx := context.Background()

	require.NoError(t, l.AcquireSlot(ctx, "coingecko"))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, l.AcquireSlot(ctx, "coingecko"))
	time.Sleep(70 * time.Millisecond)

	// The first grant has slid out of the window, the second has not: one
	// slot is free immediately.
	start := time.Now()
	require.NoError(t, l.AcquireSlot(ctx, "coingecko"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// A fourth grant would put three calls inside one window-sized span, so
	// it must wait for the second grant to age out.
	start = time.Now()
	require.NoError(t, l.AcquireSlot(ctx, "coingecko"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond,
		"grants right after older ones expire must still respect the sliding span")
}

func TestAcquireSlot_FailsAfterBoundedRetries(t *testing.T) {
	l := New(map[string]Budget{
		"alphavantage": MinuteBudget(1),
	}, WithMaxRetries(0))

	require.NoError(t, l.AcquireSlot(context.Background(), "alphavantage"))

	err := l.AcquireSlot(context.Background(), "alphavantage")
	require.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestAcquireSlot_DailyCeiling(t *testing.T) {
	l := New(map[string]Budget{
		"alphavantage": DailyBudget(10, 2),
	}, WithMaxRetries(0))

	require.NoError(t, l.AcquireSlot(context.Background(), "alphavantage"))
	require.NoError(t, l.AcquireSlot(context.Background(), "alphavantage"))

	err := l.AcquireSlot(context.Background(), "alphavantage")
	require.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestAcquireSlot_ContextCancellation(t *testing.T) {
	l := New(map[string]Budget{
		"coingecko": MinuteBudget(1),
	})
	require.NoError(t, l.AcquireSlot(context.Background(), "coingecko"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.AcquireSlot(ctx, "coingecko")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireSlot_NeverExceedsCeilingConcurrently(t *testing.T) {
	l := New(map[string]Budget{
		"finnhub": MinuteBudget(5),
	}, WithMaxRetries(0))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
		rejected int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.AcquireSlot(context.Background(), "finnhub")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				acquired++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, acquired, "exactly the ceiling may pass")
	assert.Equal(t, 1, rejected)
}

func TestUsage_Snapshot(t *testing.T) {
	l := New(map[string]Budget{
		"alphavantage": DailyBudget(5, 25),
		"coingecko":    MinuteBudget(10),
	})

	require.NoError(t, l.AcquireSlot(context.Background(), "coingecko"))
	require.NoError(t, l.AcquireSlot(context.Background(), "coingecko"))
	require.NoError(t, l.AcquireSlot(context.Background(), "alphavantage"))

	usage := l.Usage()
	require.Len(t, usage, 2)

	assert.Equal(t, "alphavantage", usage[0].Provider)
	assert.Equal(t, 1, usage[0].WindowCalls)
	assert.Equal(t, 5, usage[0].WindowLimit)
	assert.Equal(t, 1, usage[0].DailyCalls)
	assert.Equal(t, 25, usage[0].DailyLimit)
	require.NotNil(t, usage[0].DailyResetAt)

	assert.Equal(t, "coingecko", usage[1].Provider)
	assert.Equal(t, 2, usage[1].WindowCalls)
	assert.Equal(t, 10, usage[1].WindowLimit)
	assert.Nil(t, usage[1].DailyResetAt)
	assert.True(t, usage[1].WindowResetAt.After(time.Now()))
}
