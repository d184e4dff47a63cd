package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_BurstThenRefill(t *testing.T) {
	l := New(5, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, l.Acquire(ctx, 0), "acquire %d within burst", i)
	}
	assert.False(t, l.Acquire(ctx, 0), "sixth immediate acquire must fail")
	assert.EqualValues(t, 1, l.Blocked())

	time.Sleep(250 * time.Millisecond)
	assert.True(t, l.Acquire(ctx, 0), "a token is refilled after 0.2s")
}

func TestAcquire_WaitsForToken(t *testing.T) {
	l := New(10, 1)
	ctx := context.Background()
	require.True(t, l.Acquire(ctx, 0))

	start := time.Now()
	require.True(t, l.Acquire(ctx, time.Second))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, l.Blocked())
}

func TestAcquire_TimeoutShorterThanRefill(t *testing.T) {
	l := New(1, 1)
	ctx := context.Background()
	require.True(t, l.Acquire(ctx, 0))

	start := time.Now()
	assert.False(t, l.Acquire(ctx, 50*time.Millisecond))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "a hopeless wait gives up immediately")
	assert.EqualValues(t, 1, l.Blocked())
}

func TestAcquire_ContextCanceled(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Acquire(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, l.Acquire(ctx, 5*time.Second))
	assert.Zero(t, l.Blocked())
}

func TestAcquire_ConcurrentCallersShareOneBucket(t *testing.T) {
	l := New(0.5, 5)
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(ctx, 0) {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, granted.Load())
	assert.EqualValues(t, 35, l.Blocked())
	assert.GreaterOrEqual(t, l.Tokens(), 0.0)
	assert.LessOrEqual(t, l.Tokens(), 5.0)
}

func TestAdaptive_LowersRateAfterRepeatedBlocks(t *testing.T) {
	l := New(100, 1, WithAdaptive(2, 10, 0.8))
	ctx := context.Background()

	require.True(t, l.Acquire(ctx, 0))
	for i := 0; i < 3; i++ {
		l.Acquire(ctx, 0)
	}

	assert.InDelta(t, 80, l.Rate(), 1e-9)
	assert.Empty(t, l.misses, "counter resets after adjusting")
}

func TestAdaptive_DisabledKeepsRate(t *testing.T) {
	l := New(100, 1)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		l.Acquire(ctx, 0)
	}
	assert.InDelta(t, 100, l.Rate(), 1e-9)
}
