package cache

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

// fakeClock is a manually-advanced clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetOrLoad_SecondCallServedFromCache(t *testing.T) {
	c := New(Options{})
	var calls int32
	loader := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v, err := c.GetOrLoad(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.GetOrLoad(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_ExpiryReinvokesLoader(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{TTL: 10 * time.Minute, Clock: clock.Now})
	var calls int32
	loader := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, err := c.GetOrLoad(context.Background(), "k", loader)
	require.NoError(t, err)

	clock.Advance(10*time.Minute + time.Second)

	_, err = c.GetOrLoad(context.Background(), "k", loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_SlidingExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{TTL: 10 * time.Minute, Clock: clock.Now})
	var calls int32
	loader := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, err := c.GetOrLoad(context.Background(), "k", loader)
	require.NoError(t, err)

	// Each access inside the window resets the timer, so 3 × 6 minutes of
	// elapsed time never expires the entry.
	for i := 0; i < 3; i++ {
		clock.Advance(6 * time.Minute)
		_, err = c.GetOrLoad(context.Background(), "k", loader)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_FailedLoadNotStored(t *testing.T) {
	c := New(Options{})
	boom := errors.New("store exploded")
	var calls int32

	_, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	// Next lookup retries the load.
	v, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_ConcurrentSameKey(t *testing.T) {
	c := New(Options{})
	var calls int32
	loader := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return "shared", nil
	}

	const goroutines = 16
	var wg sync.WaitGroup
	results := make([]any, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrLoad(context.Background(), "k", loader)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
	// Singleflight collapses concurrent misses into one execution.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, c.Len())
}

func TestEviction_BoundedSize(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{MaxEntries: 8, Clock: clock.Now})

	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		clock.Advance(time.Second) // distinct lastUsed per entry
		_, err := c.GetOrLoad(context.Background(), key, func(ctx context.Context) (any, error) {
			return i, nil
		})
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(), 8)
}

func TestEviction_DropsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{MaxEntries: 4, Clock: clock.Now})
	load := func(v any) LoaderFunc {
		return func(ctx context.Context) (any, error) { return v, nil }
	}

	for _, k := range []string{"a", "b", "c", "d"} {
		clock.Advance(time.Second)
		_, err := c.GetOrLoad(context.Background(), k, load(k))
		require.NoError(t, err)
	}

	// Touch "a" so it is the most recently used.
	clock.Advance(time.Second)
	_, err := c.GetOrLoad(context.Background(), "a", load("never"))
	require.NoError(t, err)

	// Overflow triggers eviction of the LRU tail; "a" must survive.
	clock.Advance(time.Second)
	_, err = c.GetOrLoad(context.Background(), "e", load("e"))
	require.NoError(t, err)

	var calls int32
	_, err = c.GetOrLoad(context.Background(), "a", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "reloaded", nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), `"a" should still be cached`)
}

func TestRemoveAndFlush(t *testing.T) {
	c := New(Options{})
	for _, k := range []string{"x", "y"} {
		_, err := c.GetOrLoad(context.Background(), k, func(ctx context.Context) (any, error) {
			return k, nil
		})
		require.NoError(t, err)
	}

	c.Remove("x")
	assert.Equal(t, 1, c.Len())
	c.Remove("x") // idempotent

	c.Flush()
	assert.Equal(t, 0, c.Len())
}

type countingMetrics struct {
	hits, misses, evicted int32
}

func (m *countingMetrics) Hit()        { atomic.AddInt32(&m.hits, 1) }
func (m *countingMetrics) Miss()       { atomic.AddInt32(&m.misses, 1) }
func (m *countingMetrics) Evict(n int) { atomic.AddInt32(&m.evicted, int32(n)) }

func TestMetricsCounted(t *testing.T) {
	m := &countingMetrics{}
	c := New(Options{Metrics: m})
	loader := func(ctx context.Context) (any, error) { return 1, nil }

	_, _ = c.GetOrLoad(context.Background(), "k", loader)
	_, _ = c.GetOrLoad(context.Background(), "k", loader)

	assert.Equal(t, int32(1), atomic.LoadInt32(&m.misses))
	assert.Equal(t, int32(1), atomic.LoadInt32(&m.hits))
}

func TestLoadShared_CommittedValueSkipsLoader(t *testing.T) {
	c := New(Options{})

	// A value committed between a caller's lookup and its flight must come
	// back marked cached, without re-running the loader.
	c.put("k", "committed")

	res, err := c.loadShared(context.Background(), "k", func(ctx context.Context) (any, error) {
		t.Fatal("loader must not run when the flight re-check hits")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, res.cached)
	assert.Equal(t, "committed", res.value)
}

func TestMetrics_AccountsEveryCall(t *testing.T) {
	m := &countingMetrics{}
	c := New(Options{Metrics: m})
	loader := func(ctx context.Context) (any, error) {
		time.Sleep(10 * time.Millisecond) // widen the race window
		return "shared", nil
	}

	const goroutines = 16
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrLoad(context.Background(), "k", loader)
		}()
	}
	wg.Wait()

	// Every call lands in exactly one bucket, including callers served by a
	// flight that committed while they waited.
	total := atomic.LoadInt32(&m.hits) + atomic.LoadInt32(&m.misses)
	assert.Equal(t, int32(goroutines), total)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&m.misses), int32(1))
}
