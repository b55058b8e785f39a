package swr

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keksclan/swrgate/cache"
)

type item struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

func newStore(t *testing.T) *cache.L1 {
	t.Helper()
	s, err := cache.NewL1(100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// versionedFetcher returns a fetcher yielding version 1, 2, 3... per call.
func versionedFetcher(calls *atomic.Int32) Fetcher[item] {
	return func(_ context.Context) (item, error) {
		n := calls.Add(1)
		return item{Version: int(n), Name: "alice"}, nil
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	hits        int
	misses      int
	revalidated []error
}

func (o *recordingObserver) OnHit(string)  { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *recordingObserver) OnMiss(string) { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *recordingObserver) OnRevalidate(_ string, err error) {
	o.mu.Lock()
	o.revalidated = append(o.revalidated, err)
	o.mu.Unlock()
}

func TestGet_MissFetchesAndStores(t *testing.T) {
	store := newStore(t)
	c := New[item](store)
	var calls atomic.Int32

	v, err := c.Get(t.Context(), "user:1", versionedFetcher(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, int32(1), calls.Load())

	raw, ok, err := store.Get(t.Context(), "user:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":1,"name":"alice"}`, string(raw))
}

func TestGet_HitServesStaleThenRevalidates(t *testing.T) {
	obs := &recordingObserver{}
	c := New[item](newStore(t), WithObserver(obs))
	var calls atomic.Int32
	fetch := versionedFetcher(&calls)

	first, err := c.Get(t.Context(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := c.Get(t.Context(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Version, "hit must return the stored value, not the refreshed one")

	c.Wait()
	assert.Equal(t, int32(2), calls.Load())

	third, err := c.Get(t.Context(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Version, "refresh result must be visible to the next read")
	c.Wait()

	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, []error{nil, nil}, obs.revalidated)
}

func TestGet_HitDoesNotWaitForRefresh(t *testing.T) {
	c := New[item](newStore(t))
	_, err := c.Get(t.Context(), "k", func(context.Context) (item, error) { return item{Version: 1}, nil })
	require.NoError(t, err)

	release := make(chan struct{})
	done := make(chan item, 1)
	go func() {
		v, _ := c.Get(t.Context(), "k", func(context.Context) (item, error) {
			<-release
			return item{Version: 2}, nil
		})
		done <- v
	}()

	select {
	case v := <-done:
		assert.Equal(t, 1, v.Version)
	case <-time.After(time.Second):
		t.Fatal("hit blocked on a slow refresh")
	}
	close(release)
	c.Wait()
}

func TestGet_FailedRefreshKeepsStaleValue(t *testing.T) {
	var logs bytes.Buffer
	obs := &recordingObserver{}
	c := New[item](newStore(t), WithObserver(obs), WithLogger(zerolog.New(&logs)))

	_, err := c.Get(t.Context(), "k", func(context.Context) (item, error) { return item{Version: 1}, nil })
	require.NoError(t, err)

	errDown := errors.New("upstream down")
	failing := func(context.Context) (item, error) { return item{}, errDown }

	v, err := c.Get(t.Context(), "k", failing)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	c.Wait()

	v, err = c.Get(t.Context(), "k", failing)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version, "a failed refresh must not evict or alter the entry")
	c.Wait()

	require.Len(t, obs.revalidated, 2)
	assert.ErrorIs(t, obs.revalidated[0], errDown)
	assert.Contains(t, logs.String(), "SWR revalidation failed")
}

func TestGet_MissErrorIsNotCached(t *testing.T) {
	c := New[item](newStore(t))
	errDown := errors.New("upstream down")
	var calls atomic.Int32

	failing := func(context.Context) (item, error) {
		calls.Add(1)
		return item{}, errDown
	}

	_, err := c.Get(t.Context(), "k", failing)
	require.ErrorIs(t, err, errDown)
	_, err = c.Get(t.Context(), "k", failing)
	require.ErrorIs(t, err, errDown)

	assert.Equal(t, int32(2), calls.Load(), "each miss must fetch again")
}

func TestGet_RefreshOutlivesRequestContext(t *testing.T) {
	c := New[item](newStore(t))
	_, err := c.Get(t.Context(), "k", func(context.Context) (item, error) { return item{Version: 1}, nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	var refreshErr atomic.Value
	_, err = c.Get(ctx, "k", func(ctx context.Context) (item, error) {
		time.Sleep(20 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			refreshErr.Store(err)
			return item{}, err
		}
		return item{Version: 2}, nil
	})
	require.NoError(t, err)
	cancel()
	c.Wait()

	assert.Nil(t, refreshErr.Load())
	v, _ := c.Get(t.Context(), "k", func(context.Context) (item, error) { return item{Version: 3}, nil })
	assert.Equal(t, 2, v.Version)
	c.Wait()
}

func TestGet_EveryCallFetchesOnceWithoutCoalescing(t *testing.T) {
	c := New[item](newStore(t))
	var calls atomic.Int32
	fetch := versionedFetcher(&calls)

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(t.Context(), "k", fetch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	c.Wait()

	assert.Equal(t, int32(n), calls.Load())
}

func TestGet_CoalescesConcurrentMisses(t *testing.T) {
	c := New[item](newStore(t), WithCoalescing(true))
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (item, error) {
		calls.Add(1)
		<-release
		return item{Version: 1}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(t.Context(), "k", fetch)
			assert.NoError(t, err)
			assert.Equal(t, 1, v.Version)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	c.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_CoalescedFetchSurvivesFirstCallerCancel(t *testing.T) {
	c := New[item](newStore(t), WithCoalescing(true))
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context) (item, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return item{Version: 7}, nil
		case <-ctx.Done():
			return item{}, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(t.Context())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Get(ctxA, "k", fetch)
		errA <- err
	}()
	<-started

	type result struct {
		v   item
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.Get(t.Context(), "k", fetch)
		resB <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 7, b.v.Version)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_UndecodableEntryIsAMiss(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(t.Context(), "k", []byte("not json"), 0))

	c := New[item](store)
	var calls atomic.Int32
	v, err := c.Get(t.Context(), "k", versionedFetcher(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWait_RecoversRefreshPanic(t *testing.T) {
	var logs bytes.Buffer
	c := New[item](newStore(t), WithLogger(zerolog.New(&logs)))
	_, err := c.Get(t.Context(), "k", func(context.Context) (item, error) { return item{Version: 1}, nil })
	require.NoError(t, err)

	_, err = c.Get(t.Context(), "k", func(context.Context) (item, error) { panic("boom") })
	require.NoError(t, err)

	assert.NotPanics(t, c.Wait)
	assert.Contains(t, logs.String(), "SWR revalidation panicked")
}

func TestGet_TTLExpiryForcesSyncFetch(t *testing.T) {
	c := New[item](newStore(t), WithTTL(30*time.Millisecond))
	var calls atomic.Int32
	fetch := versionedFetcher(&calls)

	_, err := c.Get(t.Context(), "k", fetch)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)

	v, err := c.Get(t.Context(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version, "expired entry must be fetched synchronously")
}
