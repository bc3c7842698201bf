package coverage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/passbi/corridor_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	t.Run("Not ready before first build", func(t *testing.T) {
		m := NewManager(Options{})
		_, err := m.Current()
		assert.True(t, errors.Is(err, ErrIndexNotReady))
		assert.False(t, m.Status().Ready)
	})

	t.Run("Same content reuses the index", func(t *testing.T) {
		m := NewManager(Options{})
		first, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)

		second, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)
		assert.Same(t, first, second)

		current, err := m.Current()
		require.NoError(t, err)
		assert.Same(t, first, current)

		status := m.Status()
		assert.True(t, status.Ready)
		assert.Equal(t, first.ID, status.BuildID)
		assert.Equal(t, 2, status.Routes)
		assert.Equal(t, 3, status.Carriers)
	})

	t.Run("Changed content rebuilds", func(t *testing.T) {
		m := NewManager(Options{})
		first, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)

		changed := append(sampleCarriers(), models.Carrier{Name: "D4", Variants: []models.RouteVariant{variant("D", "E")}})
		second, err := m.Ensure(context.Background(), changed)
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.NotEqual(t, first.Hash, second.Hash)

		current, _ := m.Current()
		assert.Same(t, second, current)
	})

	t.Run("Failed build keeps the published index", func(t *testing.T) {
		m := NewManager(Options{})
		good, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)

		bad := []models.Carrier{{Name: "X", Variants: []models.RouteVariant{variant("A")}}}
		_, err = m.Ensure(context.Background(), bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedInput))

		current, err := m.Current()
		require.NoError(t, err)
		assert.Same(t, good, current)
		assert.NotEmpty(t, m.Status().LastError)
	})

	t.Run("Concurrent callers share one index", func(t *testing.T) {
		m := NewManager(Options{})
		var wg sync.WaitGroup
		results := make([]*Index, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				idx, err := m.Ensure(context.Background(), sampleCarriers())
				assert.NoError(t, err)
				results[i] = idx
			}(i)
		}
		wg.Wait()

		current, err := m.Current()
		require.NoError(t, err)
		for _, idx := range results {
			assert.Equal(t, current.Hash, idx.Hash)
		}
	})

	t.Run("Async build publishes", func(t *testing.T) {
		m := NewManager(Options{})
		select {
		case err := <-m.EnsureAsync(sampleCarriers()):
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("async build did not finish")
		}
		_, err := m.Current()
		assert.NoError(t, err)
	})

	t.Run("Known cities are part of the build input", func(t *testing.T) {
		m := NewManager(Options{})
		plain, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)
		assert.False(t, plain.HasCity("Z"))

		withCity, err := m.Ensure(context.Background(), sampleCarriers(), "Z")
		require.NoError(t, err)
		assert.NotSame(t, plain, withCity)
		assert.Equal(t, plain.Hash, withCity.Hash, "carrier content is unchanged")
		assert.True(t, withCity.HasCity("Z"))

		again, err := m.Ensure(context.Background(), sampleCarriers(), "Z")
		require.NoError(t, err)
		assert.Same(t, withCity, again)
	})

	t.Run("Returning to the published data discards an in-flight build", func(t *testing.T) {
		m := NewManager(Options{})
		published, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)

		changed := append(sampleCarriers(), models.Carrier{Name: "D4", Variants: []models.RouteVariant{variant("D", "E")}})
		changedKey := buildKey(changed, nil)

		// a build for the changed data has been requested and is running
		m.mu.Lock()
		m.wanted = changedKey
		m.mu.Unlock()

		// then the original data is requested again and served from the fast path
		again, err := m.Ensure(context.Background(), sampleCarriers())
		require.NoError(t, err)
		assert.Same(t, published, again)

		// the stale build completes afterwards
		stale, err := m.build(changedKey, changed, nil)
		require.NoError(t, err)
		assert.NotSame(t, published, stale)

		current, err := m.Current()
		require.NoError(t, err)
		assert.Same(t, published, current, "superseded build is not published")
	})

	t.Run("Cancelled context returns early", func(t *testing.T) {
		m := NewManager(Options{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Ensure(ctx, sampleCarriers())
		// either the build won the race or the context did
		if err != nil {
			assert.True(t, errors.Is(err, context.Canceled))
		}
	})
}
