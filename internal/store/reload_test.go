package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/passbi/corridor_router/internal/coverage"
	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	bundle models.Bundle
	err    error
	calls  int
}

func (s *staticSource) LoadBundle(context.Context) (models.Bundle, error) {
	s.calls++
	return s.bundle, s.err
}

func TestReloader(t *testing.T) {
	bundle, err := LoadBundleFile(filepath.Join("testdata", "sample_bundle.json"))
	require.NoError(t, err)

	source := &staticSource{bundle: bundle}
	graphs := graph.NewHolder()
	carriers := coverage.NewManager(coverage.Options{})
	r := NewReloader(source, graphs, carriers)

	changed, done, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, <-done)

	g, ok := graphs.Get()
	require.True(t, ok)
	idx, err := carriers.Current()
	require.NoError(t, err)
	assert.True(t, idx.HasCity("E"), "declared cities are valid endpoints without carriers")

	t.Run("Unchanged network keeps the graph", func(t *testing.T) {
		changed, done, err := r.Reload(context.Background())
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, <-done)

		same, _ := graphs.Get()
		assert.Same(t, g, same)
	})

	t.Run("Carrier change rebuilds only the index", func(t *testing.T) {
		updated := bundle
		updated.Carriers = append([]models.Carrier{}, bundle.Carriers...)
		updated.Carriers = append(updated.Carriers, models.Carrier{
			Name:     "D9",
			Variants: []models.RouteVariant{{CityIDs: []string{"D", "E"}}},
		})
		source.bundle = updated

		changed, done, err := r.Reload(context.Background())
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, <-done)

		next, err := carriers.Current()
		require.NoError(t, err)
		assert.NotEqual(t, idx.ID, next.ID)
		assert.Equal(t, []string{"D9"}, next.CarriersByExactPair("D", "E"))
	})

	t.Run("Load failure keeps published state", func(t *testing.T) {
		source.err = errors.New("disk gone")
		_, _, err := r.Reload(context.Background())
		require.Error(t, err)

		still, ok := graphs.Get()
		require.True(t, ok)
		assert.Same(t, g, still)
	})
}
