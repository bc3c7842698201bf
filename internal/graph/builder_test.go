package graph

import (
	"errors"
	"testing"

	"github.com/passbi/corridor_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle(bIsCorridorHub bool) models.Bundle {
	return models.Bundle{
		Cities: []models.City{
			{ID: "A", Label: "A"},
			{ID: "B", Label: "B", IsHub: true, IsCorridorHub: bIsCorridorHub},
			{ID: "C", Label: "C"},
			{ID: "D", Label: "D"},
			{ID: "E", Label: "E"},
		},
		Corridors: []models.Corridor{
			{ID: "NORTH", Name: "North"},
			{ID: "SOUTH", Name: "South"},
		},
		Lines: []models.Line{
			{ID: "L1", CorridorID: "NORTH"},
			{ID: "L2", CorridorID: "SOUTH"},
			{ID: "L3", CorridorID: "NORTH"},
		},
		LinePaths: []models.LinePath{
			{LineID: "L1", Seq: 2, CityID: "B"},
			{LineID: "L1", Seq: 1, CityID: "A"},
			{LineID: "L1", Seq: 3, CityID: "C"},
			{LineID: "L2", Seq: 1, CityID: "D"},
			{LineID: "L2", Seq: 2, CityID: "B"},
			{LineID: "L3", Seq: 1, CityID: "B"},
			{LineID: "L3", Seq: 2, CityID: "E"},
		},
	}
}

func TestBuild(t *testing.T) {
	g, err := Build(sampleBundle(true))
	require.NoError(t, err)

	t.Run("Nodes are city x line pairs", func(t *testing.T) {
		// A/L1 B/L1 C/L1 D/L2 B/L2 B/L3 E/L3
		assert.Equal(t, 7, g.NodeCount())
		assert.ElementsMatch(t, []string{"L1", "L2", "L3"}, g.LinesAt("B"))
		assert.Equal(t, []string{"L1"}, g.LinesAt("A"))
		assert.Nil(t, g.LinesAt("ZZ"))
	})

	t.Run("Ride edges are symmetric with one hop", func(t *testing.T) {
		a, _ := g.NodeByKey("A", "L1")
		b, _ := g.NodeByKey("B", "L1")
		fwd, ok := g.EdgeBetween(a, b)
		require.True(t, ok)
		back, ok := g.EdgeBetween(b, a)
		require.True(t, ok)
		assert.Equal(t, EdgeRide, fwd.Kind)
		assert.Equal(t, Cost{Hops: 1}, fwd.Cost)
		assert.Equal(t, fwd.Cost, back.Cost)
	})

	t.Run("Same corridor transfer is free", func(t *testing.T) {
		b1, _ := g.NodeByKey("B", "L1")
		b3, _ := g.NodeByKey("B", "L3")
		e, ok := g.EdgeBetween(b1, b3)
		require.True(t, ok)
		assert.Equal(t, EdgeTransfer, e.Kind)
		assert.Equal(t, Cost{}, e.Cost)
	})

	t.Run("Cross corridor transfer at corridor hub costs one transfer", func(t *testing.T) {
		b1, _ := g.NodeByKey("B", "L1")
		b2, _ := g.NodeByKey("B", "L2")
		e, ok := g.EdgeBetween(b2, b1)
		require.True(t, ok)
		assert.Equal(t, Cost{Transfers: 1}, e.Cost)
	})

	t.Run("Hash is stable for identical input", func(t *testing.T) {
		assert.Equal(t, g.Hash, NetworkHash(sampleBundle(true)))
		assert.NotEqual(t, g.Hash, NetworkHash(sampleBundle(false)))
	})
}

func TestBuildWithoutCorridorHub(t *testing.T) {
	g, err := Build(sampleBundle(false))
	require.NoError(t, err)

	b1, _ := g.NodeByKey("B", "L1")
	b2, _ := g.NodeByKey("B", "L2")
	b3, _ := g.NodeByKey("B", "L3")

	_, ok := g.EdgeBetween(b1, b2)
	assert.False(t, ok, "no cross-corridor edge at a plain hub")
	_, ok = g.EdgeBetween(b2, b3)
	assert.False(t, ok)

	e, ok := g.EdgeBetween(b1, b3)
	require.True(t, ok, "same corridor lines still connect")
	assert.Equal(t, Cost{}, e.Cost)
}

func TestBuildVariantsShareNodes(t *testing.T) {
	bundle := sampleBundle(true)
	bundle.LinePaths = append(bundle.LinePaths,
		models.LinePath{LineID: "L1", VariantID: "spur", Seq: 1, CityID: "B"},
		models.LinePath{LineID: "L1", VariantID: "spur", Seq: 2, CityID: "E"},
	)

	g, err := Build(bundle)
	require.NoError(t, err)

	b1, _ := g.NodeByKey("B", "L1")
	e1, ok := g.NodeByKey("E", "L1")
	require.True(t, ok)
	_, ok = g.EdgeBetween(b1, e1)
	assert.True(t, ok)
	assert.Len(t, g.NodesAt(g.cityIndex["B"]), 3)
}

func TestBuildRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(b *models.Bundle)
		lineID    string
		variantID string
	}{
		{
			name: "Duplicate sequence",
			mutate: func(b *models.Bundle) {
				b.LinePaths = append(b.LinePaths, models.LinePath{LineID: "L2", Seq: 2, CityID: "C"})
			},
			lineID: "L2",
		},
		{
			name: "Duplicate sequence in a variant",
			mutate: func(b *models.Bundle) {
				b.LinePaths = append(b.LinePaths,
					models.LinePath{LineID: "L3", VariantID: "v2", Seq: 1, CityID: "A"},
					models.LinePath{LineID: "L3", VariantID: "v2", Seq: 1, CityID: "C"},
				)
			},
			lineID:    "L3",
			variantID: "v2",
		},
		{
			name: "Unknown line",
			mutate: func(b *models.Bundle) {
				b.LinePaths = append(b.LinePaths, models.LinePath{LineID: "L9", Seq: 1, CityID: "A"})
			},
			lineID: "L9",
		},
		{
			name: "Unknown city",
			mutate: func(b *models.Bundle) {
				b.LinePaths = append(b.LinePaths, models.LinePath{LineID: "L1", Seq: 9, CityID: "Q"})
			},
			lineID: "L1",
		},
		{
			name: "Unknown corridor",
			mutate: func(b *models.Bundle) {
				b.Lines = append(b.Lines, models.Line{ID: "L7", CorridorID: "WEST"})
			},
			lineID: "L7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := sampleBundle(true)
			tt.mutate(&bundle)

			_, err := Build(bundle)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.lineID, verr.LineID)
			assert.Equal(t, tt.variantID, verr.VariantID)
			assert.Contains(t, err.Error(), tt.lineID)
		})
	}
}

func TestHolder(t *testing.T) {
	h := NewHolder()
	_, ok := h.Get()
	assert.False(t, ok)
	assert.False(t, h.IsLoaded())

	g, err := Build(sampleBundle(true))
	require.NoError(t, err)
	h.Swap(g)

	got, ok := h.Get()
	assert.True(t, ok)
	assert.Same(t, g, got)
}
