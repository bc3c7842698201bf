package routing

import (
	"errors"
	"testing"

	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNetwork: L1 A-B-C and L3 B-E on NORTH, L2 D-B on SOUTH, F on no line
func testNetwork(t *testing.T, bIsCorridorHub bool) *graph.Graph {
	t.Helper()

	bundle := models.Bundle{
		Cities: []models.City{
			{ID: "A"},
			{ID: "B", IsHub: true, IsCorridorHub: bIsCorridorHub},
			{ID: "C"},
			{ID: "D"},
			{ID: "E"},
			{ID: "F"},
		},
		Corridors: []models.Corridor{{ID: "NORTH"}, {ID: "SOUTH"}},
		Lines: []models.Line{
			{ID: "L1", CorridorID: "NORTH"},
			{ID: "L2", CorridorID: "SOUTH"},
			{ID: "L3", CorridorID: "NORTH"},
		},
		LinePaths: []models.LinePath{
			{LineID: "L1", Seq: 1, CityID: "A"},
			{LineID: "L1", Seq: 2, CityID: "B"},
			{LineID: "L1", Seq: 3, CityID: "C"},
			{LineID: "L2", Seq: 1, CityID: "D"},
			{LineID: "L2", Seq: 2, CityID: "B"},
			{LineID: "L3", Seq: 1, CityID: "B"},
			{LineID: "L3", Seq: 2, CityID: "E"},
		},
	}

	g, err := graph.Build(bundle)
	require.NoError(t, err)
	return g
}

func TestFindRoutes(t *testing.T) {
	g := testNetwork(t, true)

	t.Run("Cross corridor route through a corridor hub", func(t *testing.T) {
		routes, err := FindRoutes(g, "D", "C", 1)
		require.NoError(t, err)
		require.Len(t, routes, 1)

		assert.Equal(t, []models.Segment{
			{From: "D", To: "B", Line: "L2"},
			{From: "B", To: "B", Line: "L1", IsTransfer: true},
			{From: "B", To: "C", Line: "L1"},
		}, routes[0].Segments)
		assert.Equal(t, 1, routes[0].Transfers)
		assert.Equal(t, 2, routes[0].Hops)
	})

	t.Run("Same corridor change is free", func(t *testing.T) {
		routes, err := FindRoutes(g, "A", "E", 1)
		require.NoError(t, err)
		require.Len(t, routes, 1)
		assert.Equal(t, 0, routes[0].Transfers)
		assert.Equal(t, 2, routes[0].Hops)
	})

	t.Run("Same city returns empty", func(t *testing.T) {
		for _, c := range g.Cities() {
			routes, err := FindRoutes(g, c.ID, c.ID, 3)
			require.NoError(t, err)
			assert.Empty(t, routes, c.ID)
		}
	})

	t.Run("Isolated city returns empty", func(t *testing.T) {
		routes, err := FindRoutes(g, "A", "F", 3)
		require.NoError(t, err)
		assert.NotNil(t, routes)
		assert.Empty(t, routes)
	})

	t.Run("Unknown city is an error", func(t *testing.T) {
		_, err := FindRoutes(g, "A", "ZZ", 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownCity))
		assert.Contains(t, err.Error(), "ZZ")

		_, err = FindRoutes(g, "ZZ", "A", 3)
		assert.True(t, errors.Is(err, ErrUnknownCity))
	})

	t.Run("Non-positive k returns empty", func(t *testing.T) {
		routes, err := FindRoutes(g, "D", "C", 0)
		require.NoError(t, err)
		assert.Empty(t, routes)
	})
}

func TestFindRoutesWithoutCorridorHub(t *testing.T) {
	g := testNetwork(t, false)

	routes, err := FindRoutes(g, "D", "C", 5)
	require.NoError(t, err)
	assert.Empty(t, routes, "no path may switch corridors at a plain hub")

	routes, err = FindRoutes(g, "A", "E", 1)
	require.NoError(t, err)
	assert.Len(t, routes, 1, "same corridor lines still connect")
}

func TestKShortestPaths(t *testing.T) {
	g := testNetwork(t, true)
	origin, _ := g.CityIndexOf("D")
	dest, _ := g.CityIndexOf("C")

	paths := KShortestPaths(g, origin, dest, 5)
	require.GreaterOrEqual(t, len(paths), 2)

	t.Run("Paths are distinct by node sequence", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, p := range paths {
			key := pathKey(p.Nodes)
			assert.False(t, seen[key], "duplicate path %v", p.Nodes)
			seen[key] = true
		}
	})

	t.Run("Paths are ordered by cost", func(t *testing.T) {
		for i := 1; i < len(paths); i++ {
			assert.False(t, paths[i].Cost.Less(paths[i-1].Cost), "path %d cheaper than path %d", i, i-1)
		}
		assert.Equal(t, graph.Cost{Transfers: 1, Hops: 2}, paths[0].Cost)
	})

	t.Run("Paths start at origin and end at destination", func(t *testing.T) {
		for _, p := range paths {
			require.NotEmpty(t, p.Nodes)
			assert.Equal(t, origin, g.Node(p.Nodes[0]).City)
			assert.Equal(t, dest, g.Node(p.Nodes[len(p.Nodes)-1]).City)

			// no leading transfer and a terminal destination
			assert.NotEqual(t, origin, g.Node(p.Nodes[1]).City)
			assert.NotEqual(t, dest, g.Node(p.Nodes[len(p.Nodes)-2]).City)
		}
	})

	t.Run("Reported cost matches the edges", func(t *testing.T) {
		for _, p := range paths {
			assert.Equal(t, p.Cost, pathCost(g, p.Nodes))
		}
	})
}

func TestBuildSteps(t *testing.T) {
	t.Run("Consecutive rides on one line are consolidated", func(t *testing.T) {
		steps := BuildSteps([]models.Segment{
			{From: "A", To: "B", Line: "L1"},
			{From: "B", To: "C", Line: "L1"},
		})
		require.Len(t, steps, 1)
		assert.Equal(t, models.SegmentRide, steps[0].Type)
		assert.Equal(t, "A", steps[0].FromCity)
		assert.Equal(t, "C", steps[0].ToCity)
		assert.Equal(t, 2, steps[0].NumStops)
		assert.Equal(t, []string{"A", "B", "C"}, steps[0].Cities)
	})

	t.Run("Transfers split rides", func(t *testing.T) {
		steps := BuildSteps([]models.Segment{
			{From: "D", To: "B", Line: "L2"},
			{From: "B", To: "B", Line: "L1", IsTransfer: true},
			{From: "B", To: "C", Line: "L1"},
		})
		require.Len(t, steps, 3)
		assert.Equal(t, models.SegmentRide, steps[0].Type)
		assert.Equal(t, models.SegmentTransfer, steps[1].Type)
		assert.Equal(t, "L1", steps[1].Line)
		assert.Zero(t, steps[1].NumStops)
		assert.Equal(t, models.SegmentRide, steps[2].Type)
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, BuildSteps(nil))
	})
}
