package routing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/models"
)

// ErrUnknownCity is returned when a query references a city id absent from the dataset
var ErrUnknownCity = errors.New("no such city")

// Path is an accepted node sequence with its total cost
type Path struct {
	Nodes []graph.NodeID
	Cost  graph.Cost
}

// FindRoutes returns up to k itineraries from one city to another, ordered by
// (transfers, hops). Same-city queries and cities touched by no line yield an
// empty result; unknown city ids yield ErrUnknownCity.
func FindRoutes(g *graph.Graph, fromCity, toCity string, k int) ([]models.Itinerary, error) {
	origin, ok := g.CityIndexOf(fromCity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCity, fromCity)
	}
	dest, ok := g.CityIndexOf(toCity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCity, toCity)
	}

	itineraries := []models.Itinerary{}
	if origin == dest || k <= 0 {
		return itineraries, nil
	}

	for _, p := range KShortestPaths(g, origin, dest, k) {
		itineraries = append(itineraries, models.Itinerary{
			Segments:  BuildSegments(g, p.Nodes),
			Transfers: p.Cost.Transfers,
			Hops:      p.Cost.Hops,
		})
	}
	return itineraries, nil
}

// KShortestPaths finds up to k distinct node paths between two cities using
// deviation paths: every prefix of the last accepted path is used as a root,
// the edges leaving that root on already accepted paths are removed, and the
// spur search result is spliced onto the root. Distinctness is by full node
// sequence.
func KShortestPaths(g *graph.Graph, origin, dest graph.CityIndex, k int) []Path {
	if origin == dest || k <= 0 {
		return nil
	}
	starts := g.NodesAt(origin)
	if len(starts) == 0 || len(g.NodesAt(dest)) == 0 {
		return nil
	}

	s := &solver{g: g, origin: origin, dest: dest}

	first, cost, ok := s.bestPath(starts, searchLimits{})
	if !ok {
		return nil
	}

	// accepted and candidate paths carry the virtual source in front
	accepted := [][]graph.NodeID{withSource(first)}
	costs := []graph.Cost{cost}
	seen := map[string]bool{pathKey(accepted[0]): true}

	type candidate struct {
		nodes []graph.NodeID
		cost  graph.Cost
		seq   int
	}
	var candidates []candidate
	seq := 0

	for len(accepted) < k {
		last := accepted[len(accepted)-1]

		for i := 0; i < len(last)-1; i++ {
			spur := last[i]
			root := last[:i+1]

			limits := searchLimits{
				bannedEdges: make(map[edgeRef]bool),
				bannedNodes: make(map[graph.NodeID]bool),
			}
			for _, p := range accepted {
				if len(p) > i+1 && slices.Equal(p[:i+1], root) {
					limits.bannedEdges[edgeRef{from: p[i], to: p[i+1]}] = true
				}
			}
			// root nodes before the spur, excluding the virtual source
			for j := 1; j < i; j++ {
				limits.bannedNodes[root[j]] = true
			}

			var spurStarts []graph.NodeID
			if spur == virtualSource {
				for _, n := range starts {
					if !limits.bannedEdges[edgeRef{from: virtualSource, to: n}] {
						spurStarts = append(spurStarts, n)
					}
				}
			} else {
				spurStarts = []graph.NodeID{spur}
			}

			spurPath, _, found := s.bestPath(spurStarts, limits)
			if !found {
				continue
			}

			var total []graph.NodeID
			if spur == virtualSource {
				total = withSource(spurPath)
			} else {
				total = append(slices.Clone(last[:i]), spurPath...)
			}

			key := pathKey(total)
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, candidate{nodes: total, cost: pathCost(g, total[1:]), seq: seq})
			seq++
		}

		if len(candidates) == 0 {
			break
		}

		bestIdx := 0
		for i := 1; i < len(candidates); i++ {
			c, b := candidates[i], candidates[bestIdx]
			if c.cost.Less(b.cost) || (c.cost == b.cost && c.seq < b.seq) {
				bestIdx = i
			}
		}
		next := candidates[bestIdx]
		candidates = slices.Delete(candidates, bestIdx, bestIdx+1)

		accepted = append(accepted, next.nodes)
		costs = append(costs, next.cost)
	}

	paths := make([]Path, len(accepted))
	for i, p := range accepted {
		paths[i] = Path{Nodes: p[1:], Cost: costs[i]}
	}
	return paths
}

// pathCost sums edge costs along a node path
func pathCost(g *graph.Graph, nodes []graph.NodeID) graph.Cost {
	var total graph.Cost
	for i := 0; i < len(nodes)-1; i++ {
		if e, ok := g.EdgeBetween(nodes[i], nodes[i+1]); ok {
			total = total.Add(e.Cost)
		}
	}
	return total
}

func withSource(nodes []graph.NodeID) []graph.NodeID {
	out := make([]graph.NodeID, 0, len(nodes)+1)
	out = append(out, virtualSource)
	return append(out, nodes...)
}

// pathKey packs a node sequence into a map key
func pathKey(nodes []graph.NodeID) string {
	buf := make([]byte, 4*len(nodes))
	for i, n := range nodes {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(n))
	}
	return string(buf)
}
